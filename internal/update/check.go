// Package update checks GitHub for newer releases of dcm2bids and dcm2niix.
// Lookups are cached for a day and never fail loudly.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"dcm2bids/internal/version"
)

const (
	// DisableEnvVar turns every check into a no-op when set.
	DisableEnvVar = "DCM2BIDS_NO_UPDATE_CHECK"

	githubAPI = "https://api.github.com"

	// checkInterval is how often to check for updates (24 hours)
	checkInterval = 24 * time.Hour

	// httpTimeout is the timeout for the GitHub API request
	httpTimeout = 3 * time.Second
)

// Tool is a program whose releases are published on GitHub.
type Tool struct {
	Name string
	Repo string
}

// ReleasesPage is the user-facing releases page.
func (t Tool) ReleasesPage() string {
	return "https://github.com/" + t.Repo + "/releases"
}

var (
	Dcm2bids = Tool{Name: "dcm2bids", Repo: "UNFmontreal/Dcm2Bids"}
	Dcm2niix = Tool{Name: "dcm2niix", Repo: "rordenlab/dcm2niix"}
)

// githubReleaseInfo represents the relevant fields from GitHub Releases API
type githubReleaseInfo struct {
	TagName string `json:"tag_name"`
}

// UpdateInfo contains information about an available update
type UpdateInfo struct {
	Tool           string
	CurrentVersion string
	LatestVersion  string
	ReleasesPage   string
}

// Checker looks up the latest release of one tool.
type Checker struct {
	tool    Tool
	current string
	cache   *Cache
	baseURL string
	client  *http.Client
}

// NewChecker creates a checker comparing tool's latest release against
// current. The cache lives in the dcm2bids home directory.
func NewChecker(tool Tool, current string) *Checker {
	return &Checker{
		tool:    tool,
		current: current,
		cache:   NewCache(tool.Name),
		baseURL: githubAPI,
		client:  http.DefaultClient,
	}
}

// NewDcm2bidsChecker checks this program against its own releases.
func NewDcm2bidsChecker() *Checker {
	return NewChecker(Dcm2bids, version.Version)
}

// Disabled reports whether update checks are turned off by environment.
func Disabled() bool {
	v := strings.ToLower(os.Getenv(DisableEnvVar))
	return v != "" && v != "0" && v != "false"
}

// CheckCached answers from the cache only. It returns nil when no update is
// known.
func (c *Checker) CheckCached() *UpdateInfo {
	if Disabled() {
		return nil
	}

	cached, _ := c.cache.Get()
	if cached == nil {
		return nil
	}

	return c.compareVersions(cached.LatestVersion)
}

// Check returns the available update, or nil when none is available, the
// check is disabled, or anything goes wrong.
func (c *Checker) Check(ctx context.Context) *UpdateInfo {
	if Disabled() {
		return nil
	}

	cached, needsRefresh := c.cache.Get()
	if cached != nil && !needsRefresh {
		return c.compareVersions(cached.LatestVersion)
	}

	latest := c.fetchLatestVersion(ctx)
	if latest == "" {
		return nil
	}

	c.cache.Set(latest)

	return c.compareVersions(latest)
}

// CheckAsync runs the update check in the background and returns results via channel.
// The channel will receive at most one result and then be closed.
func (c *Checker) CheckAsync(ctx context.Context) <-chan *UpdateInfo {
	ch := make(chan *UpdateInfo, 1)

	go func() {
		defer close(ch)
		if info := c.Check(ctx); info != nil {
			ch <- info
		}
	}()

	return ch
}

// fetchLatestVersion returns the latest tag without its "v" prefix, or ""
// on any error.
func (c *Checker) fetchLatestVersion(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	url := c.baseURL + "/repos/" + c.tool.Repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}

	req.Header.Set("User-Agent", "dcm2bids/"+version.Version)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var release githubReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return ""
	}

	return strings.TrimPrefix(release.TagName, "v")
}

func (c *Checker) compareVersions(latest string) *UpdateInfo {
	if !isNewerVersion(latest, c.current) {
		return nil
	}

	return &UpdateInfo{
		Tool:           c.tool.Name,
		CurrentVersion: strings.TrimPrefix(c.current, "v"),
		LatestVersion:  latest,
		ReleasesPage:   c.tool.ReleasesPage(),
	}
}

// isNewerVersion returns true if version a is newer than version b.
// dcm2niix dates (1.0.20230411) compare like any other patch number.
func isNewerVersion(a, b string) bool {
	partsA := parseVersion(a)
	partsB := parseVersion(b)

	for i := 0; i < 3; i++ {
		if partsA[i] > partsB[i] {
			return true
		}
		if partsA[i] < partsB[i] {
			return false
		}
	}

	return false
}

// parseVersion extracts major, minor, patch from a version string
func parseVersion(v string) [3]int {
	var parts [3]int

	v = strings.TrimPrefix(v, "v")
	// Strip any pre-release suffix (e.g., "-beta.1")
	if idx := strings.Index(v, "-"); idx > 0 {
		v = v[:idx]
	}

	_, _ = fmt.Sscanf(v, "%d.%d.%d", &parts[0], &parts[1], &parts[2])

	return parts
}

// String formats the notification for CLI output.
func (u *UpdateInfo) String() string {
	return fmt.Sprintf("A newer version of %s exists: %s -> %s\n%s",
		u.Tool, u.CurrentVersion, u.LatestVersion, u.ReleasesPage)
}
