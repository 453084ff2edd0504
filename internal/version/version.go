// Package version provides centralized version information for dcm2bids.
// The version string is also written into every sidecar as Dcm2bidsVersion.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X dcm2bids/internal/version.Version=2.1.9 -X dcm2bids/internal/version.Commit=abc123"
var (
	// Version is the semantic version of dcm2bids
	Version = "2.1.9"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}
