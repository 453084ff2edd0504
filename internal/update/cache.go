package update

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"dcm2bids/internal/paths"
)

// CacheEntry stores the cached update check result
type CacheEntry struct {
	LatestVersion string    `json:"latest_version"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Cache handles caching of update check results
type Cache struct {
	path string
}

// NewCache creates the cache of tool under the dcm2bids home directory.
// A cache without a path never hits.
func NewCache(tool string) *Cache {
	path, err := paths.UpdateCachePath(tool)
	if err != nil {
		path = ""
	}
	return &Cache{path: path}
}

// Get returns the cached entry and whether it needs refresh.
// Returns (nil, true) if cache doesn't exist or is corrupted.
// Returns (entry, true) if cache exists but is stale.
// Returns (entry, false) if cache is fresh.
func (c *Cache) Get() (*CacheEntry, bool) {
	if c.path == "" {
		return nil, true
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, true
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, true
	}

	return &entry, time.Since(entry.CheckedAt) > checkInterval
}

// Set updates the cache with the latest version
func (c *Cache) Set(latestVersion string) {
	if c.path == "" {
		return
	}

	entry := CacheEntry{
		LatestVersion: latestVersion,
		CheckedAt:     time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return
	}

	// Write atomically by writing to temp file first
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return
	}
	_ = os.Rename(tmpPath, c.path)
}
