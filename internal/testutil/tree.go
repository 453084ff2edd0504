package testutil

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// VersionPlaceholder replaces the tool version in snapshots so golden files
// survive releases.
const VersionPlaceholder = "<version>"

// TreeSnapshot is a stable description of a directory: every file path,
// and the decoded content of every JSON sidecar.
type TreeSnapshot struct {
	Files    []string                  `json:"files"`
	Sidecars map[string]map[string]any `json:"sidecars"`
}

// SnapshotTree walks root, skipping the directories named in skip, and
// returns the indented JSON of its TreeSnapshot. Paths use forward slashes.
func SnapshotTree(t *testing.T, root string, skip ...string) []byte {
	t.Helper()

	snap := TreeSnapshot{Files: []string{}, Sidecars: map[string]map[string]any{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, s := range skip {
				if d.Name() == s && path != root {
					return filepath.SkipDir
				}
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		snap.Files = append(snap.Files, rel)

		if strings.HasSuffix(rel, ".json") {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var sidecar map[string]any
			if err := json.Unmarshal(data, &sidecar); err != nil {
				t.Fatalf("Invalid sidecar %s: %v", rel, err)
			}
			snap.Sidecars[rel] = NormalizeSidecar(sidecar)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk %s: %v", root, err)
	}
	sort.Strings(snap.Files)

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal snapshot: %v", err)
	}
	return append(out, '\n')
}

// NormalizeSidecar replaces values that change between builds.
func NormalizeSidecar(sidecar map[string]any) map[string]any {
	if _, ok := sidecar["Dcm2bidsVersion"]; ok {
		sidecar["Dcm2bidsVersion"] = VersionPlaceholder
	}
	return sidecar
}
