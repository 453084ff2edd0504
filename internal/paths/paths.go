// Package paths centralizes the on-disk layout used by dcm2bids: the
// temporary tree inside the BIDS output directory and the per-user home.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnvVar overrides the per-user directory.
	HomeEnvVar = "DCM2BIDS_HOME"
	// DefaultHome is created under the user's home directory.
	DefaultHome = ".dcm2bids"

	// TmpDirName is the working tree inside the output directory. BIDS
	// validators ignore it through .bidsignore.
	TmpDirName = "tmp_dcm2bids"

	helperDirName = "helper"
	logDirName    = "log"
	ledgerName    = "ledger.db"
)

// GetHome returns the per-user directory holding settings and caches.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, DefaultHome), nil
}

// TmpDir is <output>/tmp_dcm2bids.
func TmpDir(outputDir string) string {
	return filepath.Join(outputDir, TmpDirName)
}

// Dcm2niixOutputDir is where dcm2niix writes the files of one
// participant/session: <output>/tmp_dcm2bids/<prefix>.
func Dcm2niixOutputDir(outputDir, prefix string) string {
	return filepath.Join(TmpDir(outputDir), prefix)
}

// HelperDir is the output of the helper command.
func HelperDir(outputDir string) string {
	return filepath.Join(TmpDir(outputDir), helperDirName)
}

// LogDir holds one log file per run.
func LogDir(outputDir string) string {
	return filepath.Join(TmpDir(outputDir), logDirName)
}

// LedgerPath is the SQLite database recording runs and moved files.
func LedgerPath(outputDir string) string {
	return filepath.Join(TmpDir(outputDir), ledgerName)
}

// UpdateCachePath is the cached release lookup for tool.
func UpdateCachePath(tool string) (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "update-"+tool+".json"), nil
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// CanonicalizePath converts a path to a root-relative path with forward
// slashes, resolving symlinks where the files exist.
func CanonicalizePath(path string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = path
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithin reports whether path lies inside root.
func IsWithin(path string, root string) bool {
	rel, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
