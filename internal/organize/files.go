package organize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"dcm2bids/internal/paths"
)

// keptSuffixes are the extension parts carried over to the destination.
var keptSuffixes = map[string]bool{
	".nii":  true,
	".gz":   true,
	".json": true,
	".bval": true,
	".bvec": true,
}

// bidsSuffixes returns the dot-separated extension parts of name that are
// kept, in order. "003_T1.v2.nii.gz" gives [".nii", ".gz"].
func bidsSuffixes(name string) []string {
	if strings.HasSuffix(name, ".") {
		return nil
	}
	parts := strings.Split(strings.TrimLeft(name, "."), ".")

	var out []string
	for _, p := range parts[1:] {
		if s := "." + p; keptSuffixes[s] {
			out = append(out, s)
		}
	}
	return out
}

// sourceFiles lists the files sharing root, i.e. named <base>.<anything>
// in the same directory.
func sourceFiles(root string) ([]string, error) {
	if root == "" {
		return nil, nil
	}

	dir, base := filepath.Split(root)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), base+".") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// moveFile renames src to dst, copying across devices when rename fails.
func moveFile(src, dst string) (string, error) {
	if err := os.Rename(src, dst); err == nil {
		return "rename", nil
	}

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", src, err)
	}
	return "copy", nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// gzipFile compresses src into dst and removes src.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(src)
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		return fmt.Errorf("failed to compress %s: %w", src, err)
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	_ = in.Close()
	return os.Remove(src)
}

// EnsureBidsIgnore adds the temporary directory to <bidsDir>/.bidsignore.
func EnsureBidsIgnore(bidsDir string) error {
	path := filepath.Join(bidsDir, ".bidsignore")
	entry := paths.TmpDirName + "/"

	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if line = strings.TrimSpace(line); line == entry || line == paths.TmpDirName {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
