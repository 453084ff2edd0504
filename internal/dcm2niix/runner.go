// Package dcm2niix runs the external DICOM to NIfTI converter.
package dcm2niix

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	shellquote "github.com/kballard/go-shellquote"

	"dcm2bids/internal/errors"
)

// DefaultBinary is looked up on PATH.
const DefaultBinary = "dcm2niix"

// Runner invokes dcm2niix once per DICOM directory.
type Runner struct {
	binary  string
	options string
	logger  *slog.Logger
}

// Result describes the converter output directory.
type Result struct {
	OutputDir string
	// Reused is true when a previous output was kept.
	Reused   bool
	Sidecars []string
}

// NewRunner creates a runner. options is split like a shell command line.
func NewRunner(binary, options string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{binary: binary, options: options, logger: logger}
}

// Run converts every directory of dicomDirs into outputDir. An existing,
// non-empty outputDir is reused unless force is set, in which case it is
// emptied first.
func (r *Runner) Run(ctx context.Context, dicomDirs []string, outputDir string, force bool) (*Result, error) {
	result := &Result{OutputDir: outputDir}

	if !force && hasEntries(outputDir) {
		r.logger.Info("Previous dcm2niix output found", "dir", outputDir)
		r.logger.Info("Use --forceDcm2niix to rerun dcm2niix")
		result.Reused = true
	} else {
		if force {
			if err := os.RemoveAll(outputDir); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", outputDir, err)
			}
		}
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", outputDir, err)
		}

		baseArgs, err := shellquote.Split(r.options)
		if err != nil {
			return nil, errors.NewDcm2bidsError(errors.ConfigInvalid, "cannot parse dcm2niixOptions "+r.options, err, nil)
		}

		for _, dir := range dicomDirs {
			args := append(append([]string(nil), baseArgs...), "-o", outputDir, dir)
			if err := r.execute(ctx, args); err != nil {
				return nil, err
			}
		}
	}

	sidecars, err := filepath.Glob(filepath.Join(outputDir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(sidecars)
	result.Sidecars = sidecars

	return result, nil
}

func (r *Runner) execute(ctx context.Context, args []string) error {
	r.logger.Info("Running dcm2niix", "command", r.binary+" "+shellquote.Join(args...))

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()

	scanner := bufio.NewScanner(bytes.NewReader(output.Bytes()))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			r.logger.Debug(line)
		}
	}

	if err == nil {
		return nil
	}
	if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, os.ErrNotExist) {
		return errors.NewDcm2bidsError(errors.Dcm2niixNotFound, "dcm2niix executable not found: "+r.binary, err, nil)
	}
	return errors.NewDcm2bidsError(errors.Dcm2niixFailed, "dcm2niix failed", err, nil).
		WithDetails(map[string]interface{}{
			"args":   args,
			"output": tail(output.String(), 20),
		})
}

var versionPattern = regexp.MustCompile(`v\d+\.\d+\.\d{8}`)

// Version runs "<binary> --version" and extracts a version such as
// v1.0.20230411. dcm2niix exits non-zero here on some releases, so the
// output is parsed regardless of the exit status.
func Version(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}

	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput()
	if v := versionPattern.FindString(string(out)); v != "" {
		return v, nil
	}
	if err != nil {
		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, os.ErrNotExist) {
			return "", errors.NewDcm2bidsError(errors.Dcm2niixNotFound, "dcm2niix executable not found: "+binary, err, nil)
		}
		return "", fmt.Errorf("failed to run %s --version: %w", binary, err)
	}
	return "", fmt.Errorf("no version in %s output", binary)
}

func hasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
