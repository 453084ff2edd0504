// Package organize moves converted files into the BIDS tree and writes
// their final sidecars.
package organize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dcm2bids/internal/bids"
	"dcm2bids/internal/errors"
	"dcm2bids/internal/paths"
)

// Recorder receives every file placed in the BIDS tree.
type Recorder interface {
	RecordMove(acquisition, src, dst, action string) error
}

// Options configure an Organizer.
type Options struct {
	// BIDSDir is the root of the output tree.
	BIDSDir string
	// Clobber replaces existing destination files instead of skipping them.
	Clobber bool
	// CompressNifti gzips bare .nii images on the way in.
	CompressNifti bool
	// EntityOrder defaults to bids.DefaultEntityOrder.
	EntityOrder bids.EntityOrder
	// Version is written into every sidecar.
	Version string
}

// Organizer places the files of paired acquisitions.
type Organizer struct {
	opts     Options
	recorder Recorder
	logger   *slog.Logger
}

// Failure is an acquisition that could not be placed.
type Failure struct {
	Acquisition string
	Err         error
}

// Report summarizes an Organize call.
type Report struct {
	Acquisitions int
	Moved        int
	Skipped      int
	Failures     []Failure
}

// New creates an organizer. recorder may be nil.
func New(opts Options, recorder Recorder, logger *slog.Logger) *Organizer {
	if opts.EntityOrder == nil {
		opts.EntityOrder = bids.DefaultEntityOrder
	}
	return &Organizer{opts: opts, recorder: recorder, logger: logger}
}

// IntendedForList computes every destination filename and returns, for each
// description index, the IntendedFor paths of the acquisitions paired with
// it. It must run before any sidecar is composed.
func (o *Organizer) IntendedForList(acquisitions []*bids.Acquisition, descriptionCount int) ([][]string, error) {
	list := make([][]string, descriptionCount)
	for i := range list {
		list[i] = []string{}
	}

	for _, acq := range acquisitions {
		acq.SetDstFile(o.opts.EntityOrder)

		index, ok := acq.IndexSidecar()
		if !ok {
			continue
		}
		if index < 0 || index >= descriptionCount {
			return nil, errors.NewDcm2bidsError(
				errors.InternalError,
				fmt.Sprintf("%s paired with description %d of %d", acq, index, descriptionCount),
				nil, nil,
			)
		}

		dst, err := acq.DestinationForIntendedFor()
		if err != nil {
			return nil, err
		}
		entry := dst + ".nii.gz"
		if !contains(list[index], entry) {
			list[index] = append(list[index], entry)
		}
	}

	return list, nil
}

// Organize runs both passes over acquisitions. A failing acquisition is
// reported and the next one processed; the returned error is reserved for
// conditions that stop the whole run.
func (o *Organizer) Organize(ctx context.Context, acquisitions []*bids.Acquisition, descriptionCount int) (*Report, error) {
	report := &Report{Acquisitions: len(acquisitions)}

	intendedForList, err := o.IntendedForList(acquisitions, descriptionCount)
	if err != nil {
		return nil, err
	}

	for _, acq := range acquisitions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		moved, skipped, err := o.move(acq, intendedForList)
		report.Moved += moved
		report.Skipped += skipped
		if err != nil {
			o.logger.Error("Acquisition failed", "acquisition", acq.String(), "error", err.Error())
			report.Failures = append(report.Failures, Failure{Acquisition: acq.String(), Err: err})
		}
	}

	return report, nil
}

func (o *Organizer) move(acq *bids.Acquisition, intendedForList [][]string) (moved, skipped int, err error) {
	dstRoot, err := acq.DestinationRoot()
	if err != nil {
		return 0, 0, err
	}
	dstRoot = filepath.Join(o.opts.BIDSDir, dstRoot)
	if !paths.IsWithin(dstRoot, o.opts.BIDSDir) {
		return 0, 0, errors.NewDcm2bidsError(errors.ConfigInvalid, fmt.Sprintf("destination of %s leaves %s", acq, o.opts.BIDSDir), nil, nil)
	}

	srcFiles, err := sourceFiles(acq.SrcRoot())
	if err != nil {
		return 0, 0, err
	}
	if len(srcFiles) == 0 {
		o.logger.Warn("No file found for acquisition", "acquisition", acq.String(), "src", acq.SrcRoot())
		return 0, 0, nil
	}

	// Nothing of the acquisition may reach the tree if its sidecar cannot be composed.
	sidecarData, err := acq.ComposeSidecarData(o.opts.Version, intendedForList)
	if err != nil {
		return 0, 0, err
	}

	for _, src := range srcFiles {
		ext := strings.Join(bidsSuffixes(filepath.Base(src)), "")
		if ext == "" {
			o.logger.Debug("Ignoring file without a BIDS extension", "file", src)
			continue
		}
		compress := o.opts.CompressNifti && ext == ".nii"
		if compress {
			ext = ".nii.gz"
		}
		dst := dstRoot + ext

		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return moved, skipped, fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
		}

		if _, err := os.Stat(dst); err == nil {
			if !o.opts.Clobber {
				o.logger.Info("Destination already exists, use --clobber to overwrite", "file", dst)
				skipped++
				continue
			}
			if err := os.Remove(dst); err != nil {
				return moved, skipped, errors.NewDcm2bidsError(errors.DestinationExists, "cannot replace "+dst, err, nil)
			}
		}

		var action string
		switch {
		case ext == ".json":
			action = "write"
			err = writeSidecar(sidecarData, src, dst)
		case compress:
			action = "gzip"
			err = gzipFile(src, dst)
		default:
			action, err = moveFile(src, dst)
		}
		if err != nil {
			return moved, skipped, err
		}

		o.logger.Debug("Placed file", "src", src, "dst", dst, "action", action)
		moved++
		o.record(acq, src, dst, action)
	}

	o.logger.Info("Acquisition placed", "acquisition", acq.String(), "files", moved)
	return moved, skipped, nil
}

func writeSidecar(data map[string]interface{}, src, dst string) error {
	if err := WriteJSON(dst, data); err != nil {
		return err
	}
	return os.Remove(src)
}

func (o *Organizer) record(acq *bids.Acquisition, src, dst, action string) {
	if o.recorder == nil {
		return
	}
	rel, err := paths.CanonicalizePath(dst, o.opts.BIDSDir)
	if err != nil {
		rel = dst
	}
	if err := o.recorder.RecordMove(acq.String(), src, rel, action); err != nil {
		o.logger.Warn("Failed to record move", "dst", rel, "error", err.Error())
	}
}

// WriteJSON writes data with a 4-space indent.
func WriteJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
