// Package dicominfo summarizes the DICOM series found under a directory.
// It is what users look at before writing description criteria.
package dicominfo

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Series is one acquisition as stored by the scanner.
type Series struct {
	Number      string `json:"SeriesNumber"`
	Description string `json:"SeriesDescription"`
	Protocol    string `json:"ProtocolName"`
	Modality    string `json:"Modality"`
	UID         string `json:"SeriesInstanceUID"`
	Files       int    `json:"files"`
}

// Result lists the series in series-number order.
type Result struct {
	Series []Series `json:"series"`
	// Skipped counts files that were not readable DICOM.
	Skipped int `json:"skipped"`
}

// Options tune Inspect.
type Options struct {
	// Workers bounds concurrent parsing; defaults to GOMAXPROCS.
	Workers int
}

// Inspect walks dir and parses every regular file as DICOM. Files that fail
// to parse are counted and skipped.
func Inspect(ctx context.Context, dir string, opts Options, logger *slog.Logger) (*Result, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu      sync.Mutex
		series  = map[string]*Series{}
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			h, err := readHeader(path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Debug("Skipping non-DICOM file", "file", path, "error", err.Error())
				skipped++
				return nil
			}

			key := h.SeriesInstanceUID
			if key == "" {
				key = h.SeriesNumber + "\x00" + h.SeriesDescription
			}
			s, ok := series[key]
			if !ok {
				s = &Series{
					Number:      h.SeriesNumber,
					Description: h.SeriesDescription,
					Protocol:    h.ProtocolName,
					Modality:    h.Modality,
					UID:         h.SeriesInstanceUID,
				}
				series[key] = s
			}
			s.Files++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Skipped: skipped, Series: make([]Series, 0, len(series))}
	for _, s := range series {
		result.Series = append(result.Series, *s)
	}
	sort.Slice(result.Series, func(i, j int) bool {
		return lessSeries(result.Series[i], result.Series[j])
	})

	logger.Info("Inspected DICOM directory", "dir", dir, "files", len(files), "series", len(result.Series), "skipped", skipped)
	return result, nil
}

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func lessSeries(a, b Series) bool {
	na, errA := strconv.Atoi(a.Number)
	nb, errB := strconv.Atoi(b.Number)
	switch {
	case errA == nil && errB == nil && na != nb:
		return na < nb
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	}
	if a.Description != b.Description {
		return a.Description < b.Description
	}
	return a.UID < b.UID
}
