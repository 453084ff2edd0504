// Package sidecar loads the JSON files written by dcm2niix and pairs them
// with the descriptions of a config.
package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dcm2bids/internal/errors"
)

// FilenameKey is the pseudo field holding the sidecar's file name. It can be
// used in criteria and comparison keys but is never written back.
const FilenameKey = "SidecarFilename"

// Sidecar is one dcm2niix JSON file.
type Sidecar struct {
	path string
	root string
	data map[string]interface{}
}

// Load reads a sidecar from disk.
func Load(path string) (*Sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDcm2bidsError(errors.SidecarUnreadable, "cannot read sidecar "+path, err, nil)
	}

	data, err := decode(raw)
	if err != nil {
		return nil, errors.NewDcm2bidsError(errors.SidecarUnreadable, "cannot decode sidecar "+path, err, nil)
	}

	return New(path, data), nil
}

// decode keeps numbers as json.Number so that integers written back to the
// BIDS tree keep every digit.
func decode(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	data := map[string]interface{}{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected content after the sidecar object")
	}
	return data, nil
}

// New wraps already decoded content.
func New(path string, data map[string]interface{}) *Sidecar {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Sidecar{
		path: path,
		root: strings.TrimSuffix(path, filepath.Ext(path)),
		data: data,
	}
}

// Path is the file the sidecar was read from.
func (s *Sidecar) Path() string { return s.path }

// Root is the path without the .json extension. Every file produced for the
// same series shares it.
func (s *Sidecar) Root() string { return s.root }

// Data is the sidecar content, without FilenameKey.
func (s *Sidecar) Data() map[string]interface{} { return s.data }

// Filename is the base name of the sidecar file.
func (s *Sidecar) Filename() string { return filepath.Base(s.path) }

// Field returns a value for matching and ordering. FilenameKey resolves to
// the file name unless the content defines it.
func (s *Sidecar) Field(key string) (interface{}, bool) {
	if v, ok := s.data[key]; ok {
		return v, true
	}
	if key == FilenameKey {
		return s.Filename(), true
	}
	return nil, false
}

func (s *Sidecar) String() string { return s.Filename() }

// LoadAll reads every *.json file directly under dir, in name order.
// Files that cannot be decoded are logged and skipped.
func LoadAll(dir string, logger *slog.Logger) ([]*Sidecar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sidecars: %w", err)
	}

	var sidecars []*Sidecar
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}

		sc, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("Skipping sidecar", "file", entry.Name(), "error", err.Error())
			continue
		}
		sidecars = append(sidecars, sc)
	}

	return sidecars, nil
}

// Sort orders sidecars by the values of keys, compared in turn. Numbers
// compare numerically, anything else as text, and a missing value sorts
// first.
func Sort(sidecars []*Sidecar, keys []string) {
	sort.SliceStable(sidecars, func(i, j int) bool {
		for _, key := range keys {
			a, aok := sidecars[i].Field(key)
			b, bok := sidecars[j].Field(key)
			if c := compareValues(a, aok, b, bok); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compareValues(a interface{}, aok bool, b interface{}, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}

	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	return strings.Compare(FormatValue(a), FormatValue(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// FormatValue renders a sidecar or criteria value as text for matching.
// Integral numbers have no decimals and booleans are True/False.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return val.String()
		}
		if f, err := val.Float64(); err == nil {
			return FormatValue(f)
		}
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
