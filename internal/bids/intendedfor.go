package bids

import (
	"fmt"
	"math"
)

// IntendedFor is either "not requested" or a non-empty list of indices into
// the per-description list of IntendedFor paths.
type IntendedFor struct {
	indices []int
}

// NoIntendedFor returns the value meaning no IntendedFor key is written.
func NoIntendedFor() IntendedFor {
	return IntendedFor{}
}

// IntendedForIndices returns a value requesting the paths of the given
// indices. Calling it with no indices is the same as NoIntendedFor.
func IntendedForIndices(indices ...int) IntendedFor {
	if len(indices) == 0 {
		return IntendedFor{}
	}
	return IntendedFor{indices: append([]int(nil), indices...)}
}

// Requested reports whether IntendedFor should be resolved at all.
func (f IntendedFor) Requested() bool {
	return len(f.indices) > 0
}

// Indices returns a copy of the requested indices.
func (f IntendedFor) Indices() []int {
	return append([]int(nil), f.indices...)
}

func (f IntendedFor) String() string {
	if !f.Requested() {
		return "none"
	}
	return fmt.Sprint(f.indices)
}

// ParseIntendedFor converts a decoded config value into an IntendedFor.
// nil means not requested, a scalar becomes a one-element list and a list is
// kept in order. Numbers may arrive as any integer type or as integral floats
// (encoding/json); anything else is an error.
func ParseIntendedFor(v interface{}) (IntendedFor, error) {
	if v == nil {
		return NoIntendedFor(), nil
	}

	switch list := v.(type) {
	case []interface{}:
		indices := make([]int, 0, len(list))
		for _, item := range list {
			idx, err := toIndex(item)
			if err != nil {
				return IntendedFor{}, err
			}
			indices = append(indices, idx)
		}
		return IntendedForIndices(indices...), nil
	case []int:
		return IntendedForIndices(list...), nil
	}

	idx, err := toIndex(v)
	if err != nil {
		return IntendedFor{}, err
	}
	return IntendedForIndices(idx), nil
}

func toIndex(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("intendedFor index %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("intendedFor value %v (%T) is not an integer", v, v)
	}
}
