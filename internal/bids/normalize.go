package bids

import "strings"

// Separator joins the tokens of a BIDS filename.
const Separator = "_"

// Normalize returns value with a leading sep, or "" when value is blank.
// A value that already starts with sep is returned unchanged.
func Normalize(value, sep string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	if strings.HasPrefix(value, sep) {
		return value
	}
	return sep + value
}
