// Package strings holds small string slice helpers for request normalisation.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims every element, drops empties and keeps the first
// occurrence of each value. Input order is preserved; nil stays nil.
//
//	DedupeAndTrim([]string{" red ", "blue", "red", ""}) // ["red" "blue"]
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
