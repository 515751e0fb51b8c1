package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the closed list of values for one string enum.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

// parse matches raw against the set after trimming. With fold the match
// ignores case. kind names the enum in the error.
func (s set[T]) parse(kind, raw string, fold bool) (T, error) {
	trimmed := strings.TrimSpace(raw)
	for _, candidate := range s {
		if string(candidate) == trimmed || (fold && strings.EqualFold(string(candidate), trimmed)) {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
