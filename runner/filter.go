package runner

import "strings"

// Filter selects tests by qualified name (<module>::<function>). The zero
// value matches everything.
type Filter struct {
	pattern string
}

// NewFilter creates a filter matching names that contain pattern
func NewFilter(pattern string) Filter {
	return Filter{pattern: pattern}
}

// Matches reports whether the qualified test name is selected
func (f Filter) Matches(name string) bool {
	return f.pattern == "" || strings.Contains(name, f.pattern)
}
