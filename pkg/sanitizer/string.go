package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims s and collapses every run of whitespace to a single
// space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName is applied to resource names and holders, so "Table  1"
// and "Table 1" name the same resource.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNotes trims notes and drops control characters other than line
// breaks and tabs, keeping the author's line layout.
func NormalizeNotes(notes string) string {
	notes = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, notes)
	return strings.TrimSpace(notes)
}
