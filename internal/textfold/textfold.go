// Package textfold normalizes user-entered text for matching.
package textfold

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold applies NFKC (full-width ASCII becomes half-width, half-width katakana
// becomes full-width with voicing marks composed), case-folds, and trims
// surrounding whitespace. The result is only meant for comparisons.
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	// Casers carry state and must not be shared between goroutines.
	return cases.Fold().String(s)
}

// Fields folds s and splits it on any Unicode whitespace, including the
// ideographic space (U+3000) common in Japanese input.
func Fields(s string) []string {
	return strings.Fields(Fold(s))
}

// Contains reports whether needle occurs in haystack after folding both.
func Contains(haystack, needle string) bool {
	n := Fold(needle)
	if n == "" {
		return true
	}
	return strings.Contains(Fold(haystack), n)
}
