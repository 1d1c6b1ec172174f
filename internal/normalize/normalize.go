// Package normalize holds small canonicalization helpers shared by the
// stores and handlers.
package normalize

import "strings"

// Ellipsis is appended by Truncate when text is shortened.
const Ellipsis = "..."

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Truncate cuts s to at most limit characters and appends Ellipsis when
// anything was removed. Counting is done in runes so multi-byte text is
// never split mid-character.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + Ellipsis
}
