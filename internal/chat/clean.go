package chat

import "strings"

var reasoningTags = []string{"reasoning", "think"}

// CleanResponse removes the first well-formed reasoning block (and one
// blank line following it) from a backend answer and trims the result.
// Unmatched markers are left in place.
func CleanResponse(text string) string {
	start, end := -1, -1
	for _, tag := range reasoningTags {
		openTag, closeTag := "<"+tag+">", "</"+tag+">"
		i := strings.Index(text, openTag)
		if i < 0 {
			continue
		}
		j := strings.Index(text[i+len(openTag):], closeTag)
		if j < 0 {
			continue
		}
		if start < 0 || i < start {
			start = i
			end = i + len(openTag) + j + len(closeTag)
		}
	}
	if start < 0 {
		return strings.TrimSpace(text)
	}
	rest := strings.TrimPrefix(text[end:], "\n\n")
	return strings.TrimSpace(text[:start] + rest)
}
