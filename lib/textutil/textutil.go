package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Collapse trims a string and collapses internal whitespace runs to a
// single space.
func Collapse(s string) string {
	s = strings.TrimSpace(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NormalizeKey lower-cases a string and strips all whitespace, producing a
// form suitable for matching scraped text against known tokens.
func NormalizeKey(s string) string {
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), "")
}

func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// CourseNumber canonicalizes a catalog course number, e.g. "e  316l" to
// "E 316L". The optional one-letter session prefix is preserved.
func CourseNumber(s string) string {
	return strings.ToUpper(Collapse(s))
}
