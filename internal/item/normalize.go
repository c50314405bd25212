package item

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Clean tidies a name or category as typed by the user:
// 1. Trim leading/trailing whitespace
// 2. Collapse internal whitespace to single spaces
//
// Case is preserved, so "Parts" and "parts" stay distinct categories.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
