package util

import (
	"strings"
	"unicode/utf8"
)

// ShortLabel shortens a title or locator for progress lines and table cells.
// Whitespace runs collapse to a single space, and labels longer than max runes
// are cut and suffixed with "...". A max below 4 disables truncation.
func ShortLabel(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max < 4 || utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
