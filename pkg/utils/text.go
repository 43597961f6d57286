// Package utils provides shared helpers for display text, vector math and logging.
package utils

import (
	"path/filepath"
	"unicode/utf8"
)

const ellipsis = "..."

// Truncate returns s cut to maxLen runes with "..." appended. A maxLen of 0
// or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + ellipsis
}

// TruncatePath shortens path to at most maxLen runes by dropping leading
// characters, so the file name stays visible. If the base name alone is too
// long it is shortened with Truncate instead.
func TruncatePath(path string, maxLen int) string {
	n := utf8.RuneCountInString(path)
	if maxLen <= 0 || n <= maxLen {
		return path
	}
	base := filepath.Base(path)
	if utf8.RuneCountInString(base)+len(ellipsis) >= maxLen {
		return Truncate(base, maxLen)
	}
	r := []rune(path)
	return ellipsis + string(r[n-(maxLen-len(ellipsis)):])
}
