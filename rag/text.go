package rag

import "unicode/utf8"

// Clamp returns at most max characters of s. Counting is by rune so
// multi-byte text is never cut mid-character.
func Clamp(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Len returns the character count of s.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}
