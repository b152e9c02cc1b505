// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate returns s cut to maxLen characters, with "..." appended if it was cut.
// Lengths are counted in runes so multi-byte text is never split mid-character.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	cut := CutRunes(s, maxLen)
	if len(cut) == len(s) {
		return s
	}
	return cut + "..."
}

// CutRunes returns at most the first n runes of s without any marker.
func CutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
