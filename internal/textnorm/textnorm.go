// Package textnorm folds identifiers and page text into a canonical form for
// containment search. Normalized strings are never displayed or exported.
package textnorm

import "strings"

// Normalize lower-cases s and drops every character outside [a-z0-9].
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Contains reports whether the normalized needle occurs in an already
// normalized haystack. Needles shorter than minLen after normalization never
// match.
func Contains(haystackNorm, needle string, minLen int) bool {
	n := Normalize(needle)
	if n == "" || len(n) < minLen {
		return false
	}
	return strings.Contains(haystackNorm, n)
}
