package standardize

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// colorName folds finish and color synonyms to their canonical name.
func (s *Standardizer) colorName(v string) Result {
	lower := strings.ToLower(v)
	for _, syn := range s.rules.ColorSynonyms {
		if syn.Match != "" && containsWord(lower, syn.Match) {
			return Result{Value: syn.Canonical}
		}
	}
	return Result{Value: v}
}

// containsWord reports whether word occurs in s with no letter directly
// before or after it, so "oro" matches "oro satinato" but not "moro".
func containsWord(s, word string) bool {
	for off := 0; off <= len(s)-len(word); {
		i := strings.Index(s[off:], word)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(s) || !unicode.IsLetter(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		off = start + size
	}
	return false
}

func quote(s string) string { return strconv.Quote(s) }
