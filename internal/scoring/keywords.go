package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// containsWord reports whether needle occurs in haystack on word
// boundaries. Both are expected to be lower-case.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for offset := 0; offset <= len(haystack)-len(needle); {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// firstKeyword returns the first keyword of list found in haystack.
func firstKeyword(haystack string, list []string) (string, bool) {
	for _, kw := range list {
		if containsWord(haystack, strings.ToLower(strings.TrimSpace(kw))) {
			return kw, true
		}
	}
	return "", false
}

func containsAny(haystack string, list []string) bool {
	for _, marker := range list {
		if m := strings.ToLower(marker); m != "" && strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

func inList(value string, list []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	for _, item := range list {
		if strings.ToLower(strings.TrimSpace(item)) == value {
			return true
		}
	}
	return false
}
