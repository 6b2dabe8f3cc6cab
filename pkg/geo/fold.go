package geo

import (
	"strings"
	"unicode"
)

// fold trims whitespace and surrounding periods, then title-cases.
func fold(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".")
	s = strings.TrimSpace(s)
	return titleCase(s)
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest. Digits and punctuation break runs, so "j&k" becomes
// "J&K" and "d&nh" becomes "D&Nh".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if inWord {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			inWord = true
			continue
		}
		inWord = false
		b.WriteRune(r)
	}
	return b.String()
}
