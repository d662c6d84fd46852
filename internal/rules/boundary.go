package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RE2's \b only knows ASCII word characters. Whole-word matching here uses
// Unicode letters, numbers and marks instead, so "étoday" has no boundary
// before "today".

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.M, r)
}

func runeBefore(s string, i int) (rune, bool) {
	if i <= 0 {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r, true
}

func wordBoundary(s string, i int) bool {
	before := false
	if r, ok := runeBefore(s, i); ok {
		before = isWordRune(r)
	}
	after := false
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

// findWholeWord returns the submatch index slices of re in s whose group
// sits on word boundaries at both ends. Group 0 is the whole match. A
// candidate that fails the check is retried one rune further on, so a
// rejected span never hides a valid match that starts inside it.
func findWholeWord(re *regexp.Regexp, s string, group int) [][]int {
	var out [][]int
	for pos := 0; pos < len(s); {
		loc := re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		start, end := loc[2*group], loc[2*group+1]
		if loc[1] > loc[0] && wordBoundary(s, start) && wordBoundary(s, end) {
			out = append(out, loc)
			pos = loc[1]
			continue
		}
		_, size := utf8.DecodeRuneInString(s[loc[0]:])
		pos = loc[0] + max(size, 1)
	}
	return out
}

// inDateLiteral reports whether the month token at i follows a two digit day
// and a dash that start a word, as in 01-JAN-24.
func inDateLiteral(s string, i int) bool {
	if i < 3 || s[i-1] != '-' || !isASCIIDigit(s[i-2]) || !isASCIIDigit(s[i-3]) {
		return false
	}
	r, ok := runeBefore(s, i-3)
	return !ok || !isWordRune(r)
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// replaceWholeWord substitutes value for every whole-word match of re and
// returns the matched spans.
func replaceWholeWord(re *regexp.Regexp, s, value string) (string, []string) {
	locs := findWholeWord(re, s, 0)
	if len(locs) == 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s) + len(locs)*len(value))
	matched := make([]string, 0, len(locs))
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		b.WriteString(value)
		matched = append(matched, s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String(), matched
}
