package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Phrase is one entry of the phrase table.
type Phrase struct {
	Key   string
	Value string
	re    *regexp.Regexp
}

// Vocabulary is the immutable pair of phrase and month tables. Phrases are
// kept in application order: longest key first, ties by key.
type Vocabulary struct {
	phrases []Phrase
	index   map[string]int
	months  map[string]string
	dateRe  *regexp.Regexp
}

// NewVocabulary normalizes keys, rejects duplicates and compiles the
// matchers. The input maps are not retained.
func NewVocabulary(phrases, months map[string]string) (*Vocabulary, error) {
	if len(months) == 0 {
		return nil, fmt.Errorf("month table is empty")
	}

	v := &Vocabulary{
		phrases: make([]Phrase, 0, len(phrases)),
		index:   make(map[string]int, len(phrases)),
		months:  make(map[string]string, len(months)),
	}

	seen := make(map[string]string, len(phrases))
	for rawKey, value := range phrases {
		key := NormalizeKey(rawKey)
		if key == "" {
			return nil, fmt.Errorf("phrase key %q is empty after normalization", rawKey)
		}
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("phrase %q has an empty replacement", rawKey)
		}
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("phrase keys %q and %q collide as %q", prev, rawKey, key)
		}
		seen[key] = rawKey
		v.phrases = append(v.phrases, Phrase{Key: key, Value: value, re: phrasePattern(key)})
	}
	sort.Slice(v.phrases, func(i, j int) bool {
		return phraseLess(v.phrases[i].Key, v.phrases[j].Key)
	})
	for i, p := range v.phrases {
		v.index[p.Key] = i
	}

	monthKeys := make([]string, 0, len(months))
	for rawKey, code := range months {
		key := NormalizeKey(rawKey)
		if key == "" || strings.Contains(key, " ") {
			return nil, fmt.Errorf("month key %q must be a single word", rawKey)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("month %q has an empty code", rawKey)
		}
		if _, ok := v.months[key]; ok {
			return nil, fmt.Errorf("month key %q is duplicated", rawKey)
		}
		v.months[key] = code
		monthKeys = append(monthKeys, key)
	}
	sort.Slice(monthKeys, func(i, j int) bool { return phraseLess(monthKeys[i], monthKeys[j]) })
	v.dateRe = datePattern(monthKeys)

	return v, nil
}

// NormalizeKey case-folds s and collapses runs of whitespace to one space.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Phrases returns the phrase table in application order.
func (v *Vocabulary) Phrases() []Phrase {
	out := make([]Phrase, len(v.phrases))
	copy(out, v.phrases)
	return out
}

// LookupPhrase returns the replacement for term, matched case-insensitively.
func (v *Vocabulary) LookupPhrase(term string) (string, bool) {
	i, ok := v.index[NormalizeKey(term)]
	if !ok {
		return "", false
	}
	return v.phrases[i].Value, true
}

// LookupMonth returns the month code for a month name or abbreviation.
func (v *Vocabulary) LookupMonth(token string) (string, bool) {
	code, ok := v.months[NormalizeKey(token)]
	return code, ok
}

// Validate checks that no replacement value can be re-matched by a phrase
// key or the date pattern. Cumulative substitution depends on it.
func (v *Vocabulary) Validate() error {
	for i, p := range v.phrases {
		for j, other := range v.phrases {
			if len(findWholeWord(other.re, p.Value, 0)) == 0 {
				continue
			}
			if i == j && NormalizeKey(p.Value) == p.Key {
				continue
			}
			return fmt.Errorf("replacement %q of phrase %q matches phrase %q", p.Value, p.Key, other.Key)
		}
		for _, m := range findWholeWord(v.dateRe, p.Value, 1) {
			if !inDateLiteral(p.Value, m[2]) {
				return fmt.Errorf("replacement %q of phrase %q contains month token %q", p.Value, p.Key, p.Value[m[2]:m[3]])
			}
		}
	}
	return nil
}

// phraseLess orders longer keys first so a short phrase never pre-empts a
// longer one that contains it.
func phraseLess(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la != lb {
		return la > lb
	}
	return a < b
}

func phrasePattern(key string) *regexp.Regexp {
	words := strings.Split(key, " ")
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(words, `\s+`))
}

// datePattern captures the month token and an optional 2-4 digit year.
// Word boundaries around the month are checked by findWholeWord.
func datePattern(monthKeys []string) *regexp.Regexp {
	quoted := make([]string, len(monthKeys))
	for i, k := range monthKeys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)(?:\s+(\d{2,4}))?`)
}
