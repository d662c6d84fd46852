// Package rules rewrites natural-language questions into SQL-friendly tokens
// before they are embedded in a model prompt. Phrases (relative dates, column
// vocabulary) are substituted first, then month/year expressions become
// Oracle style date literals such as 01-JAN-24.
package rules

import (
	"strings"
	"sync"
)

// SubstitutionKind tells which pass produced a substitution.
type SubstitutionKind string

const (
	KindPhrase SubstitutionKind = "phrase"
	KindDate   SubstitutionKind = "date"
)

// Substitution records one replaced span.
type Substitution struct {
	Kind        SubstitutionKind `json:"kind"`
	Key         string           `json:"key,omitempty"`
	Match       string           `json:"match"`
	Replacement string           `json:"replacement"`
}

// Normalizer applies a Vocabulary. It holds no mutable state and is safe for
// concurrent use.
type Normalizer struct {
	vocab *Vocabulary
}

func New(vocab *Vocabulary) *Normalizer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Normalizer{vocab: vocab}
}

var defaultNormalizer = sync.OnceValue(func() *Normalizer {
	return New(DefaultVocabulary())
})

// Normalize rewrites text with the built-in vocabulary.
func Normalize(text string) string {
	return defaultNormalizer().Normalize(text)
}

// Vocabulary returns the tables used by n.
func (n *Normalizer) Vocabulary() *Vocabulary {
	return n.vocab
}

// Normalize returns text with phrases and date expressions replaced. Text
// without recognizable terms is returned unchanged.
func (n *Normalizer) Normalize(text string) string {
	out, _ := n.apply(text, false)
	return out
}

// Explain is Normalize plus the ordered list of substitutions it made.
func (n *Normalizer) Explain(text string) (string, []Substitution) {
	return n.apply(text, true)
}

func (n *Normalizer) apply(text string, record bool) (string, []Substitution) {
	if text == "" {
		return text, nil
	}
	var subs []Substitution

	for _, p := range n.vocab.phrases {
		var matched []string
		text, matched = replaceWholeWord(p.re, text, p.Value)
		if record {
			for _, m := range matched {
				subs = append(subs, Substitution{Kind: KindPhrase, Key: p.Key, Match: m, Replacement: p.Value})
			}
		}
	}

	matches := findWholeWord(n.vocab.dateRe, text, 1)
	if len(matches) == 0 {
		return text, subs
	}

	var b strings.Builder
	b.Grow(len(text) + 8*len(matches))
	last := 0
	for _, m := range matches {
		// m[2:4] month, m[4:6] year
		if inDateLiteral(text, m[2]) {
			continue
		}
		month := text[m[2]:m[3]]
		year := ""
		if m[4] >= 0 {
			year = text[m[4]:m[5]]
		}
		literal := n.dateLiteral(month, year)

		b.WriteString(text[last:m[0]])
		b.WriteString(literal)
		last = m[1]
		if record {
			subs = append(subs, Substitution{Kind: KindDate, Match: text[m[0]:m[1]], Replacement: literal})
		}
	}
	b.WriteString(text[last:])
	return b.String(), subs
}

func (n *Normalizer) dateLiteral(month, year string) string {
	code, ok := n.vocab.LookupMonth(month)
	if !ok {
		code = strings.ToUpper(month)
	}
	if year == "" {
		return "01-" + code
	}
	return "01-" + code + "-" + year[len(year)-2:]
}
