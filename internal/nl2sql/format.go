package nl2sql

import "strings"

// TidySQL strips markdown fences and surrounding whitespace from raw model
// output and upper-cases SQL keywords.
func TidySQL(raw string) string {
	return strings.TrimSpace(UppercaseKeywords(stripMarkdownSQL(raw)))
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isFenceLanguage(body[:nl]) {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "sql")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceLanguage(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sql", "pgsql", "psql", "postgres", "postgresql":
		return true
	default:
		return false
	}
}

var sqlKeywords = map[string]struct{}{}

func init() {
	for _, kw := range strings.Fields(`
		all alter and any as asc between by case cast create cross current_date
		current_time current_timestamp delete desc distinct drop else end except
		exists false fetch filter first from full group having ilike in inner
		insert intersect interval into is join lateral left like limit next not
		null nulls offset on only or order outer over partition returning right
		rows select set table then true union update using values when where
		window with`) {
		sqlKeywords[kw] = struct{}{}
	}
}

// UppercaseKeywords upper-cases SQL keywords outside string literals, quoted
// identifiers, dollar-quoted bodies and comments. Qualified names such as
// t.order are left alone.
func UppercaseKeywords(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	n := len(sql)
	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			j := skipQuoted(sql, i, c)
			b.WriteString(sql[i:j])
			i = j
		case c == '-' && i+1 < n && sql[i+1] == '-':
			j := strings.IndexByte(sql[i:], '\n')
			if j < 0 {
				j = n
			} else {
				j += i
			}
			b.WriteString(sql[i:j])
			i = j
		case c == '/' && i+1 < n && sql[i+1] == '*':
			j := strings.Index(sql[i+2:], "*/")
			if j < 0 {
				j = n
			} else {
				j += i + 4
			}
			b.WriteString(sql[i:j])
			i = j
		case c == '$':
			j := skipDollarQuoted(sql, i)
			b.WriteString(sql[i:j])
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentPart(sql[j]) {
				j++
			}
			word := sql[i:j]
			qualified := i > 0 && sql[i-1] == '.'
			if _, ok := sqlKeywords[strings.ToLower(word)]; ok && !qualified {
				b.WriteString(strings.ToUpper(word))
			} else {
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// skipQuoted returns the index after the literal starting at i. A doubled
// quote is an escaped quote.
func skipQuoted(s string, i int, quote byte) int {
	j := i + 1
	for j < len(s) {
		if s[j] == quote {
			if j+1 < len(s) && s[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(s)
}

func skipDollarQuoted(s string, i int) int {
	j := i + 1
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		// positional parameter such as $1
		return j
	}
	tag := s[i : j+1]
	end := strings.Index(s[j+1:], tag)
	if end < 0 {
		return len(s)
	}
	return j + 1 + end + len(tag)
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
