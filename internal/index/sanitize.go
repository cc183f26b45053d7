package index

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitize turns free text into search terms. Hyphens separate words; every
// rune that is not a letter or whitespace is dropped. The result may be empty.
func Sanitize(input string) []string {
	s := norm.NFKC.String(input)
	s = strings.ReplaceAll(s, "-", " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// MatchExpression builds a disjunctive FTS5 query from sanitized terms.
func MatchExpression(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
