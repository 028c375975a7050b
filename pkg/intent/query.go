package intent

import (
	"strings"
	"unicode"
)

var contractions = strings.NewReplacer(
	"what's", "what is",
	"who's", "who is",
	"how's", "how is",
	"where's", "where is",
	"when's", "when is",
	"i'd", "i would",
	"let's", "let us",
	"i'm", "i am",
	"’", "'",
)

// query is a question prepared for phrase matching.
type query struct {
	raw   string
	lower string
	// padded is the lower-cased text reduced to single-space separated
	// words with a leading and trailing space.
	padded string
	words  []string
}

func newQuery(text string) *query {
	raw := strings.TrimSpace(text)
	lower := contractions.Replace(strings.ToLower(raw))
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#'
	})
	return &query{
		raw:    raw,
		lower:  lower,
		padded: " " + strings.Join(words, " ") + " ",
		words:  words,
	}
}

// has reports whether phrase occurs on word boundaries.
func (q *query) has(phrase string) bool {
	return strings.Contains(q.padded, " "+phrase+" ")
}

// index returns the offset of phrase in the padded text, or -1.
func (q *query) index(phrase string) int {
	return strings.Index(q.padded, " "+phrase+" ")
}

func (q *query) hasAny(phrases []string) bool {
	for _, p := range phrases {
		if q.has(p) {
			return true
		}
	}
	return false
}

// leadingVerb returns the first word after any polite prefixes
// ("please could you delete ..." -> "delete").
func (q *query) leadingVerb(prefixes []string) string {
	rest := strings.TrimSpace(q.padded)
	for changed := true; changed; {
		changed = false
		for _, p := range prefixes {
			if rest == p {
				return ""
			}
			if strings.HasPrefix(rest, p+" ") {
				rest = strings.TrimSpace(rest[len(p):])
				changed = true
			}
		}
	}
	if i := strings.IndexByte(rest, ' '); i != -1 {
		return rest[:i]
	}
	return rest
}
