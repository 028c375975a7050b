package sql

import (
	"strings"
)

// StripComments removes "--", "#" and "/* */" comments outside of quoted
// text. MySQL executable comments ("/*! ... */") are removed as well, so
// nothing hidden in a comment reaches the server.
func StripComments(sqlQuery string) string {
	var out strings.Builder
	out.Grow(len(sqlQuery))

	var quote byte
	for i := 0; i < len(sqlQuery); i++ {
		c := sqlQuery[i]

		if quote != 0 {
			out.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(sqlQuery) {
				i++
				out.WriteByte(sqlQuery[i])
				continue
			}
			if c == quote {
				if i+1 < len(sqlQuery) && sqlQuery[i+1] == quote {
					i++
					out.WriteByte(sqlQuery[i])
					continue
				}
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == '-' && i+1 < len(sqlQuery) && sqlQuery[i+1] == '-', c == '#':
			for i < len(sqlQuery) && sqlQuery[i] != '\n' {
				i++
			}
			if i < len(sqlQuery) {
				out.WriteByte('\n')
			}
		case c == '/' && i+1 < len(sqlQuery) && sqlQuery[i+1] == '*':
			end := strings.Index(sqlQuery[i+2:], "*/")
			if end == -1 {
				i = len(sqlQuery)
			} else {
				i += end + 3
			}
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}

	return strings.TrimSpace(out.String())
}

// maskLiterals returns a copy of sqlQuery with identical byte length in which
// the contents of quoted strings are replaced by 'x'. Quote characters stay
// in place so offsets into the masked copy are valid in the original.
// Single quotes are always masked; double quotes only when maskDouble is set
// (they are string literals in MySQL but identifiers in PostgreSQL).
func maskLiterals(sqlQuery string, maskDouble bool) string {
	b := []byte(sqlQuery)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote == 0 {
			if c == '\'' || (maskDouble && c == '"') {
				quote = c
			}
			continue
		}
		if c == '\\' && i+1 < len(b) {
			b[i], b[i+1] = 'x', 'x'
			i++
			continue
		}
		if c == quote {
			if i+1 < len(b) && b[i+1] == quote {
				b[i], b[i+1] = 'x', 'x'
				i++
				continue
			}
			quote = 0
			continue
		}
		b[i] = 'x'
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// indexTopLevel finds keyword (a single word or space-separated words) in
// masked at parenthesis depth zero, starting at from. Matching is
// case-insensitive and respects word boundaries. Returns -1 if absent.
func indexTopLevel(masked, keyword string, from int) int {
	words := strings.Fields(strings.ToUpper(keyword))
	if len(words) == 0 {
		return -1
	}
	upper := strings.ToUpper(masked)
	depth := 0
	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case '(':
			depth++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if i < from || depth != 0 {
			continue
		}
		if _, ok := matchWords(upper, i, words); ok {
			return i
		}
	}
	return -1
}

// matchWords reports whether words appear at position i separated by
// whitespace, returning the index just past the last word.
func matchWords(upper string, i int, words []string) (int, bool) {
	if i > 0 && isWordByte(upper[i-1]) {
		return 0, false
	}
	pos := i
	for n, w := range words {
		if n > 0 {
			start := pos
			for pos < len(upper) && (upper[pos] == ' ' || upper[pos] == '\t' || upper[pos] == '\n' || upper[pos] == '\r') {
				pos++
			}
			if pos == start {
				return 0, false
			}
		}
		if !strings.HasPrefix(upper[pos:], w) {
			return 0, false
		}
		pos += len(w)
	}
	if pos < len(upper) && isWordByte(upper[pos]) {
		return 0, false
	}
	return pos, true
}

// splitTopLevel splits s on commas at parenthesis depth zero. masked must be
// a literal-masked copy of s with the same length.
func splitTopLevel(s, masked string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(masked); i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// unquoteIdentifier strips backticks, double quotes and brackets and returns
// the last dotted component ("db.`wp_posts`" -> "wp_posts").
func unquoteIdentifier(ident string) string {
	ident = strings.TrimSpace(ident)
	if dot := strings.LastIndex(ident, "."); dot != -1 {
		ident = ident[dot+1:]
	}
	return strings.Trim(ident, "`\"[]")
}
