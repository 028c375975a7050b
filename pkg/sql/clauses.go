package sql

import (
	"regexp"
	"strings"
)

// whereTerminators end a top-level WHERE clause.
var whereTerminators = []string{"GROUP BY", "HAVING", "ORDER BY", "LIMIT", "OFFSET", "UNION", "WINDOW", "FOR", "INTERSECT", "EXCEPT"}

var aggregatePattern = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max|group_concat|string_agg|array_agg)\s*\(`)

var countPattern = regexp.MustCompile(`(?i)\bcount\s*\(`)

// mainSelectBounds returns the offsets of the main SELECT keyword and its
// FROM keyword (or -1 when there is no FROM).
func mainSelectBounds(masked string) (selectIdx, fromIdx int) {
	selectIdx = indexTopLevel(masked, "SELECT", 0)
	if selectIdx == -1 {
		return -1, -1
	}
	fromIdx = indexTopLevel(masked, "FROM", selectIdx)
	return selectIdx, fromIdx
}

// SelectList returns the text between the main SELECT (and any DISTINCT)
// and its FROM.
func SelectList(sqlQuery string) string {
	masked := maskLiterals(sqlQuery, false)
	selectIdx, fromIdx := mainSelectBounds(masked)
	if selectIdx == -1 {
		return ""
	}
	end := fromIdx
	if end == -1 {
		end = firstTopLevel(masked, selectIdx, whereTerminators)
	}
	list := strings.TrimSpace(sqlQuery[selectIdx+len("SELECT") : end])
	upper := strings.ToUpper(list)
	for _, mod := range []string{"DISTINCT ", "ALL ", "SQL_CALC_FOUND_ROWS ", "SQL_NO_CACHE "} {
		if strings.HasPrefix(upper, mod) {
			list = strings.TrimSpace(list[len(mod):])
			upper = strings.ToUpper(list)
		}
	}
	return list
}

// firstTopLevel returns the smallest offset >= from of any terminator at
// depth zero, or len(masked).
func firstTopLevel(masked string, from int, terminators []string) int {
	end := len(masked)
	for _, kw := range terminators {
		if idx := indexTopLevel(masked, kw, from); idx != -1 && idx < end {
			end = idx
		}
	}
	return end
}

// whereBounds returns the offsets of the main statement's WHERE keyword and
// the end of its condition, or (-1, -1).
func whereBounds(masked string) (int, int) {
	_, fromIdx := mainSelectBounds(masked)
	if fromIdx == -1 {
		return -1, -1
	}
	whereIdx := indexTopLevel(masked, "WHERE", fromIdx)
	if whereIdx == -1 {
		return -1, -1
	}
	return whereIdx, firstTopLevel(masked, whereIdx+len("WHERE"), whereTerminators)
}

// ExtractWhereClause returns the main statement's WHERE condition without
// the keyword, or "" when there is none.
func ExtractWhereClause(sqlQuery string) string {
	masked := maskLiterals(sqlQuery, false)
	start, end := whereBounds(masked)
	if start == -1 {
		return ""
	}
	return strings.TrimSpace(sqlQuery[start+len("WHERE") : end])
}

// RemoveWhereClause returns the statement with its main WHERE clause cut out.
func RemoveWhereClause(sqlQuery string) string {
	masked := maskLiterals(sqlQuery, false)
	start, end := whereBounds(masked)
	if start == -1 {
		return sqlQuery
	}
	head := strings.TrimRight(sqlQuery[:start], " \t\r\n")
	tail := strings.TrimLeft(sqlQuery[end:], " \t\r\n")
	if tail == "" {
		return head
	}
	return head + " " + tail
}

// SplitConjuncts splits a condition on top-level AND, keeping the AND that
// belongs to BETWEEN x AND y.
func SplitConjuncts(condition string) []string {
	masked := maskLiterals(condition, false)
	var parts []string
	start, scan := 0, 0
	for {
		idx := indexTopLevel(masked, "AND", scan)
		if idx == -1 {
			break
		}
		seg := masked[start:idx]
		if len(betweenPattern.FindAllStringIndex(seg, -1)) > len(andPattern.FindAllStringIndex(seg, -1)) {
			scan = idx + len("AND")
			continue
		}
		if p := strings.TrimSpace(condition[start:idx]); p != "" {
			parts = append(parts, p)
		}
		start = idx + len("AND")
		scan = start
	}
	if p := strings.TrimSpace(condition[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

var (
	betweenPattern = regexp.MustCompile(`(?i)\bbetween\b`)
	andPattern     = regexp.MustCompile(`(?i)\band\b`)
)

// functionsWithFrom use FROM inside their argument list.
var functionsWithFrom = map[string]bool{
	"EXTRACT": true, "TRIM": true, "SUBSTRING": true, "SUBSTR": true, "POSITION": true, "OVERLAY": true,
}

// enclosingFunction returns the upper-cased name of the function whose
// argument list contains pos, or "".
func enclosingFunction(masked string, pos int) string {
	depth := 0
	for i := pos - 1; i >= 0; i-- {
		switch masked[i] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--
				continue
			}
			j := i
			for j > 0 && (masked[j-1] == ' ' || masked[j-1] == '\t') {
				j--
			}
			k := j
			for k > 0 && isWordByte(masked[k-1]) {
				k--
			}
			return strings.ToUpper(masked[k:j])
		}
	}
	return ""
}

var joinKeyword = regexp.MustCompile(`(?i)\b(from|join)\b`)

// ExtractTables returns table names referenced after FROM and JOIN, in
// order of first appearance, unquoted and without schema qualifiers.
// Derived tables are skipped; tables inside them are still found.
// Parenthesized table references such as "FROM (t1, t2)" are read as lists.
func ExtractTables(sqlQuery string) []string {
	masked := maskLiterals(sqlQuery, false)
	seen := make(map[string]bool)
	var tables []string

	add := func(name string) {
		name = unquoteIdentifier(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		tables = append(tables, name)
	}

	for _, loc := range joinKeyword.FindAllStringSubmatchIndex(masked, -1) {
		isFrom := strings.EqualFold(masked[loc[2]:loc[3]], "from")
		if isFrom && functionsWithFrom[enclosingFunction(masked, loc[0])] {
			continue
		}
		pos := loc[1]
		depth := 0
		for {
			pos = skipSpace(masked, pos)
			for pos < len(masked) && masked[pos] == '(' && !startsSubquery(masked, pos+1) {
				pos = skipSpace(masked, pos+1)
				depth++
			}
			if pos >= len(masked) || masked[pos] == '(' {
				break
			}
			ident, next := readIdentifier(masked, pos)
			if ident == "" {
				break
			}
			add(sqlQuery[pos:next])
			pos = skipSpace(masked, skipAlias(masked, next))
			for depth > 0 && pos < len(masked) && masked[pos] == ')' {
				pos = skipSpace(masked, pos+1)
				depth--
			}
			if pos < len(masked) && masked[pos] == ',' && (isFrom || depth > 0) {
				pos++
				continue
			}
			break
		}
	}
	return tables
}

// startsSubquery reports whether the text at pos opens a SELECT or WITH.
func startsSubquery(s string, pos int) bool {
	word, _ := readIdentifier(s, skipSpace(s, pos))
	return strings.EqualFold(word, "SELECT") || strings.EqualFold(word, "WITH")
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n' || s[pos] == '\r') {
		pos++
	}
	return pos
}

// readIdentifier reads a possibly quoted, possibly dotted identifier.
func readIdentifier(s string, pos int) (string, int) {
	start := pos
	for pos < len(s) {
		c := s[pos]
		switch {
		case c == '`' || c == '"':
			end := strings.IndexByte(s[pos+1:], c)
			if end == -1 {
				return "", start
			}
			pos += end + 2
		case isWordByte(c) || c == '.':
			pos++
		default:
			return s[start:pos], pos
		}
	}
	return s[start:pos], pos
}

var clauseWords = map[string]bool{
	"WHERE": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "OUTER": true, "ON": true, "USING": true, "GROUP": true, "ORDER": true,
	"LIMIT": true, "HAVING": true, "UNION": true, "NATURAL": true, "STRAIGHT_JOIN": true,
	"OFFSET": true, "WINDOW": true, "FOR": true,
}

// skipAlias skips an optional "AS alias" / "alias" after a table name.
func skipAlias(s string, pos int) int {
	p := skipSpace(s, pos)
	word, next := readIdentifier(s, p)
	if strings.EqualFold(word, "AS") {
		p = skipSpace(s, next)
		_, next = readIdentifier(s, p)
		return next
	}
	if word != "" && !clauseWords[strings.ToUpper(word)] {
		return next
	}
	return pos
}

// HasAggregate reports whether an expression calls an aggregate function.
func HasAggregate(expr string) bool {
	return aggregatePattern.MatchString(maskLiterals(expr, false))
}

// HasGroupBy reports whether the main statement groups rows.
func HasGroupBy(sqlQuery string) bool {
	return indexTopLevel(maskLiterals(sqlQuery, false), "GROUP BY", 0) != -1
}

// IsCountShaped reports whether the statement returns a single COUNT scalar:
// one select-list column containing COUNT(...) and no GROUP BY.
func IsCountShaped(sqlQuery string) bool {
	cols, err := ParseSelectColumns(sqlQuery)
	if err != nil || len(cols) != 1 {
		return false
	}
	return countPattern.MatchString(cols[0].Expr) && !HasGroupBy(sqlQuery)
}

// HasLimit reports whether the main statement carries its own LIMIT.
func HasLimit(sqlQuery string) bool {
	return indexTopLevel(maskLiterals(sqlQuery, false), "LIMIT", 0) != -1
}

var ctePattern = regexp.MustCompile("(?i)(?:^\\s*with\\s+(?:recursive\\s+)?|,\\s*)([\\w`\"]+)\\s*(?:\\([^()]*\\)\\s*)?as\\s*\\(")

// CTENames returns the names a WITH statement defines, so they can be told
// apart from physical tables in ExtractTables output.
func CTENames(sqlQuery string) []string {
	masked := maskLiterals(sqlQuery, false)
	if m := leadingKeyword.FindStringSubmatch(masked); m == nil || !strings.EqualFold(m[1], "WITH") {
		return nil
	}
	var names []string
	for _, loc := range ctePattern.FindAllStringSubmatchIndex(masked, -1) {
		names = append(names, unquoteIdentifier(sqlQuery[loc[2]:loc[3]]))
	}
	return names
}
