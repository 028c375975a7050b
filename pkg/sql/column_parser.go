package sql

import (
	"regexp"
	"strings"
)

// ParsedColumn represents a column extracted from a SELECT statement.
type ParsedColumn struct {
	Name string // The column name or alias, as written
	Expr string // The full expression (e.g., "SUM(amount)")
}

var (
	asAliasPattern   = regexp.MustCompile("(?i)\\s+as\\s+(`[^`]+`|\"[^\"]+\"|'[^']+'|\\w+)\\s*$")
	funcNamePattern  = regexp.MustCompile(`^(\w+)\s*\(`)
	nonWordPattern   = regexp.MustCompile(`[^\w]`)
	implicitKeywords = map[string]bool{
		"from": true, "where": true, "group": true, "order": true, "limit": true,
		"and": true, "or": true, "as": true, "end": true, "desc": true, "asc": true,
		"distinct": true, "null": true,
	}
)

// ParseSelectColumns extracts the main SELECT list of a statement.
// It handles:
// - Simple and table-qualified columns: SELECT u.name, o.total
// - Aliases with or without AS, quoted or backticked: COUNT(*) AS `total`
// - Functions and CASE expressions, including commas nested in parentheses
// - Subqueries and string literals inside the list
//
// Returns nil for SELECT * because names cannot be known without a schema;
// use IsSelectStar to detect that case.
func ParseSelectColumns(sqlQuery string) ([]ParsedColumn, error) {
	if IsSelectStar(sqlQuery) {
		return nil, nil
	}

	var result []ParsedColumn
	for _, col := range SelectListItems(sqlQuery) {
		result = append(result, parseColumnExpression(col))
	}
	return result, nil
}

// SelectListItems splits the main select list into its top-level items,
// stars included, with surrounding whitespace trimmed.
func SelectListItems(sqlQuery string) []string {
	list := SelectList(strings.TrimSpace(sqlQuery))
	if list == "" {
		return nil
	}

	var items []string
	for _, col := range splitTopLevel(list, maskLiterals(list, false)) {
		if col = strings.TrimSpace(col); col != "" {
			items = append(items, col)
		}
	}
	return items
}

// IsSelectStar reports whether the main select list is "*" or starts with
// a bare or qualified star ("p.*").
func IsSelectStar(sqlQuery string) bool {
	list := SelectList(sqlQuery)
	for _, col := range splitTopLevel(list, maskLiterals(list, false)) {
		col = strings.TrimSpace(col)
		if col == "*" || strings.HasSuffix(col, ".*") {
			return true
		}
	}
	return false
}

// parseColumnExpression parses a single column expression to extract the name/alias.
// Examples:
//   - "name" → name
//   - "u.name" → name
//   - "name AS customer_name" → customer_name
//   - "COUNT(*)" → count
//   - "SUM(amount) total" → total
func parseColumnExpression(expr string) ParsedColumn {
	masked := maskLiterals(expr, false)

	if loc := asAliasPattern.FindStringSubmatchIndex(masked); loc != nil {
		return ParsedColumn{
			Name: strings.Trim(expr[loc[2]:loc[3]], "`\"'"),
			Expr: strings.TrimSpace(expr[:loc[0]]),
		}
	}

	// Implicit alias: "COUNT(*) total". The last token must sit outside
	// any parentheses and must not be a keyword.
	if strings.Count(masked, "(") == strings.Count(masked, ")") {
		fields := strings.Fields(masked)
		if len(fields) > 1 {
			last := fields[len(fields)-1]
			prev := fields[len(fields)-2]
			if !strings.ContainsAny(last, "()'+-*/=<>,") &&
				!implicitKeywords[strings.ToLower(last)] &&
				!strings.ContainsAny(prev[len(prev)-1:], "+-*/=<>,") {
				idx := strings.LastIndex(masked, last)
				return ParsedColumn{
					Name: strings.Trim(expr[idx:idx+len(last)], "`\""),
					Expr: strings.TrimSpace(expr[:idx]),
				}
			}
		}
	}

	return ParsedColumn{
		Name: extractColumnName(expr),
		Expr: expr,
	}
}

// extractColumnName derives the name a driver would report for an
// un-aliased expression.
func extractColumnName(expr string) string {
	expr = strings.TrimSpace(expr)

	// Function calls report their function name: "COUNT(*)" → "count"
	if matches := funcNamePattern.FindStringSubmatch(expr); matches != nil {
		return strings.ToLower(matches[1])
	}

	if strings.HasPrefix(strings.ToLower(expr), "case") {
		return "case_result"
	}

	// Remove table qualifiers (e.g., "users.name" → "name")
	if dotIdx := strings.LastIndex(expr, "."); dotIdx != -1 {
		expr = expr[dotIdx+1:]
	}

	name := strings.Trim(expr, "`\"[]")
	return nonWordPattern.ReplaceAllString(strings.TrimSpace(name), "")
}
