// Package sql provides SQL validation and inspection utilities for
// generated read-only statements.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyStatement indicates nothing was left after normalization.
	ErrEmptyStatement = errors.New("empty SQL statement")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize strips comments and a trailing semicolon, then
// rejects any remaining statement separator outside quoted text.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	normalized := stripTrailingSemicolon(StripComments(sqlQuery))

	if normalized == "" {
		return ValidationResult{Error: ErrEmptyStatement}
	}

	if hasSemicolonOutsideQuotes(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// PrepareReadOnly is the single gate every statement passes before
// execution: normalize, require a single statement, then enforce the
// read-only allow/deny lists. It returns the exact text to execute.
func PrepareReadOnly(sqlQuery string) (string, error) {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil {
		return "", result.Error
	}
	if err := EnforceReadOnly(result.NormalizedSQL); err != nil {
		return "", err
	}
	return result.NormalizedSQL, nil
}

// hasSemicolonOutsideQuotes returns true if the SQL contains any semicolon
// outside of string literals and quoted identifiers.
func hasSemicolonOutsideQuotes(sqlQuery string) bool {
	masked := maskLiterals(sqlQuery, true)
	inBacktick := false
	for i := 0; i < len(masked); i++ {
		switch masked[i] {
		case '`':
			inBacktick = !inBacktick
		case ';':
			if !inBacktick {
				return true
			}
		}
	}
	return false
}

// stripTrailingSemicolon removes trailing semicolons and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimSpace(sqlQuery)
	for strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSpace(strings.TrimSuffix(sqlQuery, ";"))
	}
	return sqlQuery
}
