package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotReadOnly is returned for any statement that is not a plain SELECT.
var ErrNotReadOnly = errors.New("only read-only SELECT statements are permitted")

// ReadOnlyViolation names what made a statement non-read-only.
type ReadOnlyViolation struct {
	Token string
}

func (v *ReadOnlyViolation) Error() string {
	return fmt.Sprintf("%s: found %s", ErrNotReadOnly.Error(), v.Token)
}

func (v *ReadOnlyViolation) Unwrap() error {
	return ErrNotReadOnly
}

// deniedKeywords may not appear as bare words anywhere in the statement.
// A keyword directly followed by "(" is a function call (REPLACE(), INSERT())
// and is allowed.
var deniedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"REPLACE", "GRANT", "REVOKE", "RENAME", "LOAD", "CALL", "HANDLER",
	"LOCK", "UNLOCK", "SET", "MERGE", "UPSERT", "EXEC", "EXECUTE",
	"PREPARE", "DEALLOCATE", "COPY", "VACUUM", "ATTACH", "DETACH",
	"SHUTDOWN", "KILL", "FLUSH", "INSTALL", "UNINSTALL", "INTO", "OUTFILE",
	"DUMPFILE", "COMMIT", "ROLLBACK", "SAVEPOINT", "START", "BEGIN",
}

// deniedFunctions block side effects and resource abuse from inside a SELECT.
var deniedFunctions = regexp.MustCompile(`(?i)\b(sleep|benchmark|load_file|pg_sleep|pg_read_file|pg_read_binary_file|pg_ls_dir|get_lock|release_lock|pg_advisory_lock|dblink|lo_import|lo_export)\s*\(`)

var deniedKeywordPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(deniedKeywords, "|") + `)\b(\s*\()?`)

var leadingKeyword = regexp.MustCompile(`(?i)^[\s(]*(\w+)`)

// EnforceReadOnly checks that a normalized single statement is a SELECT
// (optionally introduced by WITH) containing no data-changing keywords or
// side-effecting functions outside string literals.
func EnforceReadOnly(sqlQuery string) error {
	masked := maskLiterals(StripComments(sqlQuery), true)
	if strings.TrimSpace(masked) == "" {
		return ErrEmptyStatement
	}

	m := leadingKeyword.FindStringSubmatch(masked)
	if m == nil {
		return &ReadOnlyViolation{Token: "no leading keyword"}
	}
	switch strings.ToUpper(m[1]) {
	case "SELECT":
	case "WITH":
		if indexTopLevel(masked, "SELECT", 0) == -1 {
			return &ReadOnlyViolation{Token: "WITH without SELECT"}
		}
	default:
		return &ReadOnlyViolation{Token: strings.ToUpper(m[1])}
	}

	for _, match := range deniedKeywordPattern.FindAllStringSubmatch(masked, -1) {
		if match[2] != "" {
			continue // function call form
		}
		return &ReadOnlyViolation{Token: strings.ToUpper(match[1])}
	}

	if fn := deniedFunctions.FindStringSubmatch(masked); fn != nil {
		return &ReadOnlyViolation{Token: strings.ToUpper(fn[1]) + "()"}
	}

	return nil
}
