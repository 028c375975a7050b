package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// dateColumnToken stands in for the target date column inside conditions
// lifted from a generated WHERE clause.
const dateColumnToken = "\x00date_column\x00"

// dateFilter is a time restriction that can be re-applied to any table's
// native date column.
type dateFilter struct {
	// exprs are WHERE conjuncts with the original date column replaced by
	// dateColumnToken.
	exprs []string
	// from and to bound a range derived from the question's wording; to is
	// exclusive and may be zero.
	from, to time.Time
	source   string
}

var (
	dateIdentifierPattern = regexp.MustCompile("(?i)(?:`?\\w+`?\\.)?`?(\\w*(?:date|_at|_gmt|created|modified|timestamp)\\w*)`?")
	qualifiedRefPattern   = regexp.MustCompile(`\b[a-zA-Z_]\w*\.[a-zA-Z_]\w*\b`)

	lastNUnitsPattern = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(\d+)\s+(day|week|month|year)s?\b`)
	lastUnitPattern   = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(day|week|month|year)\b`)
	thisUnitPattern   = regexp.MustCompile(`(?i)\bthis\s+(week|month|year)\b`)
	todayPattern      = regexp.MustCompile(`(?i)\btoday\b`)
	yesterdayPattern  = regexp.MustCompile(`(?i)\byesterday\b`)
)

// dateWords are SQL functions, types and keywords that match the date
// identifier pattern but are not columns.
var dateWords = map[string]bool{
	"date": true, "datetime": true, "timestamp": true, "current_date": true,
	"current_timestamp": true, "utc_date": true, "utc_timestamp": true,
	"curdate": true, "sysdate": true, "localtimestamp": true, "date_sub": true,
	"date_add": true, "date_format": true, "datediff": true, "timestampdiff": true,
	"str_to_date": true, "from_unixtime": true, "date_trunc": true, "to_date": true,
	"unix_timestamp": true,
}

// deriveDateFilter prefers conditions from the statement's WHERE clause and
// falls back to relative phrasing in the question. It returns nil when
// neither restricts time.
func deriveDateFilter(question, sqlQuery string, now time.Time) *dateFilter {
	if exprs := dateConditions(sqlutil.ExtractWhereClause(sqlQuery)); len(exprs) > 0 {
		return &dateFilter{exprs: exprs, source: "where"}
	}
	return phraseDateFilter(question, now)
}

// dateConditions keeps the conjuncts that restrict a date column, with that
// column replaced by dateColumnToken. Conjuncts that still reference other
// qualified columns are dropped.
func dateConditions(where string) []string {
	if where == "" {
		return nil
	}
	var out []string
	for _, conj := range sqlutil.SplitConjuncts(where) {
		replaced, ok := replaceDateColumn(conj)
		if !ok || qualifiedRefPattern.MatchString(replaced) {
			continue
		}
		out = append(out, replaced)
	}
	return out
}

func replaceDateColumn(conj string) (string, bool) {
	var b strings.Builder
	found := false
	last := 0
	for _, loc := range dateIdentifierPattern.FindAllStringSubmatchIndex(conj, -1) {
		name := strings.ToLower(conj[loc[2]:loc[3]])
		if dateWords[name] || followedByParen(conj, loc[1]) || insideQuotes(conj, loc[0]) {
			continue
		}
		b.WriteString(conj[last:loc[0]])
		b.WriteString(dateColumnToken)
		last = loc[1]
		found = true
	}
	if !found {
		return "", false
	}
	b.WriteString(conj[last:])
	return b.String(), true
}

func followedByParen(s string, pos int) bool {
	rest := strings.TrimLeft(s[pos:], " \t")
	return strings.HasPrefix(rest, "(")
}

// insideQuotes reports whether pos falls inside a single-quoted literal.
func insideQuotes(s string, pos int) bool {
	return strings.Count(s[:pos], "'")%2 == 1
}

func phraseDateFilter(question string, now time.Time) *dateFilter {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if m := lastNUnitsPattern.FindStringSubmatch(question); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return &dateFilter{from: subtractUnits(now, n, m[2]), source: "phrase"}
		}
	}
	if m := lastUnitPattern.FindStringSubmatch(question); m != nil {
		return &dateFilter{from: subtractUnits(now, 1, m[1]), source: "phrase"}
	}
	if yesterdayPattern.MatchString(question) {
		return &dateFilter{from: startOfDay.AddDate(0, 0, -1), to: startOfDay, source: "phrase"}
	}
	if todayPattern.MatchString(question) {
		return &dateFilter{from: startOfDay, source: "phrase"}
	}
	if m := thisUnitPattern.FindStringSubmatch(question); m != nil {
		switch strings.ToLower(m[1]) {
		case "week":
			offset := (int(startOfDay.Weekday()) + 6) % 7 // weeks start on Monday
			return &dateFilter{from: startOfDay.AddDate(0, 0, -offset), source: "phrase"}
		case "month":
			return &dateFilter{from: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), source: "phrase"}
		case "year":
			return &dateFilter{from: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), source: "phrase"}
		}
	}
	return nil
}

func subtractUnits(now time.Time, n int, unit string) time.Time {
	switch strings.ToLower(unit) {
	case "week":
		return now.AddDate(0, 0, -7*n)
	case "month":
		return now.AddDate(0, -n, 0)
	case "year":
		return now.AddDate(-n, 0, 0)
	default:
		return now.AddDate(0, 0, -n)
	}
}

// apply restricts b on the given (already quoted) column.
func (f *dateFilter) apply(b sq.SelectBuilder, column string) sq.SelectBuilder {
	if f == nil {
		return b
	}
	for _, expr := range f.exprs {
		b = b.Where(strings.ReplaceAll(expr, dateColumnToken, column))
	}
	if !f.from.IsZero() {
		b = b.Where(sq.GtOrEq{column: f.from})
	}
	if !f.to.IsZero() {
		b = b.Where(sq.Lt{column: f.to})
	}
	return b
}

// dateColumnPriority orders the date columns used when a table has several.
var dateColumnPriority = []string{
	"date_created_gmt", "date_created", "order_date", "post_date", "date_paid_gmt",
	"date_paid", "date_completed_gmt", "date_completed", "created_at", "created",
	"date_updated_gmt", "date_modified", "updated_at", "date",
}

// pickDateColumn returns the preferred date column, or "" when none exists.
func pickDateColumn(columns []string) string {
	lower := make(map[string]string, len(columns))
	for _, c := range columns {
		lower[strings.ToLower(c)] = c
	}
	for _, candidate := range dateColumnPriority {
		if c, ok := lower[candidate]; ok {
			return c
		}
	}
	for _, c := range columns {
		l := strings.ToLower(c)
		if strings.Contains(l, "date") || strings.HasSuffix(l, "_at") {
			return c
		}
	}
	return ""
}
