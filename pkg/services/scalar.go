package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// ExtractScalar reads the count-like value of a one-row result. Columns are
// tried in order: the alias of the select-list aggregate, a column named
// like "count", a column named like "total", "sum" or "num", then the first
// numeric column.
func ExtractScalar(sqlQuery string, row *models.Row) (float64, bool) {
	if row == nil || row.Len() == 0 {
		return 0, false
	}

	if cols, err := sqlutil.ParseSelectColumns(sqlQuery); err == nil {
		for _, c := range cols {
			if !sqlutil.HasAggregate(c.Expr) {
				continue
			}
			if v, ok := lookupFold(row, c.Name); ok {
				if f, ok := toFloat(v); ok {
					return f, true
				}
			}
			break
		}
	}

	for _, hints := range [][]string{{"count"}, {"total", "sum", "num"}} {
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			name := strings.ToLower(pair.Key)
			for _, h := range hints {
				if strings.Contains(name, h) {
					if f, ok := toFloat(pair.Value); ok {
						return f, true
					}
				}
			}
		}
	}

	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		if f, ok := toFloat(pair.Value); ok {
			return f, true
		}
	}
	return 0, false
}

// IsZeroCount reports whether a count-shaped statement returned one row whose
// scalar is zero or null.
func IsZeroCount(sqlQuery string, rows []*models.Row) bool {
	if !sqlutil.IsCountShaped(sqlQuery) || len(rows) != 1 {
		return false
	}
	v, ok := ExtractScalar(sqlQuery, rows[0])
	if !ok {
		return allNil(rows[0])
	}
	return v == 0
}

func allNil(row *models.Row) bool {
	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value != nil {
			return false
		}
	}
	return true
}

func lookupFold(row *models.Row, name string) (any, bool) {
	if v, ok := row.Get(name); ok {
		return v, true
	}
	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, name) {
			return pair.Value, true
		}
	}
	return nil, false
}

// toFloat converts driver and JSON numeric representations.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case []byte:
		return parseNumeric(string(n))
	case string:
		return parseNumeric(n)
	}
	return 0, false
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt64 converts integral values, rejecting fractions.
func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
