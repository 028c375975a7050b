package services

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

type valueKind int

const (
	kindOther valueKind = iota
	kindIdentifier
	kindCount
	kindMoney
	kindTotal // count or money depending on the value's type
)

var (
	identifierSuffixes = []string{"_id", "_year", "year", "zip", "postcode", "phone"}
	moneyFragments     = []string{
		"revenue", "price", "amount", "sales", "cost", "spent", "earning", "income",
		"subtotal", "_total", "tax", "shipping", "discount", "refund", "balance", "fee",
	}
	countFragments = []string{
		"count", "qty", "quantity", "num_", "number", "_sold", "items", "units",
		"orders", "customers", "posts", "products", "comments", "users", "views",
	}
	totalFragments = []string{"total", "sum", "avg", "average", "value"}

	// A count-shaped name wins over any money fragment it contains
	// ("sales_count", "num_refunds").
	countSuffixes = []string{"_count", "qty", "quantity"}
	countPrefixes = []string{"num_", "count_", "number_of_"}
)

var displayPrinter = message.NewPrinter(language.English)

func classifyColumn(column string) valueKind {
	name := strings.ToLower(column)
	if name == "id" {
		return kindIdentifier
	}
	for _, s := range identifierSuffixes {
		if strings.HasSuffix(name, s) {
			return kindIdentifier
		}
	}
	if name == "count" {
		return kindCount
	}
	for _, s := range countSuffixes {
		if strings.HasSuffix(name, s) {
			return kindCount
		}
	}
	for _, p := range countPrefixes {
		if strings.HasPrefix(name, p) {
			return kindCount
		}
	}
	for _, f := range moneyFragments {
		if strings.Contains(name, f) {
			return kindMoney
		}
	}
	for _, f := range countFragments {
		if strings.Contains(name, f) {
			return kindCount
		}
	}
	for _, f := range totalFragments {
		if strings.Contains(name, f) {
			return kindTotal
		}
	}
	return kindOther
}

// displayValue formats numbers for answers. Identifier-like columns stay
// raw; counts become grouped integers; money becomes grouped two-decimal
// text; other integers of four or more digits are grouped. Everything else
// is returned unchanged.
func displayValue(column string, v any) any {
	if v == nil {
		return nil
	}
	kind := classifyColumn(column)
	if kind == kindIdentifier {
		return v
	}

	_, isString := v.(string)
	if isString && kind == kindOther {
		return v
	}
	f, ok := toFloat(v)
	if !ok {
		return v
	}
	integral := f == math.Trunc(f)

	switch kind {
	case kindCount:
		return displayPrinter.Sprintf("%d", int64(math.Round(f)))
	case kindMoney:
		return displayPrinter.Sprintf("%.2f", f)
	case kindTotal:
		if integral && !isFloatType(v) {
			return displayPrinter.Sprintf("%d", int64(f))
		}
		return displayPrinter.Sprintf("%.2f", f)
	default:
		if integral && math.Abs(f) >= 1000 && !isFloatType(v) {
			return displayPrinter.Sprintf("%d", int64(f))
		}
		return v
	}
}

func isFloatType(v any) bool {
	switch x := v.(type) {
	case float32, float64:
		return true
	case string:
		return strings.Contains(x, ".")
	}
	return false
}

// FormatDisplayValue renders one value as answers show it.
func FormatDisplayValue(column string, v any) string {
	out := displayValue(column, v)
	if out == nil {
		return ""
	}
	return fmt.Sprint(out)
}

// formatRows returns display copies of rows.
func formatRows(rows []*models.Row) []*models.Row {
	out := make([]*models.Row, len(rows))
	for i, row := range rows {
		formatted := models.NewRow()
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			formatted.Set(pair.Key, displayValue(pair.Key, pair.Value))
		}
		out[i] = formatted
	}
	return out
}

// columnLabel turns a column name into words for messages.
func columnLabel(column string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ToLower(column), "_", " "))
}
