package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is a result row keyed by column name, preserving select-list order
// through JSON encoding.
type Row = orderedmap.OrderedMap[string, any]

// NewRow returns an empty row.
func NewRow() *Row {
	return orderedmap.New[string, any]()
}

// RowOf builds a row from alternating column/value pairs. Used heavily in tests.
func RowOf(kv ...any) *Row {
	row := NewRow()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		row.Set(key, kv[i+1])
	}
	return row
}

// RowColumns returns a row's column names in order.
func RowColumns(row *Row) []string {
	cols := make([]string, 0, row.Len())
	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		cols = append(cols, pair.Key)
	}
	return cols
}
