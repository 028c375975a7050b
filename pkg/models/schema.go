package models

import "strings"

// TableSchema is one table with its column names in ordinal order.
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// HasColumn reports whether the table has a column (case-insensitive).
func (t TableSchema) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// SchemaSnapshot is the tenant-scoped schema the generator sees for one
// request. It is built per request and never shared.
type SchemaSnapshot struct {
	Tenant Tenant        `json:"tenant"`
	Tables []TableSchema `json:"tables"`
}

// Table looks up a table by exact name.
func (s *SchemaSnapshot) Table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableSchema{}, false
}

// TableNames returns table names in snapshot order.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
