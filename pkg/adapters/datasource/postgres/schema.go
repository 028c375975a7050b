package postgres

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
)

// ListTables returns every base table in the current schema.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetColumns returns a table's columns in ordinal order.
func (a *Adapter) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT column_name, data_type, ordinal_position FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var col datasource.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column for %s: %w", table, err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}
