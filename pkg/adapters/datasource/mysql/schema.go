package mysql

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
)

const listTablesQuery = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

const listColumnsQuery = `SELECT COLUMN_NAME, DATA_TYPE, ORDINAL_POSITION FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

// ListTables returns every base table in the selected database.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, listTablesQuery)
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
	if err := rows.Err(); err != nil {
		return nil, wrapError(ctx, err)
	}
	return tables, nil
}

// GetColumns returns a table's columns in ordinal order.
func (a *Adapter) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	rows, err := a.db.QueryContext(ctx, listColumnsQuery, table)
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
	if err := rows.Err(); err != nil {
		return nil, wrapError(ctx, err)
	}
	return columns, nil
}
