package datasource

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded queries that could exhaust memory.
const MaxQueryLimit = 1000

// SchemaReader enumerates tables and their columns.
type SchemaReader interface {
	// ListTables returns every base table in the connected database, sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// GetColumns returns the columns of a table in ordinal order.
	GetColumns(ctx context.Context, table string) ([]Column, error)
}

// QueryRunner executes bounded read queries.
type QueryRunner interface {
	// Query runs a SELECT and returns at most limit rows.
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	//
	// Driver errors are returned as *QueryError.
	Query(ctx context.Context, sqlQuery string, args []any, limit int) (*QueryResult, error)

	// Dialect describes how to write SQL for this datasource.
	Dialect() Dialect
}

// Datasource is a connected database usable by the question pipeline.
// Each implementation owns its connection pool and must be closed when done.
type Datasource interface {
	SchemaReader
	QueryRunner

	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}

// Dialect captures the SQL differences between supported databases.
type Dialect interface {
	// Name returns the registered adapter type ("mysql", "postgres").
	Name() string

	// QuoteIdentifier safely quotes a table or column name.
	QuoteIdentifier(name string) string

	// PlaceholderFormat is the bind-parameter style for squirrel builders.
	PlaceholderFormat() sq.PlaceholderFormat

	// ApplyLimit bounds a SELECT to at most limit rows.
	ApplyLimit(sqlQuery string, limit int) string
}

// Column describes a table column.
type Column struct {
	Name            string `json:"name"`
	DataType        string `json:"data_type"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "VARCHAR", "BIGINT", "INT4")
}

// QueryResult holds the rows returned by Query, each normalized to an ordered row.
type QueryResult struct {
	Columns  []ColumnInfo  `json:"columns"`
	Rows     []*models.Row `json:"rows"`
	RowCount int           `json:"row_count"`
}

// EffectiveLimit clamps a requested limit into (0, MaxQueryLimit].
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
