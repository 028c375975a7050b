package postgres

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
)

// Dialect is the PostgreSQL SQL dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

// QuoteIdentifier uses PostgreSQL's standard double-quote quoting.
func (Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (Dialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

// ApplyLimit wraps the statement so any inner LIMIT is also bounded.
func (Dialect) ApplyLimit(sqlQuery string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, limit)
}

var _ datasource.Dialect = Dialect{}
