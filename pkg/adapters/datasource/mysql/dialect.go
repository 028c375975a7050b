package mysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// Dialect is the MySQL / MariaDB SQL dialect.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

// QuoteIdentifier quotes with backticks and escapes any backticks within the name.
func (Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

// ApplyLimit appends a LIMIT when the statement has none of its own.
// Wrapping in a derived table is avoided because MySQL rejects derived
// tables with duplicate column names (e.g. "SELECT p.ID, u.ID ...").
// Statements that already carry a LIMIT are capped while scanning.
func (Dialect) ApplyLimit(sqlQuery string, limit int) string {
	if sqlutil.HasLimit(sqlQuery) {
		return sqlQuery
	}
	return fmt.Sprintf("%s LIMIT %d", sqlQuery, limit)
}

var _ datasource.Dialect = Dialect{}
