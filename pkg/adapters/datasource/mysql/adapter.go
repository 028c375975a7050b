package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// Adapter provides MySQL connectivity for schema reads and bounded queries.
type Adapter struct {
	db      *sql.DB
	maxRows int
	logger  *zap.Logger
}

// NewAdapter opens a connection pool and verifies it with a ping.
func NewAdapter(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if cfg.PoolMaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.PoolMaxConns))
		db.SetMaxIdleConns(int(cfg.PoolMaxConns))
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewWithDB(db, cfg.MaxRows, logger), nil
}

// NewWithDB wraps an existing *sql.DB. Used by tests with go-sqlmock.
func NewWithDB(db *sql.DB, maxRows int, logger *zap.Logger) *Adapter {
	return &Adapter{
		db:      db,
		maxRows: maxRows,
		logger:  logger.Named("mysql"),
	}
}

// Dialect returns the MySQL dialect.
func (a *Adapter) Dialect() datasource.Dialect {
	return Dialect{}
}

// Ping verifies the database is reachable and a database is selected.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var current sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if !current.Valid || current.String == "" {
		return errors.New("connected without a selected database")
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Query runs a bounded SELECT and normalizes every row to an ordered map.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, args []any, limit int) (*datasource.QueryResult, error) {
	effective := datasource.EffectiveLimit(limit)
	if a.maxRows > 0 && effective > a.maxRows {
		effective = a.maxRows
	}
	queryToRun := Dialect{}.ApplyLimit(sqlQuery, effective)

	var (
		rows *sql.Rows
		err  error
	)
	if len(args) == 0 {
		rows, err = a.db.QueryContext(ctx, queryToRun)
	} else {
		rows, err = a.db.QueryContext(ctx, queryToRun, args...)
	}
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]datasource.ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = datasource.ColumnInfo{
			Name: ct.Name(),
			Type: strings.ToUpper(ct.DatabaseTypeName()),
		}
	}

	resultRows := make([]*models.Row, 0)
	for rows.Next() {
		if len(resultRows) >= effective {
			break
		}

		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := models.NewRow()
		for i, col := range columns {
			row.Set(col.Name, normalizeValue(values[i], col.Type))
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError(ctx, err)
	}

	return &datasource.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// normalizeValue converts driver byte slices into strings, and DECIMAL
// bytes into float64 so downstream formatting sees numbers.
func normalizeValue(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch dbType {
	case "DECIMAL", "NEWDECIMAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BIGINT", "INT", "MEDIUMINT", "SMALLINT", "TINYINT", "UNSIGNED BIGINT", "UNSIGNED INT":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return s
}

// wrapError classifies driver errors by MySQL error number.
func wrapError(ctx context.Context, err error) error {
	code := ""
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		code = strconv.Itoa(int(myErr.Number))
	}
	return datasource.NewQueryError(ctx, err, code)
}

// Ensure Adapter implements datasource.Datasource at compile time.
var _ datasource.Datasource = (*Adapter)(nil)
