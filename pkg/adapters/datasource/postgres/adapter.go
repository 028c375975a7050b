package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// Adapter provides PostgreSQL connectivity for schema reads and bounded queries.
type Adapter struct {
	pool    *pgxpool.Pool
	maxRows int
	logger  *zap.Logger
}

// NewAdapter creates a pool for the configured database.
func NewAdapter(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (*Adapter, error) {
	poolCfg, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.PoolMaxConns > 0 {
		poolCfg.MaxConns = cfg.PoolMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{
		pool:    pool,
		maxRows: cfg.MaxRows,
		logger:  logger.Named("postgres"),
	}, nil
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() datasource.Dialect {
	return Dialect{}
}

// Ping verifies the database is reachable with valid credentials.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var result int
	if err := a.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// Query runs a bounded SELECT and normalizes every row to an ordered map.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, args []any, limit int) (*datasource.QueryResult, error) {
	effective := datasource.EffectiveLimit(limit)
	if a.maxRows > 0 && effective > a.maxRows {
		effective = a.maxRows
	}

	rows, err := a.pool.Query(ctx, Dialect{}.ApplyLimit(sqlQuery, effective), args...)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]*models.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		row := models.NewRow()
		for i, col := range columns {
			row.Set(col.Name, normalizeValue(values[i]))
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

// normalizeValue converts pgx wire types that do not encode usefully into
// plain Go values.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}

// wrapError classifies driver errors by SQLSTATE.
func wrapError(ctx context.Context, err error) error {
	code := ""
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code = pgErr.Code
	}
	return datasource.NewQueryError(ctx, err, code)
}

// pgTypeNameFromOID maps common PostgreSQL type OIDs to type names.
// Unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}

// Ensure Adapter implements datasource.Datasource at compile time.
var _ datasource.Datasource = (*Adapter)(nil)
