package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/logging"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// DefaultQueryTimeout bounds a single statement.
const DefaultQueryTimeout = 30 * time.Second

// User-facing messages for failed statements. Driver text never reaches users.
const (
	MessageSchemaError = "I couldn't find the data needed to answer that on this site."
	MessageTimeout     = "That question took too long to answer. Please try again or narrow it down."
	MessageQueryFailed = "Something went wrong while looking that up. Please try rephrasing your question."
	MessageNotReadOnly = "I can only look data up, not change it, when answering questions."
	MessageOutOfScope  = "That question needs data outside this site, which I can't access."
)

// errOutOfScope is returned when a statement references another tenant's tables.
var errOutOfScope = errors.New("statement references tables outside the tenant scope")

// QueryExecutor runs generated statements read-only and classifies the result.
type QueryExecutor struct {
	timeout time.Duration
	maxRows int
	metrics *Metrics
	logger  *zap.Logger
}

// NewQueryExecutor creates an executor. maxRows <= 0 uses the datasource cap.
func NewQueryExecutor(timeout time.Duration, maxRows int, metrics *Metrics, logger *zap.Logger) *QueryExecutor {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &QueryExecutor{
		timeout: timeout,
		maxRows: maxRows,
		metrics: metrics,
		logger:  logger.Named("query-executor"),
	}
}

// Execute validates the statement as a single read-only SELECT over tenant
// tables, runs it under the executor timeout and classifies the result.
// Empty results carry diagnostics.
func (e *QueryExecutor) Execute(ctx context.Context, ds datasource.Datasource, tenant models.Tenant, sqlQuery string) *models.ExecutionOutcome {
	ctx, span := startSpan(ctx, "sql.execute")
	defer span.End()

	normalized, err := e.prepare(tenant, sqlQuery)
	if err != nil {
		e.logger.Warn("Rejected generated SQL",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.Error(err))
		recordSpanError(span, err)
		message := MessageNotReadOnly
		if errors.Is(err, errOutOfScope) {
			message = MessageOutOfScope
		}
		outcome := &models.ExecutionOutcome{
			Kind:        models.OutcomeOtherError,
			SQL:         sqlQuery,
			Detail:      err.Error(),
			UserMessage: message,
		}
		e.metrics.CountOutcome(outcome.Kind)
		return outcome
	}

	result, err := e.run(ctx, ds, normalized, nil, e.maxRows)
	outcome := e.classify(normalized, result, err)
	if outcome.Kind == models.OutcomeEmpty {
		outcome.Diagnostics = e.diagnose(ctx, ds, tenant, normalized)
	}

	span.SetAttributes(attribute.String("sql.outcome", string(outcome.Kind)))
	if err != nil {
		recordSpanError(span, err)
	}
	e.metrics.CountOutcome(outcome.Kind)
	return outcome
}

// prepare applies the read-only gate and the tenant table check.
func (e *QueryExecutor) prepare(tenant models.Tenant, sqlQuery string) (string, error) {
	normalized, err := sqlutil.PrepareReadOnly(sqlQuery)
	if err != nil {
		return "", err
	}
	if outside := tablesOutsideScope(tenant, normalized); len(outside) > 0 {
		return "", fmt.Errorf("%w: %s", errOutOfScope, strings.Join(outside, ", "))
	}
	return normalized, nil
}

// run executes an already-validated statement under the executor timeout.
func (e *QueryExecutor) run(ctx context.Context, ds datasource.Datasource, sqlQuery string, args []any, limit int) (*datasource.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return ds.Query(ctx, sqlQuery, args, limit)
}

func (e *QueryExecutor) classify(sqlQuery string, result *datasource.QueryResult, err error) *models.ExecutionOutcome {
	outcome := &models.ExecutionOutcome{SQL: sqlQuery}
	if err != nil {
		outcome.Detail = err.Error()
		switch datasource.KindOf(err) {
		case datasource.ErrorKindSchema:
			outcome.Kind = models.OutcomeSchemaError
			outcome.UserMessage = MessageSchemaError
		case datasource.ErrorKindTimeout:
			outcome.Kind = models.OutcomeOtherError
			outcome.UserMessage = MessageTimeout
			outcome.Retryable = true
		default:
			outcome.Kind = models.OutcomeOtherError
			outcome.UserMessage = MessageQueryFailed
		}
		e.logger.Warn("Query failed",
			zap.String("kind", string(outcome.Kind)),
			zap.Bool("retryable", outcome.Retryable),
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("error", logging.SanitizeError(err)))
		return outcome
	}

	for _, c := range result.Columns {
		outcome.Columns = append(outcome.Columns, c.Name)
	}
	if len(result.Rows) == 0 {
		outcome.Kind = models.OutcomeEmpty
		return outcome
	}
	outcome.Kind = models.OutcomeRows
	outcome.Rows = result.Rows
	return outcome
}

// diagnose explains an empty result. Failures here are logged and ignored.
func (e *QueryExecutor) diagnose(ctx context.Context, ds datasource.Datasource, tenant models.Tenant, sqlQuery string) *models.EmptyDiagnostics {
	diag := &models.EmptyDiagnostics{WhereClause: sqlutil.ExtractWhereClause(sqlQuery)}

	existing := make(map[string]bool)
	if all, err := ds.ListTables(ctx); err == nil {
		for _, t := range all {
			existing[strings.ToLower(t)] = true
		}
	} else {
		e.logger.Debug("Diagnostics could not list tables", zap.Error(err))
	}

	allInScope := true
	for _, t := range physicalTables(sqlQuery) {
		d := models.TableDiagnostic{
			Table:   t,
			Exists:  existing[strings.ToLower(t)],
			InScope: tenant.Owns(t),
		}
		allInScope = allInScope && d.InScope
		diag.Tables = append(diag.Tables, d)
	}

	if diag.WhereClause != "" && allInScope {
		result, err := e.run(ctx, ds, sqlutil.RemoveWhereClause(sqlQuery), nil, 1)
		if err != nil {
			e.logger.Debug("Diagnostics probe without WHERE failed", zap.Error(err))
		} else {
			diag.RowsWithoutWhere = len(result.Rows) > 0
		}
	}

	e.logger.Info("Query returned no rows",
		zap.Any("tables", diag.Tables),
		zap.Bool("rows_without_where", diag.RowsWithoutWhere))
	return diag
}

// physicalTables returns referenced tables minus names defined by a WITH.
func physicalTables(sqlQuery string) []string {
	ctes := make(map[string]bool)
	for _, name := range sqlutil.CTENames(sqlQuery) {
		ctes[strings.ToLower(name)] = true
	}
	var tables []string
	for _, t := range sqlutil.ExtractTables(sqlQuery) {
		if !ctes[strings.ToLower(t)] {
			tables = append(tables, t)
		}
	}
	return tables
}

func tablesOutsideScope(tenant models.Tenant, sqlQuery string) []string {
	var outside []string
	for _, t := range physicalTables(sqlQuery) {
		if !tenant.Owns(t) {
			outside = append(outside, t)
		}
	}
	return outside
}
