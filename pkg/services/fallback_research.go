package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// DefaultFallbackRows bounds listing probes when the original statement has
// no LIMIT of its own.
const DefaultFallbackRows = 20

// defaultCountAlias names the count column of probe statements.
const defaultCountAlias = "order_count"

var (
	limitPattern = regexp.MustCompile(`(?i)\blimit\s+(\d+)\s*$`)
	aliasPattern = regexp.MustCompile(`^\w+$`)
)

// probeInput is shared by every tier.
type probeInput struct {
	ds          datasource.Datasource
	dialect     datasource.Dialect
	tenant      models.Tenant
	inScope     map[string]string // lower-case name to actual name
	question    string
	sql         string
	countShaped bool
	countAlias  string
	filter      *dateFilter
	limit       int
	// probed holds tables already tried by an earlier tier.
	probed map[string]bool
}

// table returns the in-scope physical name for a logical suffix.
func (in *probeInput) table(suffix string) (string, bool) {
	name, ok := in.inScope[strings.ToLower(in.tenant.Table(suffix))]
	return name, ok
}

func (in *probeInput) quote(name string) string {
	return in.dialect.QuoteIdentifier(name)
}

// probe runs one tier and returns its attempts. A probe stops at its first
// positive attempt.
type probe func(ctx context.Context, in *probeInput) []models.FallbackAttempt

// FallbackResearcher re-probes every physical representation of order data
// when a primary order question comes back empty, zero or broken.
type FallbackResearcher struct {
	executor *QueryExecutor
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewFallbackResearcher creates a researcher that runs probes through executor.
func NewFallbackResearcher(executor *QueryExecutor, metrics *Metrics, logger *zap.Logger) *FallbackResearcher {
	return &FallbackResearcher{
		executor: executor,
		metrics:  metrics,
		logger:   logger.Named("fallback-research"),
		now:      time.Now,
	}
}

// NeedsResearch reports whether an order-domain outcome should be re-probed:
// it returned nothing, failed on schema, or counted zero.
func NeedsResearch(question, sqlQuery string, outcome *models.ExecutionOutcome) bool {
	if outcome == nil || !IsOrderDomain(question, sqlQuery) {
		return false
	}
	switch outcome.Kind {
	case models.OutcomeEmpty, models.OutcomeSchemaError:
		return true
	case models.OutcomeRows:
		return IsZeroCount(sqlQuery, outcome.Rows)
	}
	return false
}

// IsOrderDomain reports whether a question or its statement concerns orders.
func IsOrderDomain(question, sqlQuery string) bool {
	words := selectorWordPattern.FindAllString(strings.ToLower(question), -1)
	if containsAny(words, orderSynonyms) {
		return true
	}
	lowerSQL := strings.ToLower(sqlQuery)
	if strings.Contains(lowerSQL, "shop_order") {
		return true
	}
	for _, t := range sqlutil.ExtractTables(sqlQuery) {
		if strings.Contains(strings.ToLower(t), "order") {
			return true
		}
	}
	return false
}

// Research runs every tier in order and stops at the first that finds data.
// When none does, the unfiltered count tells a too-strict filter apart from
// a store with no orders at all.
func (r *FallbackResearcher) Research(ctx context.Context, scope *RequestScope, tenant models.Tenant, scopeTables []string, question, originalSQL string) *models.FallbackResult {
	ctx, span := startSpan(ctx, "fallback.research")
	defer span.End()

	in := &probeInput{
		ds:          scope.Datasource,
		dialect:     scope.Datasource.Dialect(),
		tenant:      tenant,
		inScope:     make(map[string]string, len(scopeTables)),
		question:    question,
		sql:         originalSQL,
		countShaped: sqlutil.IsCountShaped(originalSQL),
		countAlias:  countAliasOf(originalSQL),
		filter:      deriveDateFilter(question, originalSQL, r.now()),
		limit:       listingLimit(originalSQL),
		probed:      make(map[string]bool),
	}
	for _, t := range scopeTables {
		if tenant.Owns(t) {
			in.inScope[strings.ToLower(t)] = t
		}
	}

	result := &models.FallbackResult{}
	probes := []probe{r.probeLegacyPosts, r.probeOrderTables, r.probeLineItems, r.probeOtherOrderTables}
	for _, p := range probes {
		for _, attempt := range p(ctx, in) {
			result.Attempts = append(result.Attempts, attempt)
			if !result.Found && attempt.SkipReason == "" && attempt.Count > 0 {
				winner := attempt
				result.Found = true
				result.Winner = &winner
			}
		}
		if result.Found {
			break
		}
	}

	if !result.Found {
		total := r.probeUnfiltered(ctx, in)
		result.Attempts = append(result.Attempts, total)
		switch {
		case total.SkipReason == "" && total.Count > 0:
			result.FilterTooStrict = true
			result.TotalWithoutFilter = total.Count
		default:
			result.ConfirmedZero = true
		}
	}

	r.metrics.CountFallback(result)
	span.SetAttributes(
		attribute.Bool("fallback.found", result.Found),
		attribute.Int("fallback.attempts", len(result.Attempts)))
	r.logger.Info("Fallback research finished",
		zap.Bool("found", result.Found),
		zap.Bool("confirmed_zero", result.ConfirmedZero),
		zap.Bool("filter_too_strict", result.FilterTooStrict),
		zap.Any("tiers", result.TiersAttempted()))
	return result
}

// countAliasOf reuses the original count column name so answers keep the
// shape the user's statement asked for.
func countAliasOf(sqlQuery string) string {
	cols, err := sqlutil.ParseSelectColumns(sqlQuery)
	if err == nil && len(cols) == 1 && aliasPattern.MatchString(cols[0].Name) && !strings.EqualFold(cols[0].Name, "count") {
		return cols[0].Name
	}
	return defaultCountAlias
}

func listingLimit(sqlQuery string) int {
	if m := limitPattern.FindStringSubmatch(strings.TrimSpace(sqlQuery)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= datasource.MaxQueryLimit {
			return n
		}
	}
	return DefaultFallbackRows
}

// runProbe renders, validates and executes one probe statement. The
// returned SQL has its arguments inlined for display.
func (r *FallbackResearcher) runProbe(ctx context.Context, in *probeInput, b sq.SelectBuilder, limit int) (string, *datasource.QueryResult, error) {
	sqlQuery, args, err := b.PlaceholderFormat(in.dialect.PlaceholderFormat()).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build probe: %w", err)
	}
	display := inlineArgs(sqlQuery, args)
	normalized, err := sqlutil.PrepareReadOnly(sqlQuery)
	if err != nil {
		return display, nil, err
	}
	res, err := r.executor.run(ctx, in.ds, normalized, args, limit)
	if err != nil {
		r.logger.Debug("Probe failed",
			zap.String("sql", display),
			zap.Error(err))
		return display, nil, err
	}
	return display, res, nil
}

// countAttempt runs a count probe and records it.
func (r *FallbackResearcher) countAttempt(ctx context.Context, in *probeInput, tier models.FallbackTier, table string, b sq.SelectBuilder) models.FallbackAttempt {
	attempt := models.FallbackAttempt{Tier: tier, Table: table}
	display, res, err := r.runProbe(ctx, in, b, 1)
	attempt.SQL = display
	if err != nil {
		attempt.SkipReason = "probe failed: " + err.Error()
		return attempt
	}
	if len(res.Rows) > 0 {
		if v, ok := ExtractScalar(display, res.Rows[0]); ok {
			attempt.Count = int64(v)
		}
		attempt.Rows = res.Rows[:1]
	}
	return attempt
}

// listAttempt runs a listing probe and records it.
func (r *FallbackResearcher) listAttempt(ctx context.Context, in *probeInput, tier models.FallbackTier, table string, b sq.SelectBuilder) models.FallbackAttempt {
	attempt := models.FallbackAttempt{Tier: tier, Table: table}
	display, res, err := r.runProbe(ctx, in, b, in.limit)
	attempt.SQL = display
	if err != nil {
		attempt.SkipReason = "probe failed: " + err.Error()
		return attempt
	}
	attempt.Rows = res.Rows
	attempt.Count = int64(len(res.Rows))
	return attempt
}

func skipped(tier models.FallbackTier, table, reason string) models.FallbackAttempt {
	return models.FallbackAttempt{Tier: tier, Table: table, SkipReason: reason}
}

// inlineArgs renders bound arguments into a statement for display only.
// Both "?" and "$n" placeholders outside quoted text are replaced.
func inlineArgs(sqlQuery string, args []any) string {
	if len(args) == 0 {
		return sqlQuery
	}
	var b strings.Builder
	var quote byte
	next := 0
	for i := 0; i < len(sqlQuery); i++ {
		c := sqlQuery[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '?' && next < len(args):
			b.WriteString(sqlLiteral(args[next]))
			next++
		case c == '$' && i+1 < len(sqlQuery) && sqlQuery[i+1] >= '0' && sqlQuery[i+1] <= '9':
			j := i + 1
			for j < len(sqlQuery) && sqlQuery[j] >= '0' && sqlQuery[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(sqlQuery[i+1 : j])
			if n >= 1 && n <= len(args) {
				b.WriteString(sqlLiteral(args[n-1]))
				i = j - 1
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}
