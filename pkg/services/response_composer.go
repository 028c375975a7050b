package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/prompts"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// NarrativeTemperature leaves room for natural phrasing in summaries.
const NarrativeTemperature = 0.7

const (
	MessageNoResults = "No results found."
	productIDColumn  = "product_id"
	productNameCol   = "product_name"
)

// productNameColumns already name a product; no lookup is needed.
var productNameColumns = []string{"product_name", "name", "post_title", "title", "product"}

// ComposeInput is everything needed to turn rows into an answer.
type ComposeInput struct {
	Question string
	SQL      string
	Rows     []*models.Row
	Scope    *RequestScope
	Tenant   models.Tenant
	// Message, when set, replaces the generated summary.
	Message  string
	Analysis *models.Analysis
}

// ResponseComposer cleans, enriches, formats and summarizes result rows.
type ResponseComposer struct {
	executor  *QueryExecutor
	narrative bool
	showSQL   bool
	metrics   *Metrics
	logger    *zap.Logger
}

// NewResponseComposer creates a composer. Product lookups run through executor.
func NewResponseComposer(executor *QueryExecutor, narrative, showSQL bool, metrics *Metrics, logger *zap.Logger) *ResponseComposer {
	return &ResponseComposer{
		executor:  executor,
		narrative: narrative,
		showSQL:   showSQL,
		metrics:   metrics,
		logger:    logger.Named("response-composer"),
	}
}

// Compose builds the response payload for a data answer.
func (c *ResponseComposer) Compose(ctx context.Context, in ComposeInput) *models.ResponsePayload {
	ctx, span := startSpan(ctx, "response.compose")
	defer span.End()

	rows := dropInvalidProducts(cloneRows(in.Rows))
	if in.Scope != nil && in.Scope.Datasource != nil {
		c.attachProductNames(ctx, in, rows)
	}
	formatted := formatRows(rows)

	msg := in.Message
	if msg == "" {
		msg = c.summarize(ctx, in, formatted)
	}

	analysis := in.Analysis
	if analysis == nil {
		analysis = &models.Analysis{}
	}
	analysis.RowCount = len(formatted)

	resp := &models.ResponsePayload{
		Success:  true,
		Data:     formatted,
		Message:  msg,
		Analysis: analysis,
	}
	if c.showSQL {
		resp.SQLQuery = in.SQL
	}
	return resp
}

func cloneRows(rows []*models.Row) []*models.Row {
	out := make([]*models.Row, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		clone := models.NewRow()
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			clone.Set(pair.Key, pair.Value)
		}
		out = append(out, clone)
	}
	return out
}

// dropInvalidProducts removes rows whose product identifier is null, zero
// or negative. Rows without a product column are kept.
func dropInvalidProducts(rows []*models.Row) []*models.Row {
	out := rows[:0]
	for _, row := range rows {
		v, ok := lookupFold(row, productIDColumn)
		if !ok {
			out = append(out, row)
			continue
		}
		if v == nil {
			continue
		}
		if f, ok := toFloat(v); ok && f <= 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}

// attachProductNames looks up product titles for rows that carry only a
// product identifier. Failures leave rows as they were.
func (c *ResponseComposer) attachProductNames(ctx context.Context, in ComposeInput, rows []*models.Row) {
	if len(rows) == 0 {
		return
	}
	idCol := ""
	for pair := rows[0].Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, productIDColumn) {
			idCol = pair.Key
		}
		for _, n := range productNameColumns {
			if strings.EqualFold(pair.Key, n) {
				return
			}
		}
	}
	if idCol == "" {
		return
	}

	posts := in.Tenant.Table("posts")
	if !in.Tenant.Owns(posts) {
		return
	}
	ids := collectIDs(rows, idCol)
	if len(ids) == 0 {
		return
	}

	ds := in.Scope.Datasource
	dialect := ds.Dialect()
	b := sq.Select(dialect.QuoteIdentifier("ID")+" AS product_key", dialect.QuoteIdentifier("post_title")).
		From(dialect.QuoteIdentifier(posts)).
		Where(sq.Eq{dialect.QuoteIdentifier("ID"): ids}).
		PlaceholderFormat(dialect.PlaceholderFormat())
	sqlQuery, args, err := b.ToSql()
	if err == nil {
		sqlQuery, err = sqlutil.PrepareReadOnly(sqlQuery)
	}
	var res *datasource.QueryResult
	if err == nil {
		res, err = c.executor.run(ctx, ds, sqlQuery, args, datasource.MaxQueryLimit)
	}
	if err != nil {
		c.logger.Debug("Product name lookup skipped", zap.Error(err))
		return
	}

	names := make(map[int64]string, len(res.Rows))
	for _, found := range res.Rows {
		key, _ := found.Get("product_key")
		id, ok := toInt64(key)
		if !ok {
			continue
		}
		if title, ok := lookupFold(found, "post_title"); ok && title != nil {
			names[id] = fmt.Sprint(title)
		}
	}
	for _, row := range rows {
		v, _ := row.Get(idCol)
		id, ok := toInt64(v)
		if !ok {
			continue
		}
		if name, ok := names[id]; ok {
			row.Set(productNameCol, name)
			_ = row.MoveAfter(productNameCol, idCol)
		}
	}
}

// summarize asks the completion service for a short summary and falls back
// to a deterministic message.
func (c *ResponseComposer) summarize(ctx context.Context, in ComposeInput, rows []*models.Row) string {
	if len(rows) == 0 {
		return MessageNoResults
	}
	if c.narrative && in.Scope != nil && in.Scope.LLM != nil {
		start := time.Now()
		result, err := in.Scope.LLM.GenerateResponse(ctx,
			prompts.BuildNarrativePrompt(in.Question, rows, len(rows)),
			prompts.NarrativeSystemMessage,
			NarrativeTemperature)
		c.metrics.ObserveCompletion("narrative", time.Since(start), err)
		if err == nil {
			if text := strings.TrimSpace(result.Content); text != "" {
				return text
			}
		} else {
			c.logger.Warn("Narrative summary failed, using plain summary", zap.Error(err))
		}
	}
	return DeterministicSummary(rows)
}

// DeterministicSummary describes rows without a completion service.
func DeterministicSummary(rows []*models.Row) string {
	switch len(rows) {
	case 0:
		return MessageNoResults
	case 1:
		if rows[0].Len() == 1 {
			pair := rows[0].Oldest()
			return fmt.Sprintf("The %s is %v.", columnLabel(pair.Key), pair.Value)
		}
		return "Found 1 result."
	default:
		return fmt.Sprintf("Found %d results.", len(rows))
	}
}
