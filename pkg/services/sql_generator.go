package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/llm"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/prompts"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// SQLGenerationTemperature keeps generated SQL close to deterministic.
const SQLGenerationTemperature = 0.1

// DefaultMaxPromptTokens bounds the estimated size of a generation prompt.
const DefaultMaxPromptTokens = 12000

// SQLGenerator turns a question and a tenant-scoped schema into one statement.
type SQLGenerator struct {
	maxPromptTokens int
	metrics         *Metrics
	logger          *zap.Logger
}

// NewSQLGenerator creates a generator. metrics may be nil.
func NewSQLGenerator(maxPromptTokens int, metrics *Metrics, logger *zap.Logger) *SQLGenerator {
	if maxPromptTokens <= 0 {
		maxPromptTokens = DefaultMaxPromptTokens
	}
	return &SQLGenerator{
		maxPromptTokens: maxPromptTokens,
		metrics:         metrics,
		logger:          logger.Named("sql-generator"),
	}
}

// Generate builds the prompt, rejects it when the estimate exceeds the
// budget, and returns the completion with any code fences removed.
// Failures wrap apperrors.ErrPromptTooLarge or apperrors.ErrGenerationFailed.
func (g *SQLGenerator) Generate(ctx context.Context, client llm.LLMClient, question, dialect string, snapshot *models.SchemaSnapshot) (*models.GeneratedQuery, error) {
	ctx, span := startSpan(ctx, "sql.generate")
	defer span.End()

	if client == nil {
		return nil, fmt.Errorf("%w: completion service", apperrors.ErrConfigurationMissing)
	}

	prompt := prompts.BuildSQLGenerationPrompt(prompts.SQLGenerationContext{
		Question: question,
		Dialect:  dialect,
		Tenant:   snapshot.Tenant,
		Tables:   snapshot.Tables,
	})
	estimated := prompts.EstimateTokens(prompts.SQLGenerationSystemMessage) + prompts.EstimateTokens(prompt)
	if estimated > g.maxPromptTokens {
		err := fmt.Errorf("%w: estimated %d tokens, limit %d", apperrors.ErrPromptTooLarge, estimated, g.maxPromptTokens)
		recordSpanError(span, err)
		return nil, err
	}

	start := time.Now()
	result, err := client.GenerateResponse(ctx, prompt, prompts.SQLGenerationSystemMessage, SQLGenerationTemperature)
	g.metrics.ObserveCompletion("sql", time.Since(start), err)
	if err != nil {
		g.logger.Error("SQL generation failed",
			zap.String("model", client.GetModel()),
			zap.Error(err))
		err = fmt.Errorf("%w: %w", apperrors.ErrGenerationFailed, err)
		recordSpanError(span, err)
		return nil, err
	}

	sqlQuery := sqlutil.StripCodeFences(result.Content)
	if sqlQuery == "" {
		err := fmt.Errorf("%w: empty completion", apperrors.ErrGenerationFailed)
		recordSpanError(span, err)
		return nil, err
	}

	g.logger.Debug("Generated SQL",
		zap.Int("estimated_tokens", estimated),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("tables", len(snapshot.Tables)))
	return &models.GeneratedQuery{SQL: sqlQuery, Prompt: prompt}, nil
}
