package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/audit"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/intent"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/llm"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/platform"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/security"
)

// DefaultMaxQuestionLength bounds question text in characters.
const DefaultMaxQuestionLength = 2000

// User-facing messages for requests that never reach the database.
const (
	MessageEmptyQuestion        = "Please enter a question."
	MessageQuestionTooLong      = "That question is too long. Please shorten it and try again."
	MessageConfigurationMissing = "I'm not connected to this site's data yet. Ask an administrator to configure the database and completion service."
	MessageTenantScopeEmpty     = "I couldn't find any data tables for this site. Ask an administrator to check the site's table prefix."
	MessagePromptTooLarge       = "That question touches too much of the site's data at once. Please narrow it to something specific, such as orders or posts."
	MessageRephrase             = "I couldn't turn that into a lookup. Please rephrase your question."
	MessageCompletionTimeout    = "The assistant took too long to respond. Please try again in a moment."
	MessageMissingConfirmation  = "There is nothing to confirm. Please ask for the change again."
)

// AssistantService answers one question end to end.
type AssistantService interface {
	// Ask never returns an error: every failure becomes a response payload.
	Ask(ctx context.Context, req *models.AskRequest) *models.ResponsePayload
}

// AssistantDeps are the pipeline stages the assistant runs.
type AssistantDeps struct {
	Scopes     ScopeProvider
	Classifier *intent.Classifier
	Filter     *security.Filter
	Schema     TenantSchemaService
	Selector   *TableSelector
	Generator  *SQLGenerator
	Executor   *QueryExecutor
	Researcher *FallbackResearcher
	Composer   *ResponseComposer
	// Planner may be nil, which disables changes.
	Planner *OperationPlanner
	Auditor *audit.SecurityAuditor
	Metrics *Metrics

	MaxQuestionLength int
}

type assistantService struct {
	AssistantDeps
	logger *zap.Logger
}

// NewAssistantService wires the question pipeline.
func NewAssistantService(deps AssistantDeps, logger *zap.Logger) AssistantService {
	if deps.MaxQuestionLength <= 0 {
		deps.MaxQuestionLength = DefaultMaxQuestionLength
	}
	return &assistantService{
		AssistantDeps: deps,
		logger:        logger.Named("assistant"),
	}
}

func (s *assistantService) Ask(ctx context.Context, req *models.AskRequest) *models.ResponsePayload {
	ctx, span := startSpan(ctx, "assistant.ask")
	defer span.End()

	if req == nil {
		return failure(MessageEmptyQuestion, nil)
	}
	question := strings.TrimSpace(req.Query)

	scope, scopeErr := s.Scopes.Resolve(ctx)
	tenantID := auth.GetTenantIDFromContext(ctx)
	if scopeErr == nil {
		tenantID = scope.Tenant.ID
	}

	if req.Confirmed {
		return s.confirm(ctx, scope, scopeErr, req)
	}

	if question == "" {
		return failure(MessageEmptyQuestion, nil)
	}
	if utf8.RuneCountInString(question) > s.MaxQuestionLength {
		return failure(MessageQuestionTooLong, nil)
	}

	if v := s.Filter.CheckText(ctx, tenantID, question); v != nil {
		s.Metrics.CountRefusal(string(v.Checkpoint))
		return security.Refusal(v)
	}

	result := s.Classifier.Classify(question)
	s.Metrics.CountQuestion(result.Kind)
	span.SetAttributes(
		attribute.String("intent.kind", string(result.Kind)),
		attribute.String("intent.rule", result.Rule))
	s.logger.Debug("Classified question",
		zap.String("intent", string(result.Kind)),
		zap.String("rule", result.Rule))

	analysis := &models.Analysis{Intent: result.Kind, Rule: result.Rule}

	switch result.Kind {
	case models.IntentCapability, models.IntentUnrecognized:
		return &models.ResponsePayload{
			Success:  true,
			Message:  s.Classifier.HelpfulResponse(result),
			Analysis: analysis,
		}
	}

	if scopeErr != nil {
		s.logger.Warn("Request scope unavailable", zap.Error(scopeErr))
		return failure(MessageConfigurationMissing, analysis)
	}

	switch result.Kind {
	case models.IntentEditByName:
		return s.planChange(ctx, analysis, func(scoped *RequestScope) (*models.PendingOperation, error) {
			return s.Planner.PlanEditByName(ctx, scoped, result, question)
		}, scope)
	case models.IntentAPIOperation:
		return s.planChange(ctx, analysis, func(scoped *RequestScope) (*models.PendingOperation, error) {
			return s.Planner.PlanAPIOperation(ctx, scoped, question)
		}, scope)
	default:
		return s.fetch(ctx, scope, question, analysis)
	}
}

// fetch answers a data question: scope, select, generate, screen, execute,
// research and compose.
func (s *assistantService) fetch(ctx context.Context, scope *RequestScope, question string, analysis *models.Analysis) *models.ResponsePayload {
	tenant, tables, err := s.Schema.ScopeTables(ctx, scope)
	if err != nil {
		return s.pipelineFailure("scope tables", err, analysis)
	}

	selected := s.Selector.Select(question, tenant, tables)
	analysis.Tables = selected

	snapshot, err := s.Schema.Snapshot(ctx, scope, tenant, selected)
	if err != nil {
		return s.pipelineFailure("load schema", err, analysis)
	}

	generated, err := s.Generator.Generate(ctx, scope.LLM, question, scope.Datasource.Dialect().Name(), snapshot)
	if err != nil {
		return s.pipelineFailure("generate sql", err, analysis)
	}

	if v := s.Filter.CheckSQL(ctx, tenant.ID, generated.SQL); v != nil {
		s.Metrics.CountRefusal(string(v.Checkpoint))
		return security.Refusal(v)
	}

	outcome := s.Executor.Execute(ctx, scope.Datasource, tenant, generated.SQL)
	analysis.Diagnostics = outcome.Diagnostics

	if NeedsResearch(question, generated.SQL, outcome) {
		fb := s.Researcher.Research(ctx, scope, tenant, tables, question, generated.SQL)
		analysis.Fallback = fb
		return s.answerFromResearch(ctx, scope, tenant, question, outcome, fb, analysis)
	}

	if outcome.IsError() {
		return failure(outcome.UserMessage, analysis)
	}

	return s.compose(ctx, ComposeInput{
		Question: question,
		SQL:      outcome.SQL,
		Rows:     outcome.Rows,
		Scope:    scope,
		Tenant:   tenant,
		Analysis: analysis,
	})
}

// answerFromResearch turns a fallback result into the answer. A winning
// tier replaces the original rows and statement.
func (s *assistantService) answerFromResearch(ctx context.Context, scope *RequestScope, tenant models.Tenant, question string, outcome *models.ExecutionOutcome, fb *models.FallbackResult, analysis *models.Analysis) *models.ResponsePayload {
	in := ComposeInput{
		Question: question,
		SQL:      outcome.SQL,
		Rows:     outcome.Rows,
		Scope:    scope,
		Tenant:   tenant,
		Analysis: analysis,
	}

	switch {
	case fb.Found && fb.Winner != nil:
		in.SQL = fb.Winner.SQL
		in.Rows = fb.Winner.Rows
	case fb.FilterTooStrict:
		analysis.FilterTooStrict = true
		in.Message = filterTooStrictMessage(fb.TotalWithoutFilter)
	default:
		analysis.ConfirmedZero = true
		in.Message = confirmedZeroMessage(fb)
	}
	return s.compose(ctx, in)
}

// compose redacts blocked columns before anything else sees the rows.
func (s *assistantService) compose(ctx context.Context, in ComposeInput) *models.ResponsePayload {
	in.Rows = s.Filter.FilterRows(ctx, in.Tenant.ID, in.Rows)
	resp := s.Composer.Compose(ctx, in)
	if s.Auditor != nil {
		s.Auditor.LogQueryExecution(ctx, in.Tenant.ID, physicalTables(in.SQL), len(resp.Data))
	}
	return resp
}

// planChange resolves the operation and asks the caller to confirm it.
func (s *assistantService) planChange(ctx context.Context, analysis *models.Analysis, plan func(*RequestScope) (*models.PendingOperation, error), scope *RequestScope) *models.ResponsePayload {
	if s.Planner == nil {
		return failure(operationErrorMessage(apperrors.ErrConfigurationMissing), analysis)
	}
	op, err := plan(s.operationScope(ctx, scope))
	if err != nil {
		s.logger.Info("Change request not planned", zap.Error(err))
		return failure(operationErrorMessage(err), analysis)
	}
	resp, err := s.Planner.RequestConfirmation(op)
	if err != nil {
		s.logger.Error("Failed to sign confirmation", zap.Error(err))
		return failure(operationErrorMessage(err), analysis)
	}
	resp.Analysis = analysis
	return resp
}

// confirm applies a previously planned change echoed back by the caller.
func (s *assistantService) confirm(ctx context.Context, scope *RequestScope, scopeErr error, req *models.AskRequest) *models.ResponsePayload {
	if req.ConfirmationData == nil || req.ConfirmationData.Token == "" {
		return failure(MessageMissingConfirmation, nil)
	}
	if s.Planner == nil {
		return failure(operationErrorMessage(apperrors.ErrConfigurationMissing), nil)
	}
	if scopeErr != nil {
		return failure(MessageConfigurationMissing, nil)
	}

	scoped := s.operationScope(ctx, scope)
	op, res, err := s.Planner.ExecuteConfirmed(ctx, scoped.Tenant.ID, req.ConfirmationData)
	if err != nil {
		s.logger.Warn("Confirmed change not applied", zap.Error(err))
		return failure(operationErrorMessage(err), nil)
	}
	s.logger.Info("Applied confirmed change",
		zap.String("method", op.Method),
		zap.String("resource", op.Resource),
		zap.Int64("target_id", res.ID),
		zap.Int("tenant_id", op.TenantID))
	return &models.ResponsePayload{
		Success: true,
		Message: appliedMessage(op, res),
	}
}

// operationScope pins the scope to the tenant that prefix detection
// resolves, so planning and confirming agree on the tenant id.
func (s *assistantService) operationScope(ctx context.Context, scope *RequestScope) *RequestScope {
	tenant, _, err := s.Schema.ScopeTables(ctx, scope)
	if err != nil {
		s.logger.Debug("Using configured tenant for change", zap.Error(err))
		return scope
	}
	scoped := *scope
	scoped.Tenant = tenant
	return &scoped
}

// pipelineFailure maps a stage error to a safe response. Details are logged.
func (s *assistantService) pipelineFailure(stage string, err error, analysis *models.Analysis) *models.ResponsePayload {
	s.logger.Warn("Question pipeline stopped", zap.String("stage", stage), zap.Error(err))

	switch {
	case errors.Is(err, apperrors.ErrConfigurationMissing):
		return failure(MessageConfigurationMissing, analysis)
	case errors.Is(err, apperrors.ErrTenantScopeEmpty):
		return failure(MessageTenantScopeEmpty, analysis)
	case errors.Is(err, apperrors.ErrPromptTooLarge):
		return failure(MessagePromptTooLarge, analysis)
	case errors.Is(err, context.DeadlineExceeded),
		llm.GetErrorType(err) == llm.ErrorTypeTimeout:
		return failure(MessageCompletionTimeout, analysis)
	case errors.Is(err, apperrors.ErrGenerationFailed):
		return failure(MessageRephrase, analysis)
	default:
		return failure(MessageQueryFailed, analysis)
	}
}

func failure(msg string, analysis *models.Analysis) *models.ResponsePayload {
	return &models.ResponsePayload{
		Success:  false,
		Message:  msg,
		Analysis: analysis,
	}
}

func filterTooStrictMessage(total int64) string {
	p := message.NewPrinter(language.English)
	if total == 1 {
		return "No orders matched that time period, but the store has 1 order overall."
	}
	return p.Sprintf("No orders matched that time period, but the store has %d orders overall.", total)
}

func confirmedZeroMessage(fb *models.FallbackResult) string {
	tiers := fb.TiersAttempted()
	if len(tiers) == 0 {
		return "There are no orders matching that question."
	}
	return fmt.Sprintf("There are no orders matching that question. I checked %d places where this site stores orders.", len(tiers))
}

func appliedMessage(op *models.PendingOperation, res *platform.Resource) string {
	noun := inflection.Singular(op.Resource)
	id := op.TargetID
	if res != nil && res.ID != 0 {
		id = res.ID
	}
	switch op.Method {
	case models.OperationCreate:
		return fmt.Sprintf("Done. Created %s #%d.", noun, id)
	case models.OperationDelete:
		return fmt.Sprintf("Done. Deleted %s #%d.", noun, id)
	default:
		return fmt.Sprintf("Done. Updated %s #%d.", noun, id)
	}
}

var _ AssistantService = (*assistantService)(nil)
