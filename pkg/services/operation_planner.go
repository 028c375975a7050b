package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/audit"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/llm"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/platform"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/prompts"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// OperationTemperature keeps plans deterministic.
const OperationTemperature = 0.0

// OperationResources are the collections a change may target.
var OperationResources = []string{"posts", "pages", "products", "comments", "categories", "tags", "media"}

// resourcePostTypes maps content resources to their stored post type.
var resourcePostTypes = map[string]string{
	"posts":    "post",
	"pages":    "page",
	"products": "product",
	"media":    "attachment",
}

var (
	fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	renameToPattern  = regexp.MustCompile(`(?i)\bto\s+["“'‘]?(.+?)["”'’]?\s*[.!?]?\s*$`)
	deleteVerbs      = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:delete|remove|trash)\b`)
)

// operationPlan is the completion service's JSON answer.
type operationPlan struct {
	Method   string          `json:"method"`
	Resource string          `json:"resource"`
	ID       json.RawMessage `json:"id"`
	Fields   map[string]any  `json:"fields"`
}

// OperationPlanner turns change requests into confirmable operations and
// applies them once confirmed.
type OperationPlanner struct {
	platform  platform.Client
	executor  *QueryExecutor
	confirmer *Confirmer
	auditor   *audit.SecurityAuditor
	metrics   *Metrics
	logger    *zap.Logger
}

// NewOperationPlanner creates a planner. platformClient may be unconfigured,
// in which case names resolve against the content table and nothing can be
// applied.
func NewOperationPlanner(platformClient platform.Client, executor *QueryExecutor, confirmer *Confirmer, auditor *audit.SecurityAuditor, metrics *Metrics, logger *zap.Logger) *OperationPlanner {
	return &OperationPlanner{
		platform:  platformClient,
		executor:  executor,
		confirmer: confirmer,
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger.Named("operation-planner"),
	}
}

// PlanAPIOperation asks the completion service for an operation and
// validates it.
func (p *OperationPlanner) PlanAPIOperation(ctx context.Context, scope *RequestScope, question string) (*models.PendingOperation, error) {
	if scope.LLM == nil {
		return nil, fmt.Errorf("%w: completion service", apperrors.ErrConfigurationMissing)
	}
	plan, err := p.askPlan(ctx, scope.LLM, question)
	if err != nil {
		return nil, err
	}
	op := &models.PendingOperation{
		Method:   strings.ToLower(strings.TrimSpace(plan.Method)),
		Resource: strings.ToLower(strings.TrimSpace(plan.Resource)),
		TargetID: jsonutil.FlexibleInt64Value(plan.ID),
		Fields:   plan.Fields,
		TenantID: scope.Tenant.ID,
	}
	if err := p.validate(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// PlanEditByName resolves the named item and builds an update (or delete)
// against it.
func (p *OperationPlanner) PlanEditByName(ctx context.Context, scope *RequestScope, result models.IntentResult, question string) (*models.PendingOperation, error) {
	resource := resourceFor(result.ContentType)
	id, err := p.resolveName(ctx, scope, resource, result.Name)
	if err != nil {
		return nil, err
	}

	op := &models.PendingOperation{
		Method:   models.OperationUpdate,
		Resource: resource,
		TargetID: id,
		Title:    result.Name,
		TenantID: scope.Tenant.ID,
	}
	if deleteVerbs.MatchString(question) {
		op.Method = models.OperationDelete
	}

	if op.Method == models.OperationUpdate && scope.LLM != nil {
		request := fmt.Sprintf("%s\n\nThe target is %s #%d titled %q.", question, resource, id, result.Name)
		if plan, err := p.askPlan(ctx, scope.LLM, request); err == nil {
			if strings.EqualFold(plan.Method, models.OperationDelete) {
				op.Method = models.OperationDelete
			}
			op.Fields = plan.Fields
		} else {
			p.logger.Debug("Operation plan unavailable, using rename phrasing", zap.Error(err))
		}
	}
	if op.Method == models.OperationUpdate && len(op.Fields) == 0 {
		if m := renameToPattern.FindStringSubmatch(question); m != nil {
			op.Fields = map[string]any{"title": strings.TrimSpace(m[1])}
		}
	}

	if err := p.validate(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// RequestConfirmation signs op and builds the confirmation response.
func (p *OperationPlanner) RequestConfirmation(op *models.PendingOperation) (*models.ResponsePayload, error) {
	if p.confirmer == nil {
		return nil, fmt.Errorf("%w: confirmation secret", apperrors.ErrConfigurationMissing)
	}
	payload, err := p.confirmer.Sign(*op)
	if err != nil {
		return nil, err
	}
	msg := DescribeOperation(op)
	return &models.ResponsePayload{
		Success:              true,
		Message:              msg,
		RequiresConfirmation: true,
		ConfirmationMessage:  msg + " Confirm to proceed.",
		ConfirmationData:     payload,
	}, nil
}

// ExecuteConfirmed verifies a confirmation payload for tenantID, screens the
// operation again and applies it.
func (p *OperationPlanner) ExecuteConfirmed(ctx context.Context, tenantID int, payload *models.ConfirmationPayload) (*models.PendingOperation, *platform.Resource, error) {
	if p.confirmer == nil {
		return nil, nil, fmt.Errorf("%w: confirmation secret", apperrors.ErrConfigurationMissing)
	}
	op, err := p.confirmer.Verify(payload)
	if err != nil {
		return nil, nil, err
	}
	if op.TenantID != tenantID {
		return nil, nil, fmt.Errorf("%w: tenant mismatch", apperrors.ErrConfirmationInvalid)
	}
	if err := p.validate(ctx, op); err != nil {
		return nil, nil, err
	}
	if p.platform == nil || !p.platform.Configured() {
		return op, nil, fmt.Errorf("%w: platform base URL", apperrors.ErrConfigurationMissing)
	}
	res, err := p.platform.Apply(ctx, op)
	if err != nil {
		return op, nil, err
	}
	return op, res, nil
}

func (p *OperationPlanner) askPlan(ctx context.Context, client llm.LLMClient, request string) (*operationPlan, error) {
	start := time.Now()
	result, err := client.GenerateResponse(ctx,
		prompts.BuildOperationPrompt(request, OperationResources),
		prompts.OperationSystemMessage,
		OperationTemperature)
	p.metrics.ObserveCompletion("operation", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGenerationFailed, err)
	}
	plan, err := llm.ParseJSONResponse[operationPlan](result.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(plan.Method) == "" {
		return nil, fmt.Errorf("%w: request does not describe a change", apperrors.ErrInvalidInput)
	}
	return &plan, nil
}

// validate applies the method and resource allow-lists, identifier rules,
// field-name rules and injection screening.
func (p *OperationPlanner) validate(ctx context.Context, op *models.PendingOperation) error {
	switch op.Method {
	case models.OperationCreate:
		if len(op.Fields) == 0 {
			return fmt.Errorf("%w: nothing to create", apperrors.ErrInvalidInput)
		}
	case models.OperationUpdate:
		if op.TargetID <= 0 {
			return fmt.Errorf("%w: update needs a target id", apperrors.ErrInvalidInput)
		}
		if len(op.Fields) == 0 {
			return fmt.Errorf("%w: no changes described", apperrors.ErrInvalidInput)
		}
	case models.OperationDelete:
		if op.TargetID <= 0 {
			return fmt.Errorf("%w: delete needs a target id", apperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: method %q", apperrors.ErrOperationNotAllowed, op.Method)
	}

	if !isAllowedResource(op.Resource) {
		return fmt.Errorf("%w: resource %q", apperrors.ErrOperationNotAllowed, op.Resource)
	}
	for name := range op.Fields {
		if !fieldNamePattern.MatchString(name) {
			return fmt.Errorf("%w: field %q", apperrors.ErrOperationNotAllowed, name)
		}
	}

	if hits := sqlutil.CheckFields(op.Fields); len(hits) > 0 {
		for _, hit := range hits {
			if p.auditor == nil {
				break
			}
			p.auditor.LogInjectionAttempt(ctx, op.TenantID, audit.InjectionDetails{
				Field:       hit.Field,
				Value:       hit.Value,
				Fingerprint: hit.Fingerprint,
				Operation:   op.Method + " " + op.Resource,
			})
		}
		return fmt.Errorf("%w: field %q failed screening", apperrors.ErrOperationNotAllowed, hits[0].Field)
	}
	return nil
}

// resolveName finds the numeric id of a titled item, through the resource
// API when configured and otherwise in the content table.
func (p *OperationPlanner) resolveName(ctx context.Context, scope *RequestScope, resource, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: no content name", apperrors.ErrInvalidInput)
	}
	if p.platform != nil && p.platform.Configured() {
		res, err := p.platform.ResolveByName(ctx, resource, name)
		if err != nil {
			return 0, err
		}
		return res.ID, nil
	}

	postType, ok := resourcePostTypes[resource]
	if !ok {
		return 0, fmt.Errorf("%w: %s cannot be looked up without the resource API", apperrors.ErrConfigurationMissing, resource)
	}
	ds := scope.Datasource
	dialect := ds.Dialect()
	q := dialect.QuoteIdentifier
	posts := scope.Tenant.Table("posts")
	b := sq.Select(q("ID")+" AS content_id").
		From(q(posts)).
		Where(sq.Eq{q("post_title"): name}).
		Where(sq.Eq{q("post_type"): postType}).
		Where(sq.NotEq{q("post_status"): []string{"trash", "auto-draft", "inherit"}}).
		Limit(2).
		PlaceholderFormat(dialect.PlaceholderFormat())
	sqlQuery, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build name lookup: %w", err)
	}
	if sqlQuery, err = sqlutil.PrepareReadOnly(sqlQuery); err != nil {
		return 0, err
	}
	res, err := p.executor.run(ctx, ds, sqlQuery, args, 2)
	if err != nil {
		if datasource.KindOf(err) == datasource.ErrorKindSchema {
			return 0, fmt.Errorf("%w: %s", apperrors.ErrNotFound, posts)
		}
		return 0, err
	}
	switch len(res.Rows) {
	case 0:
		return 0, fmt.Errorf("%w: no %s titled %q", apperrors.ErrNotFound, resource, name)
	case 1:
		v, _ := res.Rows[0].Get("content_id")
		id, ok := toInt64(v)
		if !ok || id <= 0 {
			return 0, fmt.Errorf("%w: unexpected id %v", apperrors.ErrNotFound, v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%w: several %s titled %q", apperrors.ErrInvalidInput, resource, name)
	}
}

// resourceFor maps a content noun to its resource collection.
func resourceFor(contentType string) string {
	if contentType == "" {
		return "posts"
	}
	plural := inflection.Plural(strings.ToLower(contentType))
	if isAllowedResource(plural) {
		return plural
	}
	if isAllowedResource(contentType) {
		return contentType
	}
	return "posts"
}

func isAllowedResource(resource string) bool {
	for _, r := range OperationResources {
		if r == resource {
			return true
		}
	}
	return false
}

// DescribeOperation renders a pending operation for confirmation prompts.
func DescribeOperation(op *models.PendingOperation) string {
	noun := inflection.Singular(op.Resource)
	target := fmt.Sprintf("%s #%d", noun, op.TargetID)
	if op.Title != "" {
		target = fmt.Sprintf("%s %q (#%d)", noun, op.Title, op.TargetID)
	}

	switch op.Method {
	case models.OperationCreate:
		return fmt.Sprintf("I'm about to create a new %s with %s.", noun, describeFields(op.Fields))
	case models.OperationDelete:
		return fmt.Sprintf("I'm about to delete the %s.", target)
	default:
		return fmt.Sprintf("I'm about to update the %s: %s.", target, describeFields(op.Fields))
	}
}

func describeFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s → %q", k, fmt.Sprint(fields[k]))
	}
	return strings.Join(parts, ", ")
}

// operationErrorMessage turns planner errors into user-facing text.
func operationErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "I couldn't find content with that name. Please check the title and try again."
	case errors.Is(err, apperrors.ErrConfirmationInvalid):
		return "That confirmation has expired or is not valid. Please ask for the change again."
	case errors.Is(err, apperrors.ErrOperationNotAllowed):
		return "I can't make that change."
	case errors.Is(err, apperrors.ErrConfigurationMissing):
		return "Changing site content isn't set up yet. Ask an administrator to configure the site connection."
	case errors.Is(err, apperrors.ErrPlatformRequest):
		return "The site didn't accept that change. Please try again later."
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "I'm not sure exactly what to change. Please say which item and what should change."
	default:
		return "I couldn't work out that change. Please try rephrasing it."
	}
}
