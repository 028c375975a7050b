package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/security"
)

// Event types recorded for tool calls.
const (
	EventToolCall             = "tool_call"
	EventToolError            = "tool_error"
	EventSensitiveRefusal     = "sensitive_data_refusal"
	EventSQLInjectionAttempt  = "sql_injection_attempt"
	EventConfirmationRejected = "confirmation_rejected"
)

// Security levels attached to audit events.
const (
	SecurityNormal   = "normal"
	SecurityWarning  = "warning"
	SecurityCritical = "critical"
)

// AuditEvent is one tool call as written to the audit log.
type AuditEvent struct {
	EventType     string
	ToolName      string
	TenantID      int
	UserID        string
	RequestID     string
	RequestParams map[string]any
	WasSuccessful bool
	ErrorMessage  string
	ResultSummary map[string]any
	Duration      time.Duration
	SecurityLevel string
	SecurityFlags []string
}

// AuditLogger writes MCP tool-call events as structured log entries.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	event := a.buildEvent(ctx, id, req)
	event.EventType = EventToolCall
	event.WasSuccessful = true
	event.ResultSummary = summarizeResult(result)
	classifyToolCallSecurity(event, result)

	a.record(event)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	event := a.buildEvent(ctx, id, req)
	event.EventType = EventToolError
	event.WasSuccessful = false
	event.ErrorMessage = err.Error()
	classifyErrorSecurity(event, event.ErrorMessage)

	a.record(event)
}

func (a *AuditLogger) buildEvent(ctx context.Context, id any, req *mcplib.CallToolRequest) *AuditEvent {
	start := time.Now()
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		start = v.(time.Time)
	}

	event := &AuditEvent{
		ToolName:      req.Params.Name,
		RequestParams: sanitizeParams(req.Params.Arguments),
		RequestID:     middleware.GetRequestID(ctx),
		Duration:      time.Since(start),
		SecurityLevel: SecurityNormal,
	}

	if claims, ok := auth.GetClaims(ctx); ok {
		event.UserID = claims.Subject
		event.TenantID = claims.TenantID
	}

	return event
}

func (a *AuditLogger) record(event *AuditEvent) {
	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("tool", event.ToolName),
		zap.Int("tenant_id", event.TenantID),
		zap.Bool("success", event.WasSuccessful),
		zap.Duration("duration", event.Duration),
		zap.String("security_level", event.SecurityLevel),
		zap.Any("params", event.RequestParams),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if len(event.SecurityFlags) > 0 {
		fields = append(fields, zap.Strings("security_flags", event.SecurityFlags))
	}
	if event.ResultSummary != nil {
		fields = append(fields, zap.Any("result", event.ResultSummary))
	}
	if event.ErrorMessage != "" {
		fields = append(fields, zap.String("error", event.ErrorMessage))
	}

	switch event.SecurityLevel {
	case SecurityCritical:
		a.logger.Error("MCP tool call", fields...)
	case SecurityWarning:
		a.logger.Warn("MCP tool call", fields...)
	default:
		a.logger.Info("MCP tool call", fields...)
	}
}

// maxParamSize is the maximum size of string parameters kept in audit logs.
const maxParamSize = 10240

// sqlStringLiteralPattern matches SQL string literals, including '' escapes.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

// sensitiveParams identifies parameter keys whose values are hashed.
var sensitiveParams = security.NewBackstop()

// sanitizeParams applies truncation, SQL literal redaction and sensitive
// value hashing to tool arguments.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if sensitiveParams.IsBlockedColumn(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}
	return val
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || strings.HasSuffix(lower, "_sql")
}

// redactSQLStringLiterals replaces string literal values in SQL with '***'.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// hashSensitiveValue returns a SHA-256 prefix so entries can be correlated
// without storing the value.
func hashSensitiveValue(value any) string {
	str, ok := value.(string)
	if !ok {
		str = fmt.Sprintf("%v", value)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractAnswerFields(tc.Text, summary)
		text := tc.Text
		if len(text) > 200 {
			text = text[:200] + "...[truncated]"
		}
		summary["preview"] = text
		break
	}

	return summary
}

// extractAnswerFields copies the answer's outcome fields into the summary.
func extractAnswerFields(text string, summary map[string]any) {
	var partial struct {
		Success              *bool  `json:"success"`
		Message              string `json:"message"`
		RequiresConfirmation bool   `json:"requires_confirmation"`
		Analysis             *struct {
			RowCount int `json:"row_count"`
		} `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil || partial.Success == nil {
		return
	}
	summary["success"] = *partial.Success
	summary["message"] = partial.Message
	if partial.RequiresConfirmation {
		summary["requires_confirmation"] = true
	}
	if partial.Analysis != nil {
		summary["row_count"] = partial.Analysis.RowCount
	}
}

// classifyToolCallSecurity upgrades the event when the answer was a refusal
// or the tool reported a security error.
func classifyToolCallSecurity(event *AuditEvent, result *mcplib.CallToolResult) {
	if result == nil {
		return
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}

		var answer struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(tc.Text), &answer); err == nil && slices.Contains(security.RefusalMessages, answer.Message) {
			event.EventType = EventSensitiveRefusal
			event.SecurityLevel = SecurityWarning
			event.SecurityFlags = append(event.SecurityFlags, "sensitive_data_request")
			return
		}

		if !result.IsError {
			continue
		}
		text := strings.ToLower(tc.Text)
		if strings.Contains(text, "security_violation") || strings.Contains(text, "injection") {
			event.EventType = EventSQLInjectionAttempt
			event.SecurityLevel = SecurityCritical
			event.SecurityFlags = append(event.SecurityFlags, "sql_injection_attempt")
			return
		}
		if strings.Contains(text, "confirmation_invalid") {
			event.EventType = EventConfirmationRejected
			event.SecurityLevel = SecurityWarning
			event.SecurityFlags = append(event.SecurityFlags, "confirmation_rejected")
			return
		}
	}
}

// classifyErrorSecurity inspects an error message for security-relevant
// patterns.
func classifyErrorSecurity(event *AuditEvent, errMsg string) {
	lower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(lower, "injection"):
		event.EventType = EventSQLInjectionAttempt
		event.SecurityLevel = SecurityCritical
		event.SecurityFlags = append(event.SecurityFlags, "sql_injection_attempt")
	case strings.Contains(lower, "authentication"), strings.Contains(lower, "unauthorized"):
		event.SecurityLevel = SecurityWarning
		event.SecurityFlags = append(event.SecurityFlags, "auth_failure")
	}
}
