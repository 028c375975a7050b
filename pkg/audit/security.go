// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/middleware"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSensitiveDataRefusal is logged when a question or generated SQL is refused.
	EventSensitiveDataRefusal SecurityEventType = "sensitive_data_refusal"
	// EventColumnRedaction is logged when credential columns are stripped from results.
	EventColumnRedaction SecurityEventType = "column_redaction"
	// EventSQLInjectionAttempt is logged when libinjection flags a user-supplied value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventQueryExecution is logged for executed statements (can be high volume).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	TenantID  int               `json:"tenant_id"`
	RequestID string            `json:"request_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// RefusalDetails describes why a checkpoint refused a request.
type RefusalDetails struct {
	Checkpoint string `json:"checkpoint"` // text, sql
	Strategy   string `json:"strategy"`
	Reason     string `json:"reason"`
	Match      string `json:"match"`
}

// InjectionDetails contains specifics of a detected SQL injection attempt.
type InjectionDetails struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Operation   string `json:"operation"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, tenantID int, severity string, details any) (SecurityEvent, string) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		TenantID:  tenantID,
		RequestID: middleware.GetRequestID(ctx),
		UserID:    auth.GetUserIDFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)
	return event, string(eventJSON)
}

// LogRefusal records a refused question or statement at WARN level.
// Refusals are normal conversational outcomes, but repeated ones from one
// user are worth alerting on.
func (a *SecurityAuditor) LogRefusal(ctx context.Context, tenantID int, details RefusalDetails) {
	event, eventJSON := a.event(ctx, EventSensitiveDataRefusal, tenantID, "warning", details)

	a.logger.Warn("Sensitive data request refused",
		zap.String("event_json", eventJSON),
		zap.Int("tenant_id", tenantID),
		zap.String("request_id", event.RequestID),
		zap.String("checkpoint", details.Checkpoint),
		zap.String("strategy", details.Strategy),
		zap.String("reason", details.Reason),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogRedaction records credential columns stripped from a result set.
func (a *SecurityAuditor) LogRedaction(ctx context.Context, tenantID int, columns []string) {
	event, eventJSON := a.event(ctx, EventColumnRedaction, tenantID, "info",
		map[string][]string{"columns": columns})

	a.logger.Info("Result columns redacted",
		zap.String("event_json", eventJSON),
		zap.Int("tenant_id", tenantID),
		zap.String("request_id", event.RequestID),
		zap.Strings("columns", columns),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogInjectionAttempt records a detected SQL injection attempt with full context.
// This is logged at ERROR level with "critical" severity for immediate alerting.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx, tenantID,
//	    audit.InjectionDetails{
//	        Field:       "fields.title",
//	        Value:       "x' OR '1'='1",
//	        Fingerprint: "s&sos",
//	        Operation:   "update posts",
//	    },
//	)
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, tenantID int, details InjectionDetails) {
	event, eventJSON := a.event(ctx, EventSQLInjectionAttempt, tenantID, "critical", details)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", eventJSON),
		zap.Int("tenant_id", tenantID),
		zap.String("request_id", event.RequestID),
		zap.String("field", details.Field),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

// LogQueryExecution records an executed statement for the audit trail.
// Note: This can generate high log volume in production.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, tenantID int, tables []string, rowCount int) {
	event, eventJSON := a.event(ctx, EventQueryExecution, tenantID, "info",
		map[string]any{"tables": tables, "row_count": rowCount})

	a.logger.Info("Query executed",
		zap.String("event_json", eventJSON),
		zap.Int("tenant_id", tenantID),
		zap.String("request_id", event.RequestID),
		zap.Strings("tables", tables),
		zap.Int("row_count", rowCount),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}
