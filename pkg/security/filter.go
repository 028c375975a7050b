package security

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/audit"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// Canonical refusal messages.
const (
	RefusalCredentials = "I can't help with that. Passwords, payment details and other credentials are never shared."
	RefusalPersonal    = "I can't share that. The request would expose private account or personal data."
)

// RefusalMessages lists every message a refusal may carry.
var RefusalMessages = []string{RefusalCredentials, RefusalPersonal}

// Filter runs every checkpoint through the configurable strategy (when
// installed) and the hardcoded backstop. Either one may refuse.
type Filter struct {
	strategies []Strategy
	auditor    *audit.SecurityAuditor
	logger     *zap.Logger
}

// NewFilter creates a filter. pluggable may be nil; the backstop always runs.
func NewFilter(pluggable Strategy, auditor *audit.SecurityAuditor, logger *zap.Logger) *Filter {
	strategies := []Strategy{NewBackstop()}
	if pluggable != nil {
		strategies = append([]Strategy{pluggable}, strategies...)
	}
	return &Filter{
		strategies: strategies,
		auditor:    auditor,
		logger:     logger.Named("security"),
	}
}

// CheckText screens question text. Every strategy is evaluated; the first
// violation is returned and all are audited.
func (f *Filter) CheckText(ctx context.Context, tenantID int, text string) *Violation {
	analytic := IsAnalytic(text)
	return f.firstViolation(ctx, tenantID, func(s Strategy) *Violation {
		return s.CheckText(text, analytic)
	})
}

// CheckSQL screens a generated statement before execution.
func (f *Filter) CheckSQL(ctx context.Context, tenantID int, sqlQuery string) *Violation {
	return f.firstViolation(ctx, tenantID, func(s Strategy) *Violation {
		return s.CheckSQL(sqlQuery)
	})
}

func (f *Filter) firstViolation(ctx context.Context, tenantID int, check func(Strategy) *Violation) *Violation {
	var first *Violation
	for _, s := range f.strategies {
		v := check(s)
		if v == nil {
			continue
		}
		if f.auditor != nil {
			f.auditor.LogRefusal(ctx, tenantID, audit.RefusalDetails{
				Checkpoint: string(v.Checkpoint),
				Strategy:   v.Strategy,
				Reason:     v.Reason,
				Match:      v.Match,
			})
		}
		if first == nil {
			first = v
		}
	}
	return first
}

// IsBlockedColumn reports whether any strategy blocks the column.
func (f *Filter) IsBlockedColumn(name string) bool {
	for _, s := range f.strategies {
		if s.IsBlockedColumn(name) {
			return true
		}
	}
	return false
}

// FilterRows strips blocked columns from every row and drops rows left
// empty by the stripping. Input rows are not modified. Filtering an
// already-filtered set returns an equal set.
func (f *Filter) FilterRows(ctx context.Context, tenantID int, rows []*models.Row) []*models.Row {
	if len(rows) == 0 {
		return rows
	}

	removed := make(map[string]bool)
	out := make([]*models.Row, 0, len(rows))
	for _, row := range rows {
		clean := models.NewRow()
		stripped := false
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			if f.IsBlockedColumn(pair.Key) {
				removed[pair.Key] = true
				stripped = true
				continue
			}
			clean.Set(pair.Key, pair.Value)
		}
		if stripped && clean.Len() == 0 {
			continue
		}
		out = append(out, clean)
	}

	if len(removed) > 0 {
		cols := make([]string, 0, len(removed))
		for c := range removed {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		f.logger.Info("Stripped blocked columns from results",
			zap.Strings("columns", cols),
			zap.Int("rows_in", len(rows)),
			zap.Int("rows_out", len(out)))
		if f.auditor != nil {
			f.auditor.LogRedaction(ctx, tenantID, cols)
		}
	}
	return out
}

// RefusalMessage returns the canonical message for a violation.
func RefusalMessage(v *Violation) string {
	if v == nil {
		return RefusalPersonal
	}
	switch v.Reason {
	case ReasonCredentialRequest, ReasonCredentialColumn:
		return RefusalCredentials
	default:
		return RefusalPersonal
	}
}

// Refusal builds the response for a refused request: success with no data.
func Refusal(v *Violation) *models.ResponsePayload {
	return &models.ResponsePayload{
		Success: true,
		Data:    nil,
		Message: RefusalMessage(v),
	}
}
