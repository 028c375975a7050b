package services

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/llm"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// RequestScope is everything one question is answered against. It is built
// per request and passed explicitly through the pipeline.
type RequestScope struct {
	Tenant     models.Tenant
	Datasource datasource.Datasource
	// LLM is nil when no completion service is configured.
	LLM llm.LLMClient
	// TenantPinned is set when the tenant id came from the caller's token
	// and must not be replaced by prefix detection.
	TenantPinned bool
}

// ScopeProvider resolves the scope for the current request.
type ScopeProvider interface {
	Resolve(ctx context.Context) (*RequestScope, error)
}

type staticScopeProvider struct {
	tenantCfg *config.TenantConfig
	ds        datasource.Datasource
	llmClient llm.LLMClient
}

// NewScopeProvider returns a provider that serves one datasource and
// completion client. The tenant comes from configuration unless the
// request carries a token with a tenant id.
func NewScopeProvider(tenantCfg *config.TenantConfig, ds datasource.Datasource, llmClient llm.LLMClient) ScopeProvider {
	return &staticScopeProvider{tenantCfg: tenantCfg, ds: ds, llmClient: llmClient}
}

func (p *staticScopeProvider) Resolve(ctx context.Context) (*RequestScope, error) {
	if p.ds == nil {
		return nil, fmt.Errorf("%w: database connection", apperrors.ErrConfigurationMissing)
	}

	tenant := TenantFromConfig(p.tenantCfg)
	pinned := false
	if id := auth.GetTenantIDFromContext(ctx); id > 0 {
		tenant.ID = id
		pinned = true
	}

	return &RequestScope{
		Tenant:       tenant,
		Datasource:   p.ds,
		LLM:          p.llmClient,
		TenantPinned: pinned,
	}, nil
}

// TenantFromConfig builds the configured tenant with its shared tables
// expanded to full names.
func TenantFromConfig(cfg *config.TenantConfig) models.Tenant {
	shared := make([]string, 0, len(cfg.SharedSuffixes))
	for _, suffix := range cfg.SharedSuffixes {
		shared = append(shared, cfg.BasePrefix+suffix)
	}
	return models.Tenant{
		ID:           cfg.TenantID,
		NetworkID:    cfg.NetworkID,
		BasePrefix:   cfg.BasePrefix,
		MultiTenant:  cfg.MultiTenant,
		SharedTables: shared,
	}
}

var _ ScopeProvider = (*staticScopeProvider)(nil)
