package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// TenantSchemaService narrows the database to the tables one tenant may see.
type TenantSchemaService interface {
	// ScopeTables detects the tenant naming scheme and returns the resolved
	// tenant together with every table in its scope.
	ScopeTables(ctx context.Context, scope *RequestScope) (models.Tenant, []string, error)

	// Snapshot loads ordered column lists for the given tables.
	Snapshot(ctx context.Context, scope *RequestScope, tenant models.Tenant, tables []string) (*models.SchemaSnapshot, error)
}

type tenantSchemaService struct {
	logger *zap.Logger
}

// NewTenantSchemaService creates the tenant schema resolver.
func NewTenantSchemaService(logger *zap.Logger) TenantSchemaService {
	return &tenantSchemaService{logger: logger.Named("tenant-schema")}
}

func (s *tenantSchemaService) ScopeTables(ctx context.Context, scope *RequestScope) (models.Tenant, []string, error) {
	all, err := scope.Datasource.ListTables(ctx)
	if err != nil {
		return scope.Tenant, nil, fmt.Errorf("list tables: %w", err)
	}

	tenant := ResolveTenant(scope.Tenant, all, scope.TenantPinned)
	if tenant.ID != scope.Tenant.ID || tenant.NetworkID != scope.Tenant.NetworkID {
		s.logger.Info("Tenant id replaced by dominant table prefix",
			zap.Int("configured_tenant_id", scope.Tenant.ID),
			zap.Int("tenant_id", tenant.ID),
			zap.Int("network_id", tenant.NetworkID))
	}

	tables := FilterTenantTables(tenant, all)
	if !hasOwnTable(tenant, tables) {
		return tenant, nil, fmt.Errorf("%w: %s", apperrors.ErrTenantScopeEmpty, tenant.Prefix())
	}

	s.logger.Debug("Resolved tenant scope",
		zap.String("prefix", tenant.Prefix()),
		zap.Int("total_tables", len(all)),
		zap.Int("scope_tables", len(tables)))
	return tenant, tables, nil
}

func (s *tenantSchemaService) Snapshot(ctx context.Context, scope *RequestScope, tenant models.Tenant, tables []string) (*models.SchemaSnapshot, error) {
	snapshot := &models.SchemaSnapshot{Tenant: tenant}
	for _, table := range tables {
		if !tenant.Owns(table) {
			continue
		}
		cols, err := scope.Datasource.GetColumns(ctx, table)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("Skipping table with unreadable columns",
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		snapshot.Tables = append(snapshot.Tables, models.TableSchema{Name: table, Columns: names})
	}
	if len(snapshot.Tables) == 0 {
		return nil, fmt.Errorf("%w: no readable tables for %s", apperrors.ErrTenantScopeEmpty, tenant.Prefix())
	}
	return snapshot, nil
}

// tenantKey is a (network, tenant) pair found in table names.
type tenantKey struct {
	network int
	tenant  int
}

func compoundPattern(basePrefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(basePrefix) + `(\d+)_(\d+)_`)
}

// countTenantPrefixes counts tables per "{base}{network}_{tenant}_" prefix.
func countTenantPrefixes(basePrefix string, tables []string) map[tenantKey]int {
	pattern := compoundPattern(basePrefix)
	counts := make(map[tenantKey]int)
	for _, t := range tables {
		m := pattern.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		network, err1 := strconv.Atoi(m[1])
		id, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		counts[tenantKey{network: network, tenant: id}]++
	}
	return counts
}

// ResolveTenant switches to multi-tenant mode exactly when compound prefixes
// exist and, unless the tenant is pinned, replaces a default tenant id of 1 with
// the prefix that dominates the table names. Ties go to the lowest
// network then the lowest tenant id.
func ResolveTenant(tenant models.Tenant, tables []string, pinned bool) models.Tenant {
	counts := countTenantPrefixes(tenant.BasePrefix, tables)
	tenant.MultiTenant = len(counts) > 0
	if !tenant.MultiTenant {
		return tenant
	}
	if pinned || tenant.ID != 1 {
		return tenant
	}

	keys := make([]tenantKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].network != keys[j].network {
			return keys[i].network < keys[j].network
		}
		return keys[i].tenant < keys[j].tenant
	})

	best := keys[0]
	current := tenantKey{network: tenant.NetworkID, tenant: tenant.ID}
	if best != current && counts[best] > counts[current] {
		tenant.NetworkID = best.network
		tenant.ID = best.tenant
	}
	return tenant
}

// FilterTenantTables returns, in input order, the tables the tenant owns:
// those under its exact prefix plus the shared tables. In single-tenant
// mode tables under any compound prefix belong to other sites and are
// excluded.
func FilterTenantTables(tenant models.Tenant, tables []string) []string {
	pattern := compoundPattern(tenant.BasePrefix)
	var scoped []string
	for _, t := range tables {
		if !tenant.Owns(t) {
			continue
		}
		if !tenant.MultiTenant && !tenant.IsShared(t) && pattern.MatchString(t) {
			continue
		}
		scoped = append(scoped, t)
	}
	return scoped
}

// hasOwnTable reports whether any table is tenant-owned rather than shared.
func hasOwnTable(tenant models.Tenant, tables []string) bool {
	for _, t := range tables {
		if !tenant.IsShared(t) {
			return true
		}
	}
	return false
}

var _ TenantSchemaService = (*tenantSchemaService)(nil)
