package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

func multiSiteTables() []string {
	return []string{
		"wp_1_1_posts", "wp_1_1_options",
		"wp_1_2_posts", "wp_1_2_postmeta", "wp_1_2_options", "wp_1_2_wc_orders",
		"wp_1_3_posts",
		"wp_users", "wp_usermeta", "wp_blogs",
		"other_table",
	}
}

func multiSiteTenant(id int) models.Tenant {
	return models.Tenant{
		ID:           id,
		NetworkID:    1,
		BasePrefix:   "wp_",
		MultiTenant:  true,
		SharedTables: []string{"wp_users", "wp_usermeta", "wp_blogs"},
	}
}

func TestResolveTenant(t *testing.T) {
	tests := []struct {
		name        string
		tenant      models.Tenant
		tables      []string
		pinned      bool
		wantID      int
		wantNetwork int
		wantMulti   bool
	}{
		{
			name:        "default id replaced by dominant prefix",
			tenant:      multiSiteTenant(1),
			tables:      multiSiteTables(),
			wantID:      2,
			wantNetwork: 1,
			wantMulti:   true,
		},
		{
			name:        "pinned tenant kept",
			tenant:      multiSiteTenant(1),
			tables:      multiSiteTables(),
			pinned:      true,
			wantID:      1,
			wantNetwork: 1,
			wantMulti:   true,
		},
		{
			name:        "explicit tenant kept",
			tenant:      multiSiteTenant(3),
			tables:      multiSiteTables(),
			wantID:      3,
			wantNetwork: 1,
			wantMulti:   true,
		},
		{
			name:        "ties go to the lowest tenant",
			tenant:      multiSiteTenant(1),
			tables:      []string{"wp_1_5_posts", "wp_1_4_posts"},
			wantID:      4,
			wantNetwork: 1,
			wantMulti:   true,
		},
		{
			name:        "no compound prefixes means single tenant",
			tenant:      multiSiteTenant(1),
			tables:      []string{"wp_posts", "wp_options", "wp_users"},
			wantID:      1,
			wantNetwork: 1,
			wantMulti:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTenant(tt.tenant, tt.tables, tt.pinned)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantNetwork, got.NetworkID)
			assert.Equal(t, tt.wantMulti, got.MultiTenant)
		})
	}
}

func TestFilterTenantTables(t *testing.T) {
	t.Run("multi tenant keeps own and shared tables", func(t *testing.T) {
		got := FilterTenantTables(multiSiteTenant(2), multiSiteTables())
		assert.Equal(t, []string{
			"wp_1_2_posts", "wp_1_2_postmeta", "wp_1_2_options", "wp_1_2_wc_orders",
			"wp_users", "wp_usermeta", "wp_blogs",
		}, got)
	})

	t.Run("single tenant excludes other sites", func(t *testing.T) {
		tenant := singleSiteTenant()
		got := FilterTenantTables(tenant, []string{"wp_posts", "wp_2_3_posts", "wp_users", "other_posts"})
		assert.Equal(t, []string{"wp_posts", "wp_users"}, got)
	})

	t.Run("never returns a table outside the prefix", func(t *testing.T) {
		tenant := multiSiteTenant(3)
		for _, table := range FilterTenantTables(tenant, multiSiteTables()) {
			assert.True(t, tenant.Owns(table), table)
		}
	})
}

func TestTenantSchemaService_ScopeTables(t *testing.T) {
	ds := newFakeDatasource(map[string][]string{
		"wp_1_2_posts":   {"ID"},
		"wp_1_2_options": {"option_id"},
		"wp_1_3_posts":   {"ID"},
		"wp_users":       {"ID"},
	})
	svc := NewTenantSchemaService(zap.NewNop())

	tenant, tables, err := svc.ScopeTables(context.Background(), &RequestScope{
		Tenant:     multiSiteTenant(1),
		Datasource: ds,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tenant.ID)
	assert.ElementsMatch(t, []string{"wp_1_2_options", "wp_1_2_posts", "wp_users"}, tables)
}

func TestTenantSchemaService_ScopeTables_EmptyScope(t *testing.T) {
	ds := newFakeDatasource(map[string][]string{
		"wp_1_2_posts": {"ID"},
		"wp_users":     {"ID"},
	})
	svc := NewTenantSchemaService(zap.NewNop())

	_, tables, err := svc.ScopeTables(context.Background(), &RequestScope{
		Tenant:       multiSiteTenant(9),
		Datasource:   ds,
		TenantPinned: true,
	})
	require.ErrorIs(t, err, apperrors.ErrTenantScopeEmpty)
	assert.Nil(t, tables)
}

func TestTenantSchemaService_Snapshot(t *testing.T) {
	ds := newFakeDatasource(singleSiteColumns())
	svc := NewTenantSchemaService(zap.NewNop())
	scope := &RequestScope{Tenant: singleSiteTenant(), Datasource: ds}

	snap, err := svc.Snapshot(context.Background(), scope, scope.Tenant,
		[]string{"wp_posts", "wp_missing", "wp_2_2_posts", "wp_users"})
	require.NoError(t, err)

	require.Len(t, snap.Tables, 2)
	assert.Equal(t, "wp_posts", snap.Tables[0].Name)
	assert.Equal(t, []string{"ID", "post_author", "post_date", "post_title", "post_status", "post_type"}, snap.Tables[0].Columns)
	assert.Equal(t, "wp_users", snap.Tables[1].Name)
}

func TestTenantSchemaService_Snapshot_NothingReadable(t *testing.T) {
	ds := newFakeDatasource(map[string][]string{})
	svc := NewTenantSchemaService(zap.NewNop())
	scope := &RequestScope{Tenant: singleSiteTenant(), Datasource: ds}

	_, err := svc.Snapshot(context.Background(), scope, scope.Tenant, []string{"wp_posts"})
	assert.ErrorIs(t, err, apperrors.ErrTenantScopeEmpty)
}
