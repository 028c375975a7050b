package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenant_Prefix(t *testing.T) {
	multi := Tenant{ID: 7, NetworkID: 1, BasePrefix: "wp_", MultiTenant: true}
	assert.Equal(t, "wp_1_7_", multi.Prefix())

	single := Tenant{ID: 1, NetworkID: 1, BasePrefix: "wp_"}
	assert.Equal(t, "wp_", single.Prefix())
}

func TestTenant_OwnsAndTable(t *testing.T) {
	tenant := Tenant{
		ID: 7, NetworkID: 1, BasePrefix: "wp_", MultiTenant: true,
		SharedTables: []string{"wp_users", "wp_usermeta"},
	}

	assert.True(t, tenant.Owns("wp_1_7_posts"))
	assert.True(t, tenant.Owns("wp_users"))
	assert.False(t, tenant.Owns("wp_1_70_posts"), "prefix match must include the trailing separator")
	assert.False(t, tenant.Owns("wp_1_8_posts"))
	assert.False(t, tenant.Owns("wp_options"))

	assert.Equal(t, "wp_1_7_posts", tenant.Table("posts"))
	assert.Equal(t, "wp_users", tenant.Table("users"))
	assert.Equal(t, "posts", tenant.Suffix("wp_1_7_posts"))
	assert.Equal(t, "users", tenant.Suffix("wp_users"))
}

func TestRow_PreservesColumnOrderInJSON(t *testing.T) {
	row := RowOf("zeta", 1, "alpha", "a", "mid", nil)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zeta":1,"alpha":"a","mid":null}`, string(data))
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":null}`, string(data))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, RowColumns(row))
}

func TestFallbackResult_TiersAttempted(t *testing.T) {
	r := FallbackResult{Attempts: []FallbackAttempt{
		{Tier: TierLegacyPosts, Table: "wp_posts"},
		{Tier: TierOrderTable, Table: "wp_wc_orders", SkipReason: "table not in scope"},
		{Tier: TierOrderTable, Table: "wp_wc_order_stats"},
		{Tier: TierLineItems, Table: "wp_wc_order_product_lookup"},
	}}
	assert.Equal(t, []FallbackTier{TierLegacyPosts, TierOrderTable, TierLineItems}, r.TiersAttempted())
}
