//go:build integration

package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/testhelpers"
)

func newIntegrationAdapter(t *testing.T) *Adapter {
	t.Helper()
	site := testhelpers.GetSiteDB(t)

	adapter, err := NewAdapter(context.Background(), site.Config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	require.NoError(t, adapter.Ping(context.Background()))
	return adapter
}

func TestAdapterIntegration_Schema(t *testing.T) {
	adapter := newIntegrationAdapter(t)
	ctx := context.Background()

	tables, err := adapter.ListTables(ctx)
	require.NoError(t, err)
	assert.Subset(t, tables, []string{"wp_users", "wp_usermeta", "wp_1_1_posts", "wp_1_1_postmeta", "wp_1_2_posts"})

	columns, err := adapter.GetColumns(ctx, "wp_1_1_posts")
	require.NoError(t, err)
	require.NotEmpty(t, columns)
	assert.Equal(t, "ID", columns[0].Name)
	assert.Equal(t, 1, columns[0].OrdinalPosition)
}

func TestAdapterIntegration_Query(t *testing.T) {
	adapter := newIntegrationAdapter(t)

	result, err := adapter.Query(context.Background(),
		"SELECT `ID`, `post_title` FROM `wp_1_1_posts` WHERE `post_status` = ? AND `post_type` = ? ORDER BY `ID`",
		[]any{"publish", "post"}, 2)
	require.NoError(t, err)

	require.Equal(t, 2, result.RowCount, "limit is applied")
	assert.Equal(t, []string{"ID", "post_title"}, []string{result.Columns[0].Name, result.Columns[1].Name})
	id, _ := result.Rows[0].Get("ID")
	assert.EqualValues(t, 10, id)
	title, _ := result.Rows[0].Get("post_title")
	assert.Equal(t, "Hello World", title)
}

func TestAdapterIntegration_QueryAggregates(t *testing.T) {
	adapter := newIntegrationAdapter(t)

	result, err := adapter.Query(context.Background(),
		"SELECT COUNT(*) AS order_count, SUM(CAST(`meta_value` AS DECIMAL(10,2))) AS order_total FROM `wp_1_1_postmeta` WHERE `meta_key` = '_order_total'",
		nil, 0)
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	count, _ := result.Rows[0].Get("order_count")
	assert.EqualValues(t, testhelpers.FixtureLegacyOrders, count)
	total, _ := result.Rows[0].Get("order_total")
	assert.InDelta(t, 71.90, total, 0.001)
}

func TestAdapterIntegration_SchemaErrorIsClassified(t *testing.T) {
	adapter := newIntegrationAdapter(t)

	_, err := adapter.Query(context.Background(), "SELECT * FROM `wp_1_1_wc_orders`", nil, 0)
	require.Error(t, err)

	var qe *datasource.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, datasource.ErrorKindSchema, qe.Kind)
	assert.Equal(t, "1146", qe.Code)
}
