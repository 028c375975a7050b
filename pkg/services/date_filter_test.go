package services

import (
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filterNow = time.Date(2024, time.March, 14, 15, 30, 0, 0, time.UTC) // a Thursday

func TestDeriveDateFilter_FromWhere(t *testing.T) {
	f := deriveDateFilter("how many orders",
		"SELECT COUNT(*) FROM wp_wc_orders WHERE status = 'wc-completed' AND date_created_gmt >= DATE_SUB(NOW(), INTERVAL 7 DAY)",
		filterNow)
	require.NotNil(t, f)
	assert.Equal(t, "where", f.source)
	require.Len(t, f.exprs, 1)

	sqlQuery, args, err := f.apply(sq.Select("COUNT(*)").From("wp_posts"), "post_date").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM wp_posts WHERE post_date >= DATE_SUB(NOW(), INTERVAL 7 DAY)", sqlQuery)
	assert.Empty(t, args)
}

func TestDeriveDateFilter_DropsJoinedConditions(t *testing.T) {
	f := deriveDateFilter("orders",
		"SELECT COUNT(*) FROM wp_wc_orders o JOIN wp_users u ON u.ID = o.customer_id WHERE o.date_created_gmt > u.user_registered",
		filterNow)
	assert.Nil(t, f)
}

func TestDeriveDateFilter_FromPhrase(t *testing.T) {
	startOfDay := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		question string
		wantFrom time.Time
		wantTo   time.Time
	}{
		{"orders in the last 7 days", filterNow.AddDate(0, 0, -7), time.Time{}},
		{"orders over the past 2 weeks", filterNow.AddDate(0, 0, -14), time.Time{}},
		{"sales last month", filterNow.AddDate(0, -1, 0), time.Time{}},
		{"orders yesterday", startOfDay.AddDate(0, 0, -1), startOfDay},
		{"orders today", startOfDay, time.Time{}},
		{"orders this week", time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC), time.Time{}},
		{"orders this month", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), time.Time{}},
		{"orders this year", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			f := deriveDateFilter(tt.question, "SELECT COUNT(*) FROM wp_wc_orders", filterNow)
			require.NotNil(t, f)
			assert.Equal(t, "phrase", f.source)
			assert.True(t, tt.wantFrom.Equal(f.from), "from = %s", f.from)
			assert.True(t, tt.wantTo.Equal(f.to), "to = %s", f.to)
		})
	}
}

func TestDeriveDateFilter_None(t *testing.T) {
	assert.Nil(t, deriveDateFilter("how many orders", "SELECT COUNT(*) FROM wp_wc_orders", filterNow))
}

func TestDateFilter_ApplyRange(t *testing.T) {
	f := &dateFilter{from: filterNow.AddDate(0, 0, -1), to: filterNow}
	sqlQuery, args, err := f.apply(sq.Select("ID").From("wp_posts"), "`post_date`").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT ID FROM wp_posts WHERE `post_date` >= ? AND `post_date` < ?", sqlQuery)
	assert.Equal(t, []any{filterNow.AddDate(0, 0, -1), filterNow}, args)

	var none *dateFilter
	sqlQuery, _, err = none.apply(sq.Select("ID").From("wp_posts"), "post_date").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT ID FROM wp_posts", sqlQuery)
}

func TestPickDateColumn(t *testing.T) {
	assert.Equal(t, "date_created_gmt", pickDateColumn([]string{"id", "date_updated_gmt", "date_created_gmt"}))
	assert.Equal(t, "post_date", pickDateColumn([]string{"ID", "post_date", "post_modified"}))
	assert.Equal(t, "shipped_at", pickDateColumn([]string{"id", "shipped_at"}))
	assert.Equal(t, "", pickDateColumn([]string{"id", "status"}))
}
