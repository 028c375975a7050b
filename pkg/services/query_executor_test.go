package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

func TestQueryExecutor_Execute_Classifies(t *testing.T) {
	tests := []struct {
		name          string
		sql           string
		result        *datasource.QueryResult
		err           error
		wantKind      models.OutcomeKind
		wantMessage   string
		wantRetryable bool
		wantQueried   bool
		multiSite     bool
	}{
		{
			name:        "rows",
			sql:         "SELECT ID, post_title FROM wp_posts",
			result:      resultOf(models.RowOf("ID", int64(1), "post_title", "Hello")),
			wantKind:    models.OutcomeRows,
			wantQueried: true,
		},
		{
			name:        "schema error",
			sql:         "SELECT x FROM wp_posts",
			err:         datasource.NewQueryError(context.Background(), errors.New("Unknown column 'x'"), "1054"),
			wantKind:    models.OutcomeSchemaError,
			wantMessage: MessageSchemaError,
			wantQueried: true,
		},
		{
			name:          "timeout",
			sql:           "SELECT ID FROM wp_posts",
			err:           datasource.NewQueryError(context.Background(), context.DeadlineExceeded, ""),
			wantKind:      models.OutcomeOtherError,
			wantMessage:   MessageTimeout,
			wantRetryable: true,
			wantQueried:   true,
		},
		{
			name:        "other error",
			sql:         "SELECT ID FROM wp_posts",
			err:         datasource.NewQueryError(context.Background(), errors.New("access denied for user 'site'@'%'"), "1045"),
			wantKind:    models.OutcomeOtherError,
			wantMessage: MessageQueryFailed,
			wantQueried: true,
		},
		{
			name:        "mutation rejected before execution",
			sql:         "DELETE FROM wp_posts",
			wantKind:    models.OutcomeOtherError,
			wantMessage: MessageNotReadOnly,
		},
		{
			name:        "select with mutation keyword rejected",
			sql:         "SELECT 1; DROP TABLE wp_posts",
			wantKind:    models.OutcomeOtherError,
			wantMessage: MessageNotReadOnly,
		},
		{
			name:        "other tenant table rejected",
			sql:         "SELECT ID FROM wp_2_5_posts",
			wantKind:    models.OutcomeOtherError,
			wantMessage: MessageOutOfScope,
		},
		{
			name:        "parenthesized other tenant table rejected",
			sql:         "SELECT COUNT(*) FROM (wp_1_8_posts)",
			wantKind:    models.OutcomeOtherError,
			wantMessage: MessageOutOfScope,
			multiSite:   true,
		},
		{
			name:        "parenthesized join to other tenant rejected",
			sql:         "SELECT p.ID FROM wp_1_7_posts p JOIN (wp_1_8_posts q) ON 1=1",
			wantKind:    models.OutcomeOtherError,
			wantMessage: MessageOutOfScope,
			multiSite:   true,
		},
	}

	tenant := singleSiteTenant()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newFakeDatasource(singleSiteColumns())
			ds.QueryFunc = func(string, []any) (*datasource.QueryResult, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return tt.result, nil
			}
			exec := NewQueryExecutor(0, 0, nil, zap.NewNop())

			scoped := tenant
			if strings.Contains(tt.sql, "wp_2_5_") {
				scoped = multiSiteTenant(2)
			}
			if tt.multiSite {
				scoped = multiSiteTenant(7)
			}
			outcome := exec.Execute(context.Background(), ds, scoped, tt.sql)

			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, tt.wantMessage, outcome.UserMessage)
			assert.Equal(t, tt.wantRetryable, outcome.Retryable)
			assert.Equal(t, tt.wantQueried, len(ds.Queries()) > 0)
			if outcome.IsError() {
				assert.NotEmpty(t, outcome.Detail)
				assert.NotContains(t, outcome.UserMessage, "1054")
			}
		})
	}
}

func TestQueryExecutor_Execute_EmptyDiagnostics(t *testing.T) {
	ds := newFakeDatasource(singleSiteColumns())
	ds.QueryFunc = func(sqlQuery string, _ []any) (*datasource.QueryResult, error) {
		if strings.Contains(strings.ToUpper(sqlQuery), "WHERE") {
			return resultOf(), nil
		}
		return resultOf(models.RowOf("ID", int64(3))), nil
	}
	exec := NewQueryExecutor(0, 0, nil, zap.NewNop())

	outcome := exec.Execute(context.Background(), ds, singleSiteTenant(),
		"SELECT ID FROM wp_posts WHERE post_type = 'shop_order'")

	require.Equal(t, models.OutcomeEmpty, outcome.Kind)
	require.NotNil(t, outcome.Diagnostics)
	assert.Equal(t, "post_type = 'shop_order'", outcome.Diagnostics.WhereClause)
	assert.True(t, outcome.Diagnostics.RowsWithoutWhere)
	require.Len(t, outcome.Diagnostics.Tables, 1)
	assert.Equal(t, models.TableDiagnostic{Table: "wp_posts", Exists: true, InScope: true}, outcome.Diagnostics.Tables[0])
}

func TestQueryExecutor_CTENamesAreNotTables(t *testing.T) {
	ds := newFakeDatasource(singleSiteColumns())
	exec := NewQueryExecutor(0, 0, nil, zap.NewNop())

	outcome := exec.Execute(context.Background(), ds, singleSiteTenant(),
		"WITH recent AS (SELECT ID FROM wp_posts) SELECT COUNT(*) FROM recent")

	assert.Equal(t, models.OutcomeEmpty, outcome.Kind)
	assert.Len(t, ds.Queries(), 1)
}
