package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/audit"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/llm"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/platform"
)

func newTestPlanner(t *testing.T, p platform.Client, auditor *audit.SecurityAuditor) *OperationPlanner {
	t.Helper()
	confirmer, err := NewConfirmer("planner-secret", time.Minute)
	require.NoError(t, err)
	return NewOperationPlanner(p, NewQueryExecutor(0, 0, nil, zap.NewNop()), confirmer, auditor, nil, zap.NewNop())
}

func TestOperationPlanner_PlanAPIOperation(t *testing.T) {
	client := llm.NewStaticMockLLMClient(`{"method": "Update", "resource": "posts", "id": 42, "fields": {"title": "Goodbye"}}`)
	planner := newTestPlanner(t, &fakePlatform{}, nil)
	scope := &RequestScope{Tenant: singleSiteTenant(), LLM: client}

	op, err := planner.PlanAPIOperation(context.Background(), scope, "update post 42 title to Goodbye")
	require.NoError(t, err)
	assert.Equal(t, models.PendingOperation{
		Method:   models.OperationUpdate,
		Resource: "posts",
		TargetID: 42,
		Fields:   map[string]any{"title": "Goodbye"},
		TenantID: 1,
	}, *op)

	require.Len(t, client.Temperatures, 1)
	assert.Equal(t, OperationTemperature, client.Temperatures[0])
}

func TestOperationPlanner_PlanAPIOperation_QuotedID(t *testing.T) {
	client := llm.NewStaticMockLLMClient(`{"method": "delete", "resource": "pages", "id": "17"}`)
	planner := newTestPlanner(t, &fakePlatform{}, nil)

	op, err := planner.PlanAPIOperation(context.Background(), &RequestScope{Tenant: singleSiteTenant(), LLM: client}, "delete page 17")
	require.NoError(t, err)
	assert.Equal(t, models.OperationDelete, op.Method)
	assert.Equal(t, int64(17), op.TargetID)
}

func TestOperationPlanner_PlanAPIOperation_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		wantErr    error
	}{
		{"unknown method", `{"method": "truncate", "resource": "posts", "id": 1}`, apperrors.ErrOperationNotAllowed},
		{"resource outside allow-list", `{"method": "delete", "resource": "users", "id": 3}`, apperrors.ErrOperationNotAllowed},
		{"bad field name", `{"method": "update", "resource": "posts", "id": 3, "fields": {"Title; --": "x"}}`, apperrors.ErrOperationNotAllowed},
		{"update without id", `{"method": "update", "resource": "posts", "fields": {"title": "x"}}`, apperrors.ErrInvalidInput},
		{"update without fields", `{"method": "update", "resource": "posts", "id": 3}`, apperrors.ErrInvalidInput},
		{"delete without id", `{"method": "delete", "resource": "posts"}`, apperrors.ErrInvalidInput},
		{"create without fields", `{"method": "create", "resource": "posts"}`, apperrors.ErrInvalidInput},
		{"no change described", `{"method": "", "resource": "posts"}`, apperrors.ErrInvalidInput},
		{"not json", `I would rather not.`, apperrors.ErrGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := newTestPlanner(t, &fakePlatform{}, nil)
			scope := &RequestScope{Tenant: singleSiteTenant(), LLM: llm.NewStaticMockLLMClient(tt.completion)}

			_, err := planner.PlanAPIOperation(context.Background(), scope, "change something")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOperationPlanner_PlanAPIOperation_NoCompletionService(t *testing.T) {
	planner := newTestPlanner(t, &fakePlatform{}, nil)

	_, err := planner.PlanAPIOperation(context.Background(), &RequestScope{Tenant: singleSiteTenant()}, "delete post 5")
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
}

func TestOperationPlanner_InjectionIsAudited(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	planner := newTestPlanner(t, &fakePlatform{}, auditor)
	scope := &RequestScope{
		Tenant: singleSiteTenant(),
		LLM:    llm.NewStaticMockLLMClient(`{"method": "update", "resource": "posts", "id": 7, "fields": {"title": "' OR '1'='1"}}`),
	}

	_, err := planner.PlanAPIOperation(context.Background(), scope, "set the title of post 7")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrOperationNotAllowed)
	assert.Equal(t, 1, logs.Len())
}

func TestOperationPlanner_PlanEditByName_ContentTable(t *testing.T) {
	ds := newFakeDatasource(singleSiteColumns())
	ds.QueryFunc = func(string, []any) (*datasource.QueryResult, error) {
		return resultOf(models.RowOf("content_id", int64(12))), nil
	}
	planner := newTestPlanner(t, &fakePlatform{}, nil)
	scope := &RequestScope{Tenant: singleSiteTenant(), Datasource: ds}
	result := models.IntentResult{Kind: models.IntentEditByName, Name: "Summer Launch", ContentType: "post"}

	op, err := planner.PlanEditByName(context.Background(), scope, result,
		"Rename the post called Summer Launch to Winter Launch")
	require.NoError(t, err)
	assert.Equal(t, models.OperationUpdate, op.Method)
	assert.Equal(t, "posts", op.Resource)
	assert.Equal(t, int64(12), op.TargetID)
	assert.Equal(t, "Summer Launch", op.Title)
	assert.Equal(t, map[string]any{"title": "Winter Launch"}, op.Fields)

	lookups := ds.Queries()
	require.Len(t, lookups, 1)
	assert.Contains(t, lookups[0], "FROM `wp_posts`")
	assert.Contains(t, lookups[0], "`post_title` = ?")
	assert.Equal(t, []any{"Summer Launch", "post", "trash", "auto-draft", "inherit"}, ds.args[0])
}

func TestOperationPlanner_PlanEditByName_Lookups(t *testing.T) {
	tests := []struct {
		name    string
		rows    []*models.Row
		err     error
		wantErr error
	}{
		{name: "not found", wantErr: apperrors.ErrNotFound},
		{
			name:    "ambiguous",
			rows:    []*models.Row{models.RowOf("content_id", int64(3)), models.RowOf("content_id", int64(4))},
			wantErr: apperrors.ErrInvalidInput,
		},
		{
			name:    "content table missing",
			err:     datasource.NewQueryError(context.Background(), fmt.Errorf("Table 'site.wp_posts' doesn't exist"), "1146"),
			wantErr: apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newFakeDatasource(singleSiteColumns())
			ds.QueryFunc = func(string, []any) (*datasource.QueryResult, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return resultOf(tt.rows...), nil
			}
			planner := newTestPlanner(t, &fakePlatform{}, nil)
			scope := &RequestScope{Tenant: singleSiteTenant(), Datasource: ds}

			_, err := planner.PlanEditByName(context.Background(), scope,
				models.IntentResult{Kind: models.IntentEditByName, Name: "Summer Launch", ContentType: "post"},
				"Rename the post called Summer Launch to Winter Launch")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOperationPlanner_PlanEditByName_Delete(t *testing.T) {
	ds := newFakeDatasource(singleSiteColumns())
	ds.QueryFunc = func(string, []any) (*datasource.QueryResult, error) {
		return resultOf(models.RowOf("content_id", int64(31))), nil
	}
	planner := newTestPlanner(t, &fakePlatform{}, nil)
	scope := &RequestScope{Tenant: singleSiteTenant(), Datasource: ds}

	op, err := planner.PlanEditByName(context.Background(), scope,
		models.IntentResult{Kind: models.IntentEditByName, Name: "Old Mug", ContentType: "product"},
		"Please delete the product called Old Mug")
	require.NoError(t, err)
	assert.Equal(t, models.OperationDelete, op.Method)
	assert.Equal(t, "products", op.Resource)
	assert.Equal(t, int64(31), op.TargetID)
	assert.Equal(t, "product", ds.args[0][1])
}

func TestOperationPlanner_PlanEditByName_ResourceAPI(t *testing.T) {
	fp := &fakePlatform{
		configured: true,
		ResolveByNameFunc: func(resource, name string) (*platform.Resource, error) {
			assert.Equal(t, "pages", resource)
			assert.Equal(t, "About Us", name)
			return &platform.Resource{ID: 77, Title: name}, nil
		},
	}
	client := llm.NewStaticMockLLMClient(`{"method": "update", "resource": "pages", "id": 77, "fields": {"status": "draft"}}`)
	ds := newFakeDatasource(singleSiteColumns())
	planner := newTestPlanner(t, fp, nil)
	scope := &RequestScope{Tenant: singleSiteTenant(), Datasource: ds, LLM: client}

	op, err := planner.PlanEditByName(context.Background(), scope,
		models.IntentResult{Kind: models.IntentEditByName, Name: "About Us", ContentType: "page"},
		"Unpublish the page called About Us")
	require.NoError(t, err)
	assert.Equal(t, int64(77), op.TargetID)
	assert.Equal(t, map[string]any{"status": "draft"}, op.Fields)
	assert.Empty(t, ds.Queries())
	assert.Contains(t, client.Prompts[0], "pages #77")
}

func TestOperationPlanner_ConfirmRoundTrip(t *testing.T) {
	fp := &fakePlatform{configured: true}
	planner := newTestPlanner(t, fp, nil)
	op := &models.PendingOperation{
		Method:   models.OperationUpdate,
		Resource: "posts",
		TargetID: 12,
		Title:    "Summer Launch",
		Fields:   map[string]any{"title": "Winter Launch"},
		TenantID: 1,
	}

	resp, err := planner.RequestConfirmation(op)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.RequiresConfirmation)
	assert.Nil(t, resp.Data)
	assert.Equal(t, `I'm about to update the post "Summer Launch" (#12): title → "Winter Launch".`, resp.Message)
	assert.Equal(t, resp.Message+" Confirm to proceed.", resp.ConfirmationMessage)
	require.NotNil(t, resp.ConfirmationData)

	t.Run("other tenant", func(t *testing.T) {
		_, _, err := planner.ExecuteConfirmed(context.Background(), 2, resp.ConfirmationData)
		assert.ErrorIs(t, err, apperrors.ErrConfirmationInvalid)
		assert.Empty(t, fp.applied)
	})

	t.Run("applied", func(t *testing.T) {
		applied, res, err := planner.ExecuteConfirmed(context.Background(), 1, resp.ConfirmationData)
		require.NoError(t, err)
		assert.Equal(t, int64(12), applied.TargetID)
		assert.Equal(t, int64(12), res.ID)
		require.Len(t, fp.applied, 1)
		assert.Equal(t, "Winter Launch", fp.applied[0].Fields["title"])
	})
}

func TestOperationPlanner_ExecuteConfirmed_Rejects(t *testing.T) {
	t.Run("platform not configured", func(t *testing.T) {
		planner := newTestPlanner(t, &fakePlatform{}, nil)
		payload, err := planner.confirmer.Sign(models.PendingOperation{Method: "delete", Resource: "posts", TargetID: 5, TenantID: 1})
		require.NoError(t, err)

		_, _, err = planner.ExecuteConfirmed(context.Background(), 1, payload)
		assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
	})

	t.Run("signed operation still screened", func(t *testing.T) {
		fp := &fakePlatform{configured: true}
		planner := newTestPlanner(t, fp, nil)
		payload, err := planner.confirmer.Sign(models.PendingOperation{Method: "delete", Resource: "users", TargetID: 5, TenantID: 1})
		require.NoError(t, err)

		_, _, err = planner.ExecuteConfirmed(context.Background(), 1, payload)
		assert.ErrorIs(t, err, apperrors.ErrOperationNotAllowed)
		assert.Empty(t, fp.applied)
	})

	t.Run("platform failure", func(t *testing.T) {
		fp := &fakePlatform{
			configured: true,
			ApplyFunc: func(*models.PendingOperation) (*platform.Resource, error) {
				return nil, fmt.Errorf("%w: status 500", apperrors.ErrPlatformRequest)
			},
		}
		planner := newTestPlanner(t, fp, nil)
		payload, err := planner.confirmer.Sign(models.PendingOperation{Method: "delete", Resource: "posts", TargetID: 5, TenantID: 1})
		require.NoError(t, err)

		_, _, err = planner.ExecuteConfirmed(context.Background(), 1, payload)
		assert.ErrorIs(t, err, apperrors.ErrPlatformRequest)
		assert.Equal(t, "The site didn't accept that change. Please try again later.", operationErrorMessage(err))
	})
}

func TestDescribeOperation(t *testing.T) {
	tests := []struct {
		op   models.PendingOperation
		want string
	}{
		{
			op:   models.PendingOperation{Method: "create", Resource: "posts", Fields: map[string]any{"title": "Hello", "status": "draft"}},
			want: `I'm about to create a new post with status → "draft", title → "Hello".`,
		},
		{
			op:   models.PendingOperation{Method: "delete", Resource: "comments", TargetID: 9},
			want: "I'm about to delete the comment #9.",
		},
		{
			op:   models.PendingOperation{Method: "update", Resource: "products", TargetID: 3, Fields: map[string]any{"price": 12.5}},
			want: `I'm about to update the product #3: price → "12.5".`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeOperation(&tt.op))
		})
	}
}

func TestResourceFor(t *testing.T) {
	assert.Equal(t, "posts", resourceFor("post"))
	assert.Equal(t, "pages", resourceFor("page"))
	assert.Equal(t, "products", resourceFor("Product"))
	assert.Equal(t, "categories", resourceFor("category"))
	assert.Equal(t, "posts", resourceFor(""))
	assert.Equal(t, "posts", resourceFor("widget"))
}
