package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.PlatformConfig{BaseURL: srv.URL + "/wp-json/wp/v2", Token: token}, zap.NewNop())
}

func TestResource_UnmarshalTitleShapes(t *testing.T) {
	var rendered Resource
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12, "title": {"rendered": "Summer Launch"}}`), &rendered))
	assert.Equal(t, int64(12), rendered.ID)
	assert.Equal(t, "Summer Launch", rendered.Title)

	var plain Resource
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3, "title": "About"}`), &plain))
	assert.Equal(t, "About", plain.Title)

	var term Resource
	require.NoError(t, json.Unmarshal([]byte(`{"id": 9, "name": "News"}`), &term))
	assert.Equal(t, "News", term.Title)
}

func TestClient_ResolveByName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		assert.Equal(t, "summer launch", r.URL.Query().Get("search"))
		assert.Equal(t, "Bearer site-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"id": 12, "title": {"rendered": "Summer Launch"}},
			{"id": 13, "title": {"rendered": "Summer Launch Recap"}}
		]`))
	}, "site-token")

	res, err := client.ResolveByName(context.Background(), "posts", "summer launch")
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.ID)
}

func TestClient_ResolveByName_NotFoundAndAmbiguous(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "title": "Hello"}, {"id": 2, "title": "hello"}]`))
	}, "")

	_, err := client.ResolveByName(context.Background(), "posts", "Goodbye")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = client.ResolveByName(context.Background(), "posts", "Hello")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestClient_Apply(t *testing.T) {
	tests := []struct {
		name       string
		op         models.PendingOperation
		wantMethod string
		wantPath   string
		wantBody   bool
	}{
		{
			name:       "create",
			op:         models.PendingOperation{Method: models.OperationCreate, Resource: "posts", Fields: map[string]any{"title": "New"}},
			wantMethod: http.MethodPost,
			wantPath:   "/wp-json/wp/v2/posts",
			wantBody:   true,
		},
		{
			name:       "update",
			op:         models.PendingOperation{Method: models.OperationUpdate, Resource: "pages", TargetID: 5, Fields: map[string]any{"title": "Renamed"}},
			wantMethod: http.MethodPut,
			wantPath:   "/wp-json/wp/v2/pages/5",
			wantBody:   true,
		},
		{
			name:       "delete",
			op:         models.PendingOperation{Method: models.OperationDelete, Resource: "posts", TargetID: 8},
			wantMethod: http.MethodDelete,
			wantPath:   "/wp-json/wp/v2/posts/8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantMethod, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				body, _ := io.ReadAll(r.Body)
				if tt.wantBody {
					var fields map[string]any
					require.NoError(t, json.Unmarshal(body, &fields))
					assert.Equal(t, tt.op.Fields["title"], fields["title"])
				} else {
					assert.Empty(t, body)
				}
				_, _ = w.Write([]byte(`{"id": 42}`))
			}, "t")

			op := tt.op
			res, err := client.Apply(context.Background(), &op)
			require.NoError(t, err)
			assert.Equal(t, int64(42), res.ID)
		})
	}
}

func TestClient_Apply_RejectsUnknownMethod(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, "")

	_, err := client.Apply(context.Background(), &models.PendingOperation{Method: "truncate", Resource: "posts"})
	assert.ErrorIs(t, err, apperrors.ErrOperationNotAllowed)
}

func TestClient_ForwardsCallerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer caller-jwt", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}, "")

	ctx := context.WithValue(context.Background(), auth.TokenKey, "caller-jwt")
	_, err := client.ResolveByName(ctx, "posts", "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClient_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code": "rest_forbidden"}`))
	}, "")

	_, err := client.ResolveByName(context.Background(), "posts", "x")
	assert.ErrorIs(t, err, apperrors.ErrPlatformRequest)
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(&config.PlatformConfig{}, zap.NewNop())
	assert.False(t, client.Configured())

	_, err := client.ResolveByName(context.Background(), "posts", "x")
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
}
