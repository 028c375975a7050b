package mcpauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
)

// mockAuthService is a mock implementation of auth.AuthService for testing.
type mockAuthService struct {
	claims      *auth.Claims
	token       string
	validateErr error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func serve(t *testing.T, mw *Middleware) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var seen *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mw.RequireAuth()(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestRequireAuth_InjectsClaims(t *testing.T) {
	svc := &mockAuthService{claims: &auth.Claims{TenantID: 3}, token: "tok"}

	rec, seen := serve(t, NewMiddleware(svc, true, zap.NewNop()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, 3, auth.GetTenantIDFromContext(seen.Context()))
	token, ok := auth.GetToken(seen.Context())
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestRequireAuth_Failures(t *testing.T) {
	tests := []struct {
		name       string
		svc        *mockAuthService
		required   bool
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing token when required",
			svc:        &mockAuthService{validateErr: auth.ErrMissingAuthorization},
			required:   true,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_token",
		},
		{
			name:       "invalid token when optional",
			svc:        &mockAuthService{validateErr: errors.New("signature is invalid")},
			required:   false,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_token",
		},
		{
			name:       "token without tenant",
			svc:        &mockAuthService{claims: &auth.Claims{}, token: "tok"},
			required:   true,
			wantStatus: http.StatusForbidden,
			wantError:  "insufficient_scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := serve(t, NewMiddleware(tt.svc, tt.required, zap.NewNop()))

			assert.Nil(t, seen, "next handler must not run")
			assert.Equal(t, tt.wantStatus, rec.Code)
			header := rec.Header().Get("WWW-Authenticate")
			assert.True(t, strings.HasPrefix(header, "Bearer "), header)
			assert.Contains(t, header, `error="`+tt.wantError+`"`)
		})
	}
}

func TestRequireAuth_OptionalPassesAnonymous(t *testing.T) {
	svc := &mockAuthService{validateErr: auth.ErrMissingAuthorization}

	rec, seen := serve(t, NewMiddleware(svc, false, zap.NewNop()))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, 0, auth.GetTenantIDFromContext(seen.Context()))
}
