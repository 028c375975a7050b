package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockAuthService is a mock implementation of AuthService for testing.
type mockAuthService struct {
	claims      *Claims
	token       string
	validateErr error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func TestMiddleware_RequireAuth(t *testing.T) {
	tests := []struct {
		name        string
		service     *mockAuthService
		required    bool
		wantStatus  int
		wantTenant  int
		wantHandler bool
	}{
		{
			name:        "valid token",
			service:     &mockAuthService{claims: &Claims{TenantID: 7}, token: "tok"},
			required:    true,
			wantStatus:  http.StatusOK,
			wantTenant:  7,
			wantHandler: true,
		},
		{
			name:       "missing token when required",
			service:    &mockAuthService{validateErr: ErrMissingAuthorization},
			required:   true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "missing token when optional",
			service:     &mockAuthService{validateErr: ErrMissingAuthorization},
			required:    false,
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:       "invalid token when optional",
			service:    &mockAuthService{validateErr: ErrInvalidAuthFormat},
			required:   false,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "token without tenant",
			service:    &mockAuthService{claims: &Claims{}, token: "tok"},
			required:   true,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMiddleware(tt.service, tt.required, zap.NewNop())

			var called bool
			var tenant int
			handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
				called = true
				tenant = GetTenantIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodPost, "/api/assistant/query", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantHandler, called)
			assert.Equal(t, tt.wantTenant, tenant)

			if rec.Code >= 400 {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.NotEmpty(t, body["message"])
			}
		})
	}
}

func TestAuthService_ValidateRequest(t *testing.T) {
	v, err := NewHMACValidator(HMACConfig{EnableVerification: true, Secret: "k"})
	require.NoError(t, err)
	svc := NewAuthService(v, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, _, err = svc.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrMissingAuthorization)

	req.Header.Set("Authorization", "Token abc")
	_, _, err = svc.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrInvalidAuthFormat)

	token := signTestToken(t, "k", &Claims{TenantID: 4})
	req.Header.Set("Authorization", "Bearer "+token)
	claims, raw, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, 4, claims.TenantID)
	assert.Equal(t, token, raw)

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: "sitequery_jwt", Value: token})
	claims, _, err = svc.ValidateRequest(cookieReq)
	require.NoError(t, err)
	assert.Equal(t, 4, claims.TenantID)
}
