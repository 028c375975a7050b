// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
)

// Middleware provides MCP-specific authentication middleware.
// Unlike the general auth middleware, this returns RFC 6750 WWW-Authenticate
// headers for OAuth 2.0 Bearer token authentication errors.
type Middleware struct {
	authService auth.AuthService
	required    bool
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware. When required is false,
// requests without a token pass through and use the configured tenant.
func NewMiddleware(authService auth.AuthService, required bool, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		required:    required,
		logger:      logger,
	}
}

// RequireAuth validates the bearer token and, when authentication is
// mandatory, requires it to carry a tenant id.
func (m *Middleware) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, token, err := m.authService.ValidateRequest(r)
			if err != nil {
				if !m.required && errors.Is(err, auth.ErrMissingAuthorization) {
					next.ServeHTTP(w, r)
					return
				}
				m.logger.Debug("MCP auth failed: invalid or missing token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
				return
			}

			if m.required && claims.TenantID <= 0 {
				m.logger.Debug("MCP auth failed: missing tenant ID",
					zap.String("path", r.URL.Path))
				m.writeWWWAuthenticate(w, http.StatusForbidden, "insufficient_scope", "The access token is missing required tenant scope")
				return
			}

			ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
			ctx = context.WithValue(ctx, auth.TokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
