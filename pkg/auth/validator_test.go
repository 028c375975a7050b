package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func testClaims(tenantID int, issuer string, expiresIn time.Duration) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
		TenantID: tenantID,
	}
}

func TestNewHMACValidator_RequiresSecret(t *testing.T) {
	_, err := NewHMACValidator(HMACConfig{EnableVerification: true})
	require.Error(t, err)

	_, err = NewHMACValidator(HMACConfig{EnableVerification: false})
	require.NoError(t, err)
}

func TestHMACValidator_ValidateToken(t *testing.T) {
	v, err := NewHMACValidator(HMACConfig{EnableVerification: true, Secret: "s3cret", Issuer: "site"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: signTestToken(t, "s3cret", testClaims(7, "site", time.Hour))},
		{name: "wrong secret", token: signTestToken(t, "other", testClaims(7, "site", time.Hour)), wantErr: true},
		{name: "wrong issuer", token: signTestToken(t, "s3cret", testClaims(7, "elsewhere", time.Hour)), wantErr: true},
		{name: "expired", token: signTestToken(t, "s3cret", testClaims(7, "site", -time.Minute)), wantErr: true},
		{name: "garbage", token: "not-a-jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 7, claims.TenantID)
			assert.Equal(t, "user-1", claims.Subject)
		})
	}
}

func TestHMACValidator_UnverifiedMode(t *testing.T) {
	v, err := NewHMACValidator(HMACConfig{})
	require.NoError(t, err)

	claims, err := v.ValidateToken(signTestToken(t, "anything", testClaims(3, "", -time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 3, claims.TenantID)
}
