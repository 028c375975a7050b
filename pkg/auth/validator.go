package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a JWT token string and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACConfig configures HS256 token validation.
type HMACConfig struct {
	// EnableVerification controls whether signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool
	Secret             string
	// Issuer, when set, must match the token's iss claim.
	Issuer string
}

// HMACValidator validates tokens signed with a shared secret.
type HMACValidator struct {
	config HMACConfig
}

// NewHMACValidator creates a validator. A secret is required when
// verification is enabled.
func NewHMACValidator(config HMACConfig) (*HMACValidator, error) {
	if config.EnableVerification && config.Secret == "" {
		return nil, errors.New("jwt secret is required when verification is enabled")
	}
	return &HMACValidator{config: config}, nil
}

// ValidateToken validates a JWT token and returns the claims.
// If verification is disabled, it parses the token without signature validation.
func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	if !v.config.EnableVerification {
		return parseUnverifiedToken(tokenString)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(v.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// parseUnverifiedToken parses a JWT without verifying the signature.
// Used in development mode when EnableVerification is false.
func parseUnverifiedToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// Ensure HMACValidator implements TokenValidator at compile time.
var _ TokenValidator = (*HMACValidator)(nil)
