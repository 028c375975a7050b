package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// DefaultConfirmationTTL is how long a pending operation stays confirmable.
const DefaultConfirmationTTL = 10 * time.Minute

const confirmationIssuer = "sitequery-confirmation"

// operationClaims carries a pending operation inside a signed token.
type operationClaims struct {
	jwt.RegisteredClaims
	Operation models.PendingOperation `json:"op"`
}

// Confirmer signs pending operations and verifies them when echoed back.
// Only the token is trusted; the plain copy in a payload is for display.
type Confirmer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewConfirmer creates a confirmer. An empty secret is rejected.
func NewConfirmer(secret string, ttl time.Duration) (*Confirmer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: confirmation secret", apperrors.ErrConfigurationMissing)
	}
	if ttl <= 0 {
		ttl = DefaultConfirmationTTL
	}
	return &Confirmer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign returns the confirmation payload for op.
func (c *Confirmer) Sign(op models.PendingOperation) (*models.ConfirmationPayload, error) {
	now := c.now()
	claims := operationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    confirmationIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Operation: op,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign confirmation: %w", err)
	}
	return &models.ConfirmationPayload{Token: token, Operation: op}, nil
}

// Verify checks the payload's signature and expiry and returns the signed
// operation.
func (c *Confirmer) Verify(payload *models.ConfirmationPayload) (*models.PendingOperation, error) {
	if payload == nil || payload.Token == "" {
		return nil, fmt.Errorf("%w: missing token", apperrors.ErrConfirmationInvalid)
	}

	claims := &operationClaims{}
	_, err := jwt.ParseWithClaims(payload.Token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(confirmationIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", apperrors.ErrConfirmationInvalid)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfirmationInvalid, err)
	}
	return &claims.Operation, nil
}
