package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/cv-ingest/internal/config"
	"github.com/jonathan/cv-ingest/internal/server/middleware"
)

// Claims identify the draft owner
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// GetUserID implements middleware.UserIDGetter
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

// JWTService verifies HS256 bearer tokens. Tokens are normally issued by the
// account service; Issue is used by tests and local tooling.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

var _ middleware.TokenValidator = (*JWTService)(nil)

// NewJWTService creates a service from the JWT settings
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		ttl:    time.Duration(cfg.ExpirationHours) * time.Hour,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Issue signs a token for userID
func (s *JWTService) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and expiry and returns the claims
func (s *JWTService) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("token string is empty")
	}

	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, describeTokenError(err)
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token has no user_id claim")
	}
	return claims, nil
}

// ValidateToken implements middleware.TokenValidator
func (s *JWTService) ValidateToken(raw string) (middleware.UserIDGetter, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func describeTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("malformed token: %w", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("invalid token signature: %w", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("token expired: %w", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("token is missing a required claim: %w", err)
	}
	return fmt.Errorf("invalid token: %w", err)
}
