package config

import (
	"fmt"
	"os"
	"strconv"
)

// JWTConfig holds the settings used to verify bearer tokens on the HTTP API.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig builds the JWT settings. An empty secret falls back to
// JWT_SECRET; JWT_EXPIRATION_HOURS defaults to 24.
func NewJWTConfig(secret string) (*JWTConfig, error) {
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}

	expirationHours := 24
	if s := os.Getenv("JWT_EXPIRATION_HOURS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		expirationHours = n
	}

	cfg := &JWTConfig{Secret: secret, ExpirationHours: expirationHours}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *JWTConfig) validate() error {
	if c.Secret == "" {
		return fmt.Errorf("jwt secret is required (set jwt_secret or JWT_SECRET)")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
