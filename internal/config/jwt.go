package config

import (
	"fmt"
	"time"
)

// JWTConfig holds configuration for access token generation and validation.
type JWTConfig struct {
	Secret            string
	ExpirationMinutes int
}

// JWT derives the token configuration from the auth section.
func (a AuthConfig) JWT() (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret:            a.JWTSecret,
		ExpirationMinutes: a.AccessTokenExpireMinutes,
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationMinutes) * time.Minute
}

func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.ExpirationMinutes < 1 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be at least 1, got: %d", c.ExpirationMinutes)
	}
	return nil
}
