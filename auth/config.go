package auth

import "time"

// Config carries the identity core's tunables, mapped from config.Config
// by platform.Build rather than read from the environment directly.
type Config struct {
	JWTSecret         string
	JWTAlgorithm      string
	AccessExpiration  time.Duration
	RefreshExpiration time.Duration

	PasswordMinLength int

	EnableAPIKeys      bool
	APICredentialPrefix string

	EnableRegistration bool
	DefaultRole        string

	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string

	AuditEnabled bool
}

// DefaultConfig returns the identity core's defaults, matching spec.md's
// stated defaults (30 minute access tokens, 7 day refresh tokens).
func DefaultConfig() *Config {
	return &Config{
		JWTAlgorithm:         "HS256",
		AccessExpiration:     30 * time.Minute,
		RefreshExpiration:    7 * 24 * time.Hour,
		PasswordMinLength:    MinPasswordLength,
		EnableAPIKeys:        true,
		APICredentialPrefix:  "sk_live_",
		EnableRegistration:   true,
		DefaultRole:          RoleUser,
		CookieSecure:         true,
		CookieHTTPOnly:       true,
		CookieSameSite:       "Lax",
		AuditEnabled:         true,
	}
}
