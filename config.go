package otherus

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, loaded from the
// environment. Secrets only ever arrive through env vars and are never
// logged.
type Config struct {
	Addr              string        `env:"OTHERUS_ADDR" envDefault:":8000"`
	ClientCallbackURL string        `env:"OTHERUS_CLIENT_CALLBACK_URL" envDefault:"http://localhost:8550/oauth_callback"`
	JWTSecret         string        `env:"OTHERUS_JWT_SECRET" envDefault:"changeme"`
	JWTIssuer         string        `env:"OTHERUS_JWT_ISSUER" envDefault:"otherus"`
	TokenTTL          time.Duration `env:"OTHERUS_TOKEN_TTL" envDefault:"60m"`
	StateTTL          time.Duration `env:"OTHERUS_STATE_TTL" envDefault:"600s"`

	// Store selects the backing store: "redis" or "mem". The in-memory
	// store is for development and tests only.
	Store string `env:"OTHERUS_STORE" envDefault:"redis"`

	RedisAddr     string `env:"OTHERUS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisUsername string `env:"OTHERUS_REDIS_USERNAME"`
	RedisPassword string `env:"OTHERUS_REDIS_PASSWORD"`

	ProviderTimeout time.Duration `env:"OTHERUS_PROVIDER_TIMEOUT" envDefault:"10s"`

	GoogleClientID     string `env:"OTHERUS_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OTHERUS_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"OTHERUS_GOOGLE_REDIRECT_URI"`

	GitHubClientID     string `env:"OTHERUS_GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"OTHERUS_GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string `env:"OTHERUS_GITHUB_REDIRECT_URI"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// GoogleConfigured reports whether the Google provider can be enabled.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}

// GitHubConfigured reports whether the GitHub provider can be enabled.
func (c Config) GitHubConfigured() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != "" && c.GitHubRedirectURI != ""
}
