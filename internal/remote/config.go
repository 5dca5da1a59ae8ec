package remote

import (
	"fmt"
	"time"
)

// Auth modes for outgoing requests.
const (
	AuthNone   = "none"
	AuthStatic = "static"
	AuthJWT    = "jwt"
)

// Config holds remote service client settings.
type Config struct {
	// BaseURL is the HTTP endpoint of the remote service.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// PushURL is the websocket endpoint for server-initiated corrections.
	// Empty disables the push listener.
	PushURL string `yaml:"push_url"`

	// Timeout bounds every request, including the background ones.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig selects how outgoing requests are authenticated.
type AuthConfig struct {
	// Mode is one of none, static, jwt.
	Mode string `yaml:"mode" validate:"omitempty,oneof=none static jwt"`

	// Token is the bearer token for static mode.
	Token string `yaml:"token"`

	// Secret signs short-lived HS256 tokens in jwt mode.
	Secret string `yaml:"secret"`

	// Subject identifies this installation in signed tokens.
	Subject string `yaml:"subject"`

	// TTL is the lifetime of signed tokens.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns remote client defaults. BaseURL stays empty; the
// container runs fully local until one is configured.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Auth: AuthConfig{
			Mode:    AuthNone,
			Subject: "satchel",
			TTL:     15 * time.Minute,
		},
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = def.Auth.Mode
	}
	if c.Auth.Subject == "" {
		c.Auth.Subject = def.Auth.Subject
	}
	if c.Auth.TTL == 0 {
		c.Auth.TTL = def.Auth.TTL
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	switch c.Auth.Mode {
	case AuthNone:
	case AuthStatic:
		if c.Auth.Token == "" {
			return fmt.Errorf("auth token is required for static mode")
		}
	case AuthJWT:
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth secret is required for jwt mode")
		}
	default:
		return fmt.Errorf("unsupported auth mode: %s", c.Auth.Mode)
	}
	return nil
}
