// Package satchel assembles the local-first state container: the cart,
// wishlist and social stores behind one client, wired to persistence,
// the change feed and the optional remote service.
package satchel

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/logging"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/remote"
	"github.com/satchelbase/satchel/pkg/model"
)

// validate enforces the struct tags on Config and its sub-configs.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config holds the full client configuration.
type Config struct {
	// Actor identifies the device user in remote calls and social state.
	Actor model.Key `yaml:"actor" validate:"required"`

	// SyncTimeout bounds each background reconciliation attempt.
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	Storage blob.Config    `yaml:"storage"`
	PubSub  pubsub.Config  `yaml:"pubsub"`
	Remote  remote.Config  `yaml:"remote"`
	Logging logging.Config `yaml:"logging"`

	// Logger overrides the logger built from the Logging section. For
	// embedding processes that already own a logging stack.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the client defaults: pebble persistence under
// .satchel, in-process change feed, no remote service.
func DefaultConfig() Config {
	return Config{
		SyncTimeout: 15 * time.Second,
		Storage:     blob.DefaultConfig(),
		PubSub:      pubsub.DefaultConfig(),
		Remote:      remote.DefaultConfig(),
		Logging:     logging.DefaultConfig(),
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.SyncTimeout == 0 {
		c.SyncTimeout = 15 * time.Second
	}
	c.Storage.ApplyDefaults()
	c.PubSub.ApplyDefaults()
	c.Remote.ApplyDefaults()
	c.Logging.ApplyDefaults()
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SATCHEL_ACTOR"); v != "" {
		c.Actor = model.Key(v)
	}
	if v := os.Getenv("SATCHEL_DIR"); v != "" {
		c.Storage.Dir = v
		if c.Logging.Dir == "" || c.Logging.Dir == "logs" {
			c.Logging.Dir = v + "/logs"
		}
	}
	if v := os.Getenv("SATCHEL_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("SATCHEL_PUSH_URL"); v != "" {
		c.Remote.PushURL = v
	}
	if v := os.Getenv("SATCHEL_TOKEN"); v != "" {
		c.Remote.Auth.Mode = remote.AuthStatic
		c.Remote.Auth.Token = v
	}
	if v := os.Getenv("SATCHEL_NATS_URL"); v != "" {
		c.PubSub.Provider = pubsub.ProviderNATS
		c.PubSub.NATS.URL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.SyncTimeout < 0 {
		return fmt.Errorf("sync_timeout must not be negative")
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.PubSub.Validate(); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from files and environment variables.
// Order: defaults -> satchel.yml -> satchel.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> Validate.
func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFile(dir+"/satchel.yml", &cfg); err != nil {
		return nil, err
	}
	if err := loadFile(dir+"/satchel.local.yml", &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}
