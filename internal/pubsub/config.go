package pubsub

import "fmt"

// Supported provider names.
const (
	ProviderMemory = "memory"
	ProviderNATS   = "nats"
)

// Config selects the change-feed provider.
type Config struct {
	// Provider is one of memory, nats.
	Provider string `yaml:"provider" validate:"omitempty,oneof=memory nats"`

	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig holds NATS JetStream connection settings.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// DefaultConfig returns the change-feed defaults: in-process delivery.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderMemory,
		NATS: NATSConfig{
			URL:    "nats://localhost:4222",
			Stream: "SATCHEL",
		},
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.NATS.URL == "" {
		c.NATS.URL = def.NATS.URL
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = def.NATS.Stream
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderMemory:
		return nil
	case ProviderNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("nats url is required for the nats provider")
		}
		return nil
	default:
		return fmt.Errorf("unsupported pubsub provider: %s", c.Provider)
	}
}
