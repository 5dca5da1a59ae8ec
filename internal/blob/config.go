package blob

import "fmt"

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// Config selects and locates the blob backend.
type Config struct {
	// Backend is one of memory, pebble, sqlite.
	Backend string `yaml:"backend" validate:"omitempty,oneof=memory pebble sqlite"`

	// Dir is the base directory for file-backed backends. Pebble opens
	// Dir/blobs, sqlite opens Dir/satchel.db. Ignored by memory.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the blob store defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendPebble,
		Dir:     ".satchel",
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendPebble
	}
	if c.Dir == "" {
		c.Dir = ".satchel"
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPebble, BackendSQLite:
		if c.Dir == "" {
			return fmt.Errorf("blob dir is required for %s backend", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unsupported blob backend: %s", c.Backend)
	}
}
