package logging

import "fmt"

// Config holds logging configuration.
type Config struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Dir      string         `yaml:"dir"`    // log directory path
	Rotation RotationConfig `yaml:"rotation"`
	Console  ConsoleConfig  `yaml:"console"`
	File     FileConfig     `yaml:"file"`
}

// RotationConfig holds log rotation settings.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // number of files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`    // gzip old files
}

// ConsoleConfig holds console output configuration.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override
	Format  string `yaml:"format"` // text or json
}

// FileConfig holds file output configuration.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override
	Format  string `yaml:"format"` // text or json
}

// DefaultConfig returns default logging configuration. The library is
// embedded in a consumer app, so the console handler stays quiet (warn and
// up) and the file handler carries the detail.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		},
		Console: ConsoleConfig{
			Enabled: true,
			Level:   "warn",
			Format:  "text",
		},
		File: FileConfig{
			Enabled: true,
			Level:   "info",
			Format:  "json",
		},
	}
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Dir == "" {
		c.Dir = d.Dir
	}
	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = d.Rotation.MaxSize
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = d.Rotation.MaxBackups
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = d.Rotation.MaxAge
	}
	if c.Console.Level == "" && c.Console.Format == "" && !c.Console.Enabled {
		c.Console = d.Console
	}
	if c.Console.Level == "" {
		c.Console.Level = c.Level
	}
	if c.Console.Format == "" {
		c.Console.Format = c.Format
	}
	if c.File.Level == "" && c.File.Format == "" && !c.File.Enabled {
		c.File = d.File
	}
	if c.File.Level == "" {
		c.File.Level = c.Level
	}
	if c.File.Format == "" {
		c.File.Format = c.Format
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}

	if c.Dir == "" {
		return fmt.Errorf("log directory cannot be empty")
	}

	if c.Console.Enabled {
		if c.Console.Level != "" && !validLevels[c.Console.Level] {
			return fmt.Errorf("invalid console log level: %s", c.Console.Level)
		}
		if c.Console.Format != "" && !validFormats[c.Console.Format] {
			return fmt.Errorf("invalid console log format: %s", c.Console.Format)
		}
	}

	if c.File.Enabled {
		if c.File.Level != "" && !validLevels[c.File.Level] {
			return fmt.Errorf("invalid file log level: %s", c.File.Level)
		}
		if c.File.Format != "" && !validFormats[c.File.Format] {
			return fmt.Errorf("invalid file log format: %s", c.File.Format)
		}
	}

	return nil
}
