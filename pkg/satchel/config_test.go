package satchel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelbase/satchel/internal/blob"
	"github.com/satchelbase/satchel/internal/pubsub"
	"github.com/satchelbase/satchel/internal/remote"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SATCHEL_ACTOR", "usr_env")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "usr_env", string(cfg.Actor))
	assert.Equal(t, 15*time.Second, cfg.SyncTimeout)
	assert.Equal(t, blob.BackendPebble, cfg.Storage.Backend)
	assert.Equal(t, pubsub.ProviderMemory, cfg.PubSub.Provider)
	assert.Empty(t, cfg.Remote.BaseURL)
	assert.Equal(t, remote.AuthNone, cfg.Remote.Auth.Mode)
}

func TestLoadConfig_RequiresActor(t *testing.T) {
	t.Setenv("SATCHEL_ACTOR", "")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actor")
}

func TestLoadConfig_LocalFileOverridesBase(t *testing.T) {
	t.Setenv("SATCHEL_ACTOR", "")
	dir := t.TempDir()
	writeConfigFile(t, dir, "satchel.yml", `
actor: usr_base
sync_timeout: 30s
storage:
  backend: memory
`)
	writeConfigFile(t, dir, "satchel.local.yml", `
actor: usr_local
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "usr_local", string(cfg.Actor))
	assert.Equal(t, 30*time.Second, cfg.SyncTimeout)
	assert.Equal(t, blob.BackendMemory, cfg.Storage.Backend)
}

func TestLoadConfig_EnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "satchel.yml", `
actor: usr_base
`)
	t.Setenv("SATCHEL_ACTOR", "usr_env")
	t.Setenv("SATCHEL_DIR", filepath.Join(dir, "state"))
	t.Setenv("SATCHEL_REMOTE_URL", "https://api.example.com")
	t.Setenv("SATCHEL_TOKEN", "tkn_secret")
	t.Setenv("SATCHEL_NATS_URL", "nats://feed.example.com:4222")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "usr_env", string(cfg.Actor))
	assert.Equal(t, filepath.Join(dir, "state"), cfg.Storage.Dir)
	assert.Equal(t, "https://api.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, remote.AuthStatic, cfg.Remote.Auth.Mode)
	assert.Equal(t, "tkn_secret", cfg.Remote.Auth.Token)
	assert.Equal(t, pubsub.ProviderNATS, cfg.PubSub.Provider)
	assert.Equal(t, "nats://feed.example.com:4222", cfg.PubSub.NATS.URL)
}

func TestLoadConfig_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "satchel.yml", "actor: [not: closed")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "satchel.yml")
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.Actor = "usr_self"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing actor",
			mutate:  func(cfg *Config) { cfg.Actor = "" },
			wantErr: "Actor",
		},
		{
			name:    "negative sync timeout",
			mutate:  func(cfg *Config) { cfg.SyncTimeout = -time.Second },
			wantErr: "sync_timeout",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(cfg *Config) { cfg.Storage.Backend = "etcd" },
			wantErr: "oneof",
		},
		{
			name:    "unknown pubsub provider",
			mutate:  func(cfg *Config) { cfg.PubSub.Provider = "kafka" },
			wantErr: "oneof",
		},
		{
			name:    "static auth without token",
			mutate:  func(cfg *Config) { cfg.Remote.Auth.Mode = remote.AuthStatic },
			wantErr: "auth token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
