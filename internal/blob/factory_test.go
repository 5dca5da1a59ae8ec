package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "memory",
			cfg:  Config{Backend: BackendMemory},
		},
		{
			name: "pebble",
			cfg:  Config{Backend: BackendPebble, Dir: t.TempDir()},
		},
		{
			name: "sqlite",
			cfg:  Config{Backend: BackendSQLite, Dir: t.TempDir()},
		},
		{
			name:    "unsupported",
			cfg:     Config{Backend: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			ctx := context.Background()
			require.NoError(t, store.Write(ctx, "probe", []byte("ok")))
			got, err := store.Read(ctx, "probe")
			require.NoError(t, err)
			assert.Equal(t, []byte("ok"), got)
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, BackendPebble, cfg.Backend)
	assert.Equal(t, ".satchel", cfg.Dir)

	// Explicit values survive.
	cfg = Config{Backend: BackendMemory, Dir: "/tmp/x"}
	cfg.ApplyDefaults()
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "/tmp/x", cfg.Dir)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "memory needs no dir",
			cfg:  Config{Backend: BackendMemory},
		},
		{
			name: "pebble with dir",
			cfg:  Config{Backend: BackendPebble, Dir: ".satchel"},
		},
		{
			name:    "pebble without dir",
			cfg:     Config{Backend: BackendPebble},
			wantErr: true,
		},
		{
			name:    "sqlite without dir",
			cfg:     Config{Backend: BackendSQLite},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "redis", Dir: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
