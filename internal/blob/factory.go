package blob

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/satchelbase/satchel/internal/blob/memory"
	pebblestore "github.com/satchelbase/satchel/internal/blob/pebble"
	sqlitestore "github.com/satchelbase/satchel/internal/blob/sqlite"
)

// Open creates the blob store selected by cfg.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendPebble:
		return pebblestore.Open(filepath.Join(cfg.Dir, "blobs"), logger)
	case BackendSQLite:
		return sqlitestore.Open(filepath.Join(cfg.Dir, "satchel.db"))
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.Backend)
	}
}
