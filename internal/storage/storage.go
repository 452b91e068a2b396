// Package storage selects the exchange store named by configuration.
package storage

import (
	"fmt"

	sqliteadapter "github.com/tjfontaine/polyglot-event-gateway/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/pkg/config"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage/memory"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage/sqldb"
)

// New opens the store for cfg. It returns nil, nil for type "none".
func New(cfg config.StorageConfig) (ports.StorageProvider, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(cfg.Memory.Capacity), nil
	case "sqlite":
		store, err := sqliteadapter.NewProvider(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case "database":
		store, err := sqldb.New(sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
		}
		return store, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
