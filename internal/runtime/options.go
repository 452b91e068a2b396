package runtime

import (
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapters/config/file"
	"github.com/tjfontaine/polyglot-event-gateway/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage/memory"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage/sqldb"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		provider, err := file.NewProvider(path, file.WithLogger(g.logger))
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.config = provider
		return nil
	}
}

// WithSQLite uses SQLite storage, overriding storage settings from config.
func WithSQLite(path string) Option {
	return func(g *Gateway) error {
		store, err := sqlite.NewProvider(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		g.storage = store
		g.storageSet = true
		return nil
	}
}

// WithPostgres uses PostgreSQL storage.
// Recommended for deployments running more than one gateway.
func WithPostgres(dsn string) Option {
	return func(g *Gateway) error {
		store, err := sqldb.New(sqldb.Config{Driver: "postgres", DSN: dsn})
		if err != nil {
			return fmt.Errorf("create postgres storage: %w", err)
		}
		g.storage = store
		g.storageSet = true
		return nil
	}
}

// WithMemoryStorage keeps up to capacity exchanges in process memory.
func WithMemoryStorage(capacity int) Option {
	return func(g *Gateway) error {
		g.storage = memory.New(capacity)
		g.storageSet = true
		return nil
	}
}

// WithoutStorage disables exchange recording regardless of config.
func WithoutStorage() Option {
	return func(g *Gateway) error {
		g.storage = nil
		g.storageSet = true
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before options that create
// components, so they share it.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(g *Gateway) error {
		g.config = provider
		return nil
	}
}

// WithStorageProvider sets a custom storage provider.
func WithStorageProvider(provider ports.StorageProvider) Option {
	return func(g *Gateway) error {
		g.storage = provider
		g.storageSet = true
		return nil
	}
}

// WithTracerProvider sets the provider dispatch spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) error {
		g.tracerProvider = tp
		return nil
	}
}

// WithListener serves on ln instead of listening on the configured port.
func WithListener(ln net.Listener) Option {
	return func(g *Gateway) error {
		g.listener = ln
		return nil
	}
}
