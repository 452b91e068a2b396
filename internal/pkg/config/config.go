package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Levels are separated by a double underscore: EVGW_SERVER__PORT.
const EnvPrefix = "EVGW_"

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server   ServerConfig  `koanf:"server"`
	Adapter  AdapterConfig `koanf:"adapter"`
	Routes   RoutesConfig  `koanf:"routes"`
	Storage  StorageConfig `koanf:"storage"`
	Admin    AdminConfig   `koanf:"admin"`
	Metrics  MetricsConfig `koanf:"metrics"`
	Tracing  TracingConfig `koanf:"tracing"`
	LogLevel string        `koanf:"log_level"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ChunkSize      int           `koanf:"chunk_size"` // bytes per inbound event produced by the HTTP bridge
}

type AdapterConfig struct {
	// UnsupportedMethodStatus is the status sent when no route serves the
	// request method: 404 or 405.
	UnsupportedMethodStatus int `koanf:"unsupported_method_status"`
}

type RoutesConfig struct {
	// MaxN bounds n for factorial and fibonacci. Zero means unbounded.
	MaxN int `koanf:"max_n"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // memory, sqlite, database, none
	Memory   MemoryConfig   `koanf:"memory"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Database DatabaseConfig `koanf:"database"`
}

type MemoryConfig struct {
	// Capacity is the number of exchanges kept before the oldest is evicted.
	Capacity int `koanf:"capacity"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// DatabaseConfig is the generic database configuration.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":                       8080,
	"server.request_timeout":            "30s",
	"server.chunk_size":                 4096,
	"adapter.unsupported_method_status": http.StatusNotFound,
	"routes.max_n":                      0,
	"storage.type":                      "memory",
	"storage.memory.capacity":           1000,
	"storage.sqlite.path":               "./data/gateway.db",
	"admin.enabled":                     true,
	"admin.path":                        "/admin",
	"metrics.enabled":                   true,
	"metrics.path":                      "/metrics",
	"tracing.enabled":                   false,
	"tracing.service_name":              "polyglot-event-gateway",
	"log_level":                         "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath (if present) and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the YAML file at path, if it exists, then applies
// environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)
	cfg.Storage.SQLite.Path = substituteEnvVars(cfg.Storage.SQLite.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Adapter.UnsupportedMethodStatus {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
	default:
		return fmt.Errorf("adapter.unsupported_method_status must be 404 or 405, got %d", c.Adapter.UnsupportedMethodStatus)
	}
	if c.Server.ChunkSize <= 0 {
		return fmt.Errorf("server.chunk_size must be positive, got %d", c.Server.ChunkSize)
	}
	if c.Routes.MaxN < 0 {
		return fmt.Errorf("routes.max_n must not be negative, got %d", c.Routes.MaxN)
	}
	switch c.Storage.Type {
	case "memory", "sqlite", "none":
	case "database":
		if c.Storage.Database.Driver == "" || c.Storage.Database.DSN == "" {
			return fmt.Errorf("storage.database.driver and storage.database.dsn are required for storage type database")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
