// Package dialect describes the SQL differences between the supported
// exchange-log databases.
package dialect

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect represents a SQL database dialect.
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres").
	Name() string

	// DriverName returns the database/sql driver name to open.
	DriverName() string

	// Rebind converts ? placeholders to the dialect's bind style.
	Rebind(query string) string

	// TimestampType returns the column type for timestamps.
	TimestampType() string

	// BigIntType returns the column type for 64-bit integers.
	BigIntType() string

	// PragmaStatements returns statements run once after opening.
	PragmaStatements() []string
}

// DialectType represents supported database types.
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
)

// New creates a Dialect for the given type.
func New(dialectType DialectType) (Dialect, error) {
	switch dialectType {
	case SQLite:
		return sqliteDialect{}, nil
	case Postgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialectType)
	}
}

// FromDriverName returns the dialect for a configured driver name.
func FromDriverName(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return New(SQLite)
	case "postgres", "postgresql", "pq":
		return New(Postgres)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) DriverName() string         { return "sqlite" }
func (sqliteDialect) Rebind(query string) string { return sqlx.Rebind(sqlx.QUESTION, query) }
func (sqliteDialect) TimestampType() string      { return "TIMESTAMP" }
func (sqliteDialect) BigIntType() string         { return "INTEGER" }

func (sqliteDialect) PragmaStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string               { return "postgres" }
func (postgresDialect) DriverName() string         { return "postgres" }
func (postgresDialect) Rebind(query string) string { return sqlx.Rebind(sqlx.DOLLAR, query) }
func (postgresDialect) TimestampType() string      { return "TIMESTAMP WITH TIME ZONE" }
func (postgresDialect) BigIntType() string         { return "BIGINT" }
func (postgresDialect) PragmaStatements() []string { return nil }
