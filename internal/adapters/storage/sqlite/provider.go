// Package sqlite provides the SQLite storage provider for the gateway.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage/sqldb"
)

// Provider implements ports.StorageProvider on a SQLite file.
type Provider struct {
	*sqldb.Store
}

// NewProvider opens the database at path, creating its directory when path
// is a plain file name.
func NewProvider(path string) (*Provider, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	store, err := sqldb.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	return &Provider{Store: store}, nil
}

var _ ports.StorageProvider = (*Provider)(nil)
