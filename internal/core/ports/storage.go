package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
)

// ExchangeStore persists recorded exchanges.
type ExchangeStore interface {
	// SaveExchange stores a completed or aborted exchange
	SaveExchange(ctx context.Context, ex *domain.Exchange) error

	// GetExchange retrieves an exchange by ID
	GetExchange(ctx context.Context, id string) (*domain.Exchange, error)

	// ListExchanges lists exchanges newest first with optional filtering
	ListExchanges(ctx context.Context, opts ExchangeListOptions) ([]*domain.Exchange, error)

	// Close closes the storage connection
	Close() error
}

// DefaultExchangeListLimit applies when ExchangeListOptions.Limit is not
// positive.
const DefaultExchangeListLimit = 100

// ExchangeListOptions defines options for listing exchanges
type ExchangeListOptions struct {
	Path   string // Filter by exact path
	Status int    // Filter by status
	Limit  int
	Offset int
}

// Pinger is implemented by stores backed by a remote or file database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageProvider manages all storage operations.
// Implementations: in-memory (default), SQLite, PostgreSQL.
type StorageProvider interface {
	ExchangeStore
}
