// Package memory keeps recorded exchanges in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

// DefaultCapacity is the number of exchanges kept when none is configured.
const DefaultCapacity = 1000

// Store is an in-memory implementation of ports.ExchangeStore. Once full it
// evicts the oldest exchange.
type Store struct {
	mu        sync.RWMutex
	exchanges map[string]*domain.Exchange
	order     []string // insertion order, oldest first
	capacity  int
}

var _ ports.StorageProvider = (*Store)(nil)

// New creates a store holding at most capacity exchanges. A non-positive
// capacity selects DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		exchanges: make(map[string]*domain.Exchange),
		capacity:  capacity,
	}
}

func (s *Store) SaveExchange(ctx context.Context, ex *domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exchanges[ex.ID]; exists {
		return fmt.Errorf("exchange %s already exists", ex.ID)
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	stored := *ex
	s.exchanges[ex.ID] = &stored
	s.order = append(s.order, ex.ID)

	for len(s.order) > s.capacity {
		delete(s.exchanges, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *Store) GetExchange(ctx context.Context, id string) (*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex, exists := s.exchanges[id]
	if !exists {
		return nil, fmt.Errorf("exchange %s: %w", id, domain.ErrExchangeNotFound)
	}
	out := *ex
	return &out, nil
}

func (s *Store) ListExchanges(ctx context.Context, opts ports.ExchangeListOptions) ([]*domain.Exchange, error) {
	s.mu.RLock()
	var result []*domain.Exchange
	for _, ex := range s.exchanges {
		if opts.Path != "" && ex.Path != opts.Path {
			continue
		}
		if opts.Status != 0 && ex.Status != opts.Status {
			continue
		}
		out := *ex
		result = append(result, &out)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = ports.DefaultExchangeListLimit
	}
	start := max(opts.Offset, 0)
	if start >= len(result) {
		return []*domain.Exchange{}, nil
	}
	end := min(start+limit, len(result))

	return result[start:end], nil
}

// Len returns the number of exchanges held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}

func (s *Store) Close() error {
	return nil
}
