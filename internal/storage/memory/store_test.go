package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

func exchangeAt(id, path string, status int, createdAt time.Time) *domain.Exchange {
	return &domain.Exchange{
		ID:        id,
		ScopeType: domain.ScopeHTTP,
		Method:    "GET",
		Path:      path,
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	ex := exchangeAt("ex-1", "/mean", 200, time.Time{})
	ex.ResponseBody = `{"result":2}`
	if err := store.SaveExchange(ctx, ex); err != nil {
		t.Fatalf("SaveExchange() error = %v", err)
	}
	if ex.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	got, err := store.GetExchange(ctx, "ex-1")
	if err != nil {
		t.Fatalf("GetExchange() error = %v", err)
	}
	if got.ResponseBody != `{"result":2}` {
		t.Errorf("ResponseBody = %q", got.ResponseBody)
	}

	// Returned values are copies.
	got.Path = "/changed"
	again, _ := store.GetExchange(ctx, "ex-1")
	if again.Path != "/mean" {
		t.Errorf("stored exchange was mutated: %q", again.Path)
	}
}

func TestMemoryStore_Duplicate(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	if err := store.SaveExchange(ctx, exchangeAt("dup", "/", 200, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveExchange(ctx, exchangeAt("dup", "/", 200, time.Now())); err == nil {
		t.Error("Expected error for duplicate id")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	_, err := New(0).GetExchange(context.Background(), "missing")
	if !errors.Is(err, domain.ErrExchangeNotFound) {
		t.Errorf("GetExchange() error = %v, want ErrExchangeNotFound", err)
	}
}

func TestMemoryStore_Eviction(t *testing.T) {
	store := New(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.SaveExchange(ctx, exchangeAt(fmt.Sprintf("ex-%d", i), "/", 200, time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3", store.Len())
	}
	for _, id := range []string{"ex-0", "ex-1"} {
		if _, err := store.GetExchange(ctx, id); !errors.Is(err, domain.ErrExchangeNotFound) {
			t.Errorf("%s should have been evicted, err = %v", id, err)
		}
	}
	if _, err := store.GetExchange(ctx, "ex-4"); err != nil {
		t.Errorf("newest exchange missing: %v", err)
	}
}

func TestMemoryStore_ListExchanges(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fixtures := []struct {
		id     string
		path   string
		status int
	}{
		{"a", "/factorial", 200},
		{"b", "/factorial", 400},
		{"c", "/mean", 200},
		{"d", "/mean", 422},
		{"e", "/factorial", 200},
	}
	for i, f := range fixtures {
		if err := store.SaveExchange(ctx, exchangeAt(f.id, f.path, f.status, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		opts ports.ExchangeListOptions
		want []string
	}{
		{name: "all newest first", want: []string{"e", "d", "c", "b", "a"}},
		{name: "by path", opts: ports.ExchangeListOptions{Path: "/mean"}, want: []string{"d", "c"}},
		{name: "by status", opts: ports.ExchangeListOptions{Status: 200}, want: []string{"e", "c", "a"}},
		{name: "limit", opts: ports.ExchangeListOptions{Limit: 2}, want: []string{"e", "d"}},
		{name: "offset", opts: ports.ExchangeListOptions{Limit: 2, Offset: 3}, want: []string{"b", "a"}},
		{name: "offset past end", opts: ports.ExchangeListOptions{Offset: 9}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListExchanges(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListExchanges() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d exchanges, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.SaveExchange(ctx, exchangeAt(fmt.Sprintf("c-%d", i), "/", 200, time.Now()))
			store.ListExchanges(ctx, ports.ExchangeListOptions{})
		}(i)
	}
	wg.Wait()

	if store.Len() != 50 {
		t.Errorf("Len() = %d, want 50", store.Len())
	}
}
