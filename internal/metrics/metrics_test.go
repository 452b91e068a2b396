package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/routes/mathroutes"
	chtest "github.com/tjfontaine/polyglot-event-gateway/internal/testutil"
)

func instrumented(c *Collector) ports.Application {
	return adapter.Chain(adapter.NewApp(mathroutes.NewRouter(mathroutes.Options{})), c.Middleware())
}

func TestCollector_CountsByRouteAndStatus(t *testing.T) {
	c := New()
	app := instrumented(c)

	requests := []domain.Scope{
		{Type: domain.ScopeHTTP, Method: "GET", Path: "/factorial", RawQuery: "n=5"},
		{Type: domain.ScopeHTTP, Method: "GET", Path: "/factorial", RawQuery: "n=-1"},
		{Type: domain.ScopeHTTP, Method: "GET", Path: "/factorial", RawQuery: "n=5"},
		{Type: domain.ScopeHTTP, Method: "GET", Path: "/nowhere"},
		{Type: domain.ScopeLifespan},
	}
	for _, scope := range requests {
		if err := app.Handle(context.Background(), scope, chtest.Chunks(), &chtest.RecordingSender{}); err != nil {
			t.Fatalf("Handle(%s) error = %v", scope.Path, err)
		}
	}

	tests := []struct {
		labels []string
		want   float64
	}{
		{[]string{"http", "GET", "/factorial*", "200"}, 2},
		{[]string{"http", "GET", "/factorial*", "400"}, 1},
		{[]string{"http", "GET", UnmatchedRoute, "404"}, 1},
		{[]string{"lifespan", "", UnmatchedRoute, "404"}, 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(c.requests.WithLabelValues(tt.labels...))
		if got != tt.want {
			t.Errorf("requests_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
	if got := testutil.ToFloat64(c.inFlight); got != 0 {
		t.Errorf("inflight = %v after all requests, want 0", got)
	}
}

func TestCollector_CountsAborted(t *testing.T) {
	c := New()
	app := instrumented(c)

	sendErr := errors.New("broken pipe")
	scope := domain.Scope{Type: domain.ScopeHTTP, Method: "GET", Path: "/fibonacci/10"}
	err := app.Handle(context.Background(), scope, chtest.Chunks(), &chtest.RecordingSender{FailAfter: 1, Err: sendErr})
	if !errors.Is(err, sendErr) {
		t.Fatalf("Handle() error = %v, want %v", err, sendErr)
	}

	if got := testutil.ToFloat64(c.aborted.WithLabelValues("/fibonacci/{n}")); got != 1 {
		t.Errorf("aborted_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.requests); n != 0 {
		t.Errorf("requests_total series = %d, want 0", n)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New(WithRuntimeCollectors())
	app := instrumented(c)

	scope := domain.Scope{Type: domain.ScopeHTTP, Method: "GET", Path: "/mean"}
	if err := app.Handle(context.Background(), scope, chtest.Chunks("[1,2]"), &chtest.RecordingSender{}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{
		`event_gateway_dispatch_requests_total{method="GET",route="/mean",scope="http",status="200"} 1`,
		"event_gateway_dispatch_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	if a.Registry() == b.Registry() {
		t.Fatal("collectors share a registry")
	}
}
