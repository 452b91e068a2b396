// Package metrics exposes Prometheus collectors for dispatched requests.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

const (
	namespace = "event_gateway"

	// UnmatchedRoute labels requests answered by a fallback.
	UnmatchedRoute = "unmatched"
)

// Collector owns a private registry so several gateways can coexist in one
// process.
type Collector struct {
	registry *prometheus.Registry

	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	aborted  *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*collectorConfig)

type collectorConfig struct {
	runtime bool
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(c *collectorConfig) {
		c.runtime = true
	}
}

// New creates a Collector with its metrics registered.
func New(opts ...Option) *Collector {
	var cfg collectorConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "inflight_requests",
			Help:      "Current number of requests being dispatched.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of requests dispatched.",
		}, []string{"scope", "method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Duration of request dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"route"}),
		aborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "aborted_total",
			Help:      "Requests whose channel pair failed before a full response was sent.",
		}, []string{"route"}),
	}

	c.registry.MustRegister(c.inFlight, c.requests, c.duration, c.aborted)
	if cfg.runtime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware returns an adapter.Middleware observing every dispatch.
func (c *Collector) Middleware() adapter.Middleware {
	return func(next ports.Application) ports.Application {
		return adapter.ApplicationFunc(func(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error {
			ctx, info := adapter.WithDispatchInfo(ctx)

			c.inFlight.Inc()
			defer c.inFlight.Dec()

			start := time.Now()
			err := next.Handle(ctx, scope, recv, send)

			route := info.Route
			if route == "" {
				route = UnmatchedRoute
			}
			c.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			if err != nil {
				c.aborted.WithLabelValues(route).Inc()
				return err
			}

			c.requests.WithLabelValues(
				string(scope.Type),
				strings.ToUpper(scope.Method),
				route,
				strconv.Itoa(info.Status),
			).Inc()
			return nil
		})
	}
}
