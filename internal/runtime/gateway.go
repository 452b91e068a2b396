// Package runtime provides the Gateway struct and lifecycle management for
// the event gateway: it loads configuration, opens storage, builds the
// application and hosts it over HTTP with hot reload.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/api/controlplane"
	"github.com/tjfontaine/polyglot-event-gateway/internal/channel"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-event-gateway/internal/pkg/config"
	"github.com/tjfontaine/polyglot-event-gateway/internal/recorder"
	"github.com/tjfontaine/polyglot-event-gateway/internal/routes/mathroutes"
	"github.com/tjfontaine/polyglot-event-gateway/internal/server"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage"
)

// Gateway is the main entry point for running the event gateway.
// It manages configuration, storage, the hosted application and the HTTP
// server lifecycle. Gateway can be embedded in larger applications or run
// standalone.
type Gateway struct {
	// Dependencies (injected via options)
	config         ports.ConfigProvider
	storage        ports.StorageProvider
	storageSet     bool
	tracerProvider trace.TracerProvider
	listener       net.Listener

	// Internal state
	app     atomic.Pointer[adapter.App]
	cfg     *config.Config
	metrics *metrics.Collector
	server  *server.Server
	hosted  ports.Application
	chunk   int
	errs    chan error
	logger  *slog.Logger

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	started bool
}

// New creates a new Gateway with the given options.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
		errs:   make(chan error, 1),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfigProvider)")
	}

	return gw, nil
}

// Start loads configuration, opens storage when none was injected, builds
// the HTTP stack and begins serving in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fmt.Errorf("gateway already started")
	}

	g.ctx, g.cancel = context.WithCancel(ctx)

	cfg, err := g.config.Load(g.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	g.cfg = cfg

	if !g.storageSet {
		store, err := storage.New(cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		g.storage = store
	}

	app, err := g.buildApp(cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	g.app.Store(app)

	g.buildServer(cfg)

	go g.serve()
	go g.watchConfig()

	g.started = true
	g.logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", storageName(cfg, g.storage)),
		slog.Int("routes", len(app.Router().Routes())))

	return nil
}

// Handler returns the root HTTP handler. It is nil before Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.server == nil {
		return nil
	}
	return g.server.Router
}

// Dispatch runs one request through the hosted application in process,
// bypassing HTTP. The body is delivered in server.chunk_size events and the
// exchange is recorded and measured like a bridged request. A missing request
// ID is generated.
func (g *Gateway) Dispatch(ctx context.Context, scope domain.Scope, body []byte) (*channel.Response, error) {
	g.mu.RLock()
	app, chunk := g.hosted, g.chunk
	g.mu.RUnlock()

	if app == nil {
		return nil, errors.New("gateway not started")
	}
	if scope.Type == "" {
		scope.Type = domain.ScopeHTTP
	}
	if scope.RequestID == "" {
		scope.RequestID = uuid.NewString()
	}
	return channel.Serve(ctx, app, scope, body, chunk)
}

// Storage returns the exchange store, or nil when recording is disabled.
func (g *Gateway) Storage() ports.StorageProvider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.storage
}

// Errors delivers a fatal serve error, if one occurs.
func (g *Gateway) Errors() <-chan error {
	return g.errs
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}

	// Stop HTTP server
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	// Close resources
	if g.storage != nil {
		if err := g.storage.Close(); err != nil {
			g.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}

	if g.config != nil {
		if err := g.config.Close(); err != nil {
			g.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

// buildApp creates the dispatch core for cfg.
func (g *Gateway) buildApp(cfg *config.Config) (*adapter.App, error) {
	policy, err := adapter.MethodPolicyFromStatus(cfg.Adapter.UnsupportedMethodStatus)
	if err != nil {
		return nil, err
	}

	opts := []adapter.Option{
		adapter.WithMethodPolicy(policy),
		adapter.WithLogger(g.logger),
	}
	if g.tracerProvider != nil {
		opts = append(opts, adapter.WithTracerProvider(g.tracerProvider))
	}

	router := mathroutes.NewRouter(mathroutes.Options{MaxN: cfg.Routes.MaxN})
	return adapter.NewApp(router, opts...), nil
}

// buildServer assembles the HTTP stack: admin API, metrics endpoint and the
// bridge hosting the current app on every other path.
func (g *Gateway) buildServer(cfg *config.Config) {
	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Tracing.ServiceName,
	}, g.logger)

	var mws []adapter.Middleware
	if cfg.Metrics.Enabled {
		g.metrics = metrics.New(metrics.WithRuntimeCollectors())
		mws = append(mws, g.metrics.Middleware())
		srv.Router.Handle(cfg.Metrics.Path, g.metrics.Handler())
		g.logger.Info("registered metrics endpoint", slog.String("path", cfg.Metrics.Path))
	}
	if g.storage != nil {
		mws = append(mws, recorder.New(g.storage, recorder.WithLogger(g.logger)).Middleware())
	}

	if cfg.Admin.Enabled {
		cp := controlplane.NewServer(g.storage, g.currentRouter, g.logger)
		srv.Router.Mount(cfg.Admin.Path, cp)
		g.logger.Info("registered control plane", slog.String("path", cfg.Admin.Path))
	}

	g.chunk = cfg.Server.ChunkSize
	g.hosted = adapter.Chain(adapter.ApplicationFunc(g.handle), mws...)
	bridge := server.NewBridge(
		g.hosted,
		server.WithChunkSize(cfg.Server.ChunkSize),
		server.WithBridgeLogger(g.logger),
	)
	srv.Router.Handle("/", bridge)
	srv.Router.Handle("/*", bridge)

	g.server = srv
}

// handle dispatches to whichever app is current when the request arrives.
func (g *Gateway) handle(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error {
	return g.app.Load().Handle(ctx, scope, recv, send)
}

func (g *Gateway) currentRouter() *adapter.Router {
	if app := g.app.Load(); app != nil {
		return app.Router()
	}
	return nil
}

func (g *Gateway) serve() {
	var err error
	if g.listener != nil {
		err = g.server.Serve(g.listener)
	} else {
		err = g.server.Start()
	}
	if err != nil {
		g.logger.Error("server error", slog.String("error", err.Error()))
		select {
		case g.errs <- err:
		default:
		}
	}
}

// watchConfig watches for config changes and reloads.
func (g *Gateway) watchConfig() {
	onChange := func(newCfg *config.Config) {
		g.logger.Info("config changed, reloading")
		if err := g.reload(newCfg); err != nil {
			g.logger.Error("failed to reload", slog.String("error", err.Error()))
		}
	}

	if err := g.config.Watch(g.ctx, onChange); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload swaps in an app built from cfg. In-flight requests finish on the
// app they started with. Settings bound at Start are reported, not applied.
func (g *Gateway) reload(cfg *config.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	app, err := g.buildApp(cfg)
	if err != nil {
		return fmt.Errorf("rebuild app: %w", err)
	}
	g.app.Store(app)

	if prev := g.cfg; prev != nil {
		if prev.Server != cfg.Server {
			g.logger.Warn("server settings change requires restart")
		}
		if prev.Storage != cfg.Storage {
			g.logger.Warn("storage settings change requires restart")
		}
		if prev.Admin != cfg.Admin || prev.Metrics != cfg.Metrics {
			g.logger.Warn("admin or metrics settings change requires restart")
		}
	}
	g.cfg = cfg

	g.logger.Info("reload complete",
		slog.Int("max_n", cfg.Routes.MaxN),
		slog.Int("unsupported_method_status", app.MethodPolicy().Status()))

	return nil
}

func storageName(cfg *config.Config, store ports.StorageProvider) string {
	if store == nil {
		return "none"
	}
	return cfg.Storage.Type
}
