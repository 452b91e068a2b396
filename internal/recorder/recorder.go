// Package recorder captures every exchange that passes through an
// application and persists it to an ExchangeStore.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

const (
	// DefaultMaxBody caps the bytes of each body kept per exchange.
	DefaultMaxBody = 64 << 10

	defaultSaveTimeout = 5 * time.Second
)

// Recorder wraps applications so their exchanges are stored. Recording
// failures are logged and never affect the response.
type Recorder struct {
	store       ports.ExchangeStore
	logger      *slog.Logger
	maxBody     int
	saveTimeout time.Duration
	now         func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger for recording failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMaxBody sets how many bytes of each body are kept.
func WithMaxBody(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

// WithSaveTimeout bounds each store write.
func WithSaveTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		r.saveTimeout = d
	}
}

// New creates a recorder writing to store.
func New(store ports.ExchangeStore, opts ...Option) *Recorder {
	r := &Recorder{
		store:       store,
		logger:      slog.Default(),
		maxBody:     DefaultMaxBody,
		saveTimeout: defaultSaveTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Middleware returns an adapter.Middleware recording each exchange once the
// wrapped application returns.
func (r *Recorder) Middleware() adapter.Middleware {
	return func(next ports.Application) ports.Application {
		return adapter.ApplicationFunc(func(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error {
			ctx, info := adapter.WithDispatchInfo(ctx)
			start := r.now()

			ex := &domain.Exchange{
				ID:        "ex_" + uuid.New().String(),
				RequestID: scope.RequestID,
				ScopeType: scope.Type,
				Method:    scope.Method,
				Path:      scope.Path,
				Query:     scope.RawQuery,
				CreatedAt: start.UTC(),
			}
			reqBody := &capture{limit: r.maxBody}
			respBody := &capture{limit: r.maxBody}

			tapRecv := ports.ReceiveFunc(func(ctx context.Context) (domain.InboundEvent, error) {
				ev, err := recv.Receive(ctx)
				if err == nil {
					reqBody.write(ev.Body)
				}
				return ev, err
			})
			tapSend := ports.SendFunc(func(ctx context.Context, ev domain.OutboundEvent) error {
				if err := send.Send(ctx, ev); err != nil {
					return err
				}
				switch ev.Type {
				case domain.ResponseStart:
					ex.Status = ev.Status
				case domain.ResponseBody:
					respBody.write(ev.Body)
				}
				return nil
			})

			err := next.Handle(ctx, scope, tapRecv, tapSend)

			ex.Route = info.Route
			ex.RequestBody = reqBody.String()
			ex.ResponseBody = respBody.String()
			ex.Duration = r.now().Sub(start)
			if err != nil {
				ex.Error = err.Error()
			}
			r.save(ctx, ex)

			return err
		})
	}
}

func (r *Recorder) save(ctx context.Context, ex *domain.Exchange) {
	// The request context may already be cancelled; persistence outlives it.
	saveCtx := context.WithoutCancel(ctx)
	if r.saveTimeout > 0 {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(saveCtx, r.saveTimeout)
		defer cancel()
	}

	if err := r.store.SaveExchange(saveCtx, ex); err != nil {
		r.logger.ErrorContext(ctx, "failed to record exchange",
			slog.String("exchange_id", ex.ID),
			slog.String("request_id", ex.RequestID),
			slog.String("error", err.Error()))
		return
	}
	r.logger.DebugContext(ctx, "exchange recorded",
		slog.String("exchange_id", ex.ID),
		slog.Int("status", ex.Status))
}

// capture keeps the first limit bytes written to it.
type capture struct {
	buf   []byte
	limit int
}

func (c *capture) write(p []byte) {
	room := c.limit - len(c.buf)
	if room <= 0 {
		return
	}
	if len(p) > room {
		p = p[:room]
	}
	c.buf = append(c.buf, p...)
}

func (c *capture) String() string {
	return string(c.buf)
}
