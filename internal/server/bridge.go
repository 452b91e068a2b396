package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

// DefaultChunkSize is the inbound event size used when none is configured.
const DefaultChunkSize = 4096

// Bridge is an http.Handler that hosts a ports.Application. Each request is
// translated into a scope, an inbound channel reading the request body in
// chunks and an outbound channel writing to the ResponseWriter.
type Bridge struct {
	app       ports.Application
	chunkSize int
	logger    *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithChunkSize sets the maximum body bytes per inbound event.
func WithChunkSize(n int) BridgeOption {
	return func(b *Bridge) {
		if n > 0 {
			b.chunkSize = n
		}
	}
}

// WithBridgeLogger sets the logger for transport failures.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a Bridge serving app.
func NewBridge(app ports.Application, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		app:       app,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, info := adapter.WithDispatchInfo(r.Context())

	scope := ScopeFromRequest(r)
	recv := newBodyReceiver(r.Body, b.chunkSize)
	send := &responseSender{w: w}

	err := b.app.Handle(ctx, scope, recv, send)

	annotateDispatch(ctx, info)
	AddError(ctx, err)

	switch send.phase {
	case domain.PhaseComplete:
		return
	case domain.PhaseAwaitingStart:
		if err == nil {
			err = errors.New("application returned without a response")
			AddError(ctx, err)
		}
		b.logger.ErrorContext(ctx, "no response from application",
			slog.String("request_id", scope.RequestID),
			slog.String("path", scope.Path),
			slog.String("error", err.Error()))
		if sendErr := adapter.SendAPIError(ctx, send, domain.ErrServer("Internal server error")); sendErr != nil {
			b.logger.ErrorContext(ctx, "failed to write fallback response", slog.String("error", sendErr.Error()))
		}
	default:
		b.logger.ErrorContext(ctx, "response truncated",
			slog.String("request_id", scope.RequestID),
			slog.String("path", scope.Path))
	}
}

// ScopeFromRequest describes r as an application scope. Header names are
// lower-cased and sorted.
func ScopeFromRequest(r *http.Request) domain.Scope {
	scopeType := domain.ScopeHTTP
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		scopeType = domain.ScopeWebSocket
	}

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := make([]domain.Header, 0, len(names)+1)
	if r.Host != "" {
		headers = append(headers, domain.Header{Name: "host", Value: r.Host})
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, v := range r.Header[name] {
			headers = append(headers, domain.Header{Name: lower, Value: v})
		}
	}

	return domain.Scope{
		Type:      scopeType,
		Method:    r.Method,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		Headers:   headers,
		RequestID: GetRequestID(r.Context()),
	}
}

// bodyReceiver delivers a request body as a sequence of inbound events.
type bodyReceiver struct {
	r         *bufio.Reader
	chunkSize int
	done      bool
}

func newBodyReceiver(body io.Reader, chunkSize int) *bodyReceiver {
	if body == nil {
		body = http.NoBody
	}
	return &bodyReceiver{r: bufio.NewReaderSize(body, chunkSize), chunkSize: chunkSize}
}

func (b *bodyReceiver) Receive(ctx context.Context) (domain.InboundEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.InboundEvent{}, err
	}
	if b.done {
		return domain.InboundEvent{}, domain.ErrChannelClosed
	}

	buf := make([]byte, b.chunkSize)
	n, err := io.ReadFull(b.r, buf)
	switch {
	case err == nil:
		if _, peekErr := b.r.Peek(1); peekErr != nil {
			if !errors.Is(peekErr, io.EOF) {
				return domain.InboundEvent{}, fmt.Errorf("read request body: %w", peekErr)
			}
			b.done = true
		}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		b.done = true
	default:
		return domain.InboundEvent{}, fmt.Errorf("read request body: %w", err)
	}

	return domain.InboundEvent{Body: buf[:n], MoreBody: !b.done}, nil
}

// responseSender writes outbound events to a ResponseWriter in phase order.
type responseSender struct {
	w     http.ResponseWriter
	phase domain.ResponsePhase
}

func (s *responseSender) Send(ctx context.Context, ev domain.OutboundEvent) error {
	next, err := s.phase.Advance(ev)
	if err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	s.phase = next

	switch ev.Type {
	case domain.ResponseStart:
		h := s.w.Header()
		for _, hdr := range ev.Headers {
			h.Add(hdr.Name, hdr.Value)
		}
		status := ev.Status
		if status == 0 {
			status = http.StatusOK
		}
		s.w.WriteHeader(status)
	case domain.ResponseBody:
		if _, err := s.w.Write(ev.Body); err != nil {
			return fmt.Errorf("write response body: %w", err)
		}
	}
	return nil
}
