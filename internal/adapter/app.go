// Package adapter terminates the event gateway interface: it classifies a
// request scope, routes it, assembles JSON bodies from inbound events and
// frames every outcome as a response-start event followed by a
// response-body event.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

const tracerName = "github.com/tjfontaine/polyglot-event-gateway/internal/adapter"

// MethodPolicy selects the response for a method no route serves.
type MethodPolicy int

const (
	// MethodPolicyNotFound answers 404.
	MethodPolicyNotFound MethodPolicy = iota
	// MethodPolicyNotAllowed answers 405.
	MethodPolicyNotAllowed
)

// MethodPolicyFromStatus maps a configured status code to a policy.
func MethodPolicyFromStatus(status int) (MethodPolicy, error) {
	switch status {
	case http.StatusNotFound:
		return MethodPolicyNotFound, nil
	case http.StatusMethodNotAllowed:
		return MethodPolicyNotAllowed, nil
	default:
		return 0, fmt.Errorf("unsupported method status %d (want 404 or 405)", status)
	}
}

// Status returns the HTTP status the policy answers with.
func (p MethodPolicy) Status() int {
	if p == MethodPolicyNotAllowed {
		return http.StatusMethodNotAllowed
	}
	return http.StatusNotFound
}

// App is the dispatch core. It holds only immutable configuration; all
// per-request state travels through Handle's arguments, so one App serves
// any number of concurrent requests.
type App struct {
	router       *Router
	methodPolicy MethodPolicy
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option is a functional option for configuring an App.
type Option func(*App)

// WithMethodPolicy sets the response for unsupported methods.
func WithMethodPolicy(p MethodPolicy) Option {
	return func(a *App) {
		a.methodPolicy = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithTracerProvider sets the provider dispatch spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) {
		a.tracer = tp.Tracer(tracerName)
	}
}

// NewApp creates an App serving router.
func NewApp(router *Router, opts ...Option) *App {
	a := &App{
		router: router,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}
	return a
}

// Router returns the registration table the App dispatches over.
func (a *App) Router() *Router {
	return a.router
}

// MethodPolicy returns the configured unsupported-method policy.
func (a *App) MethodPolicy() MethodPolicy {
	return a.methodPolicy
}

// Handle processes one request. Every path ends in exactly one response.
// Client errors are rendered as JSON and never returned; the returned error
// is non-nil only when the channel pair itself failed.
func (a *App) Handle(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error {
	ctx, span := a.tracer.Start(ctx, "adapter.dispatch",
		trace.WithAttributes(
			attribute.String("scope.type", string(scope.Type)),
			attribute.String("http.request.method", scope.Method),
			attribute.String("url.path", scope.Path),
		))
	defer span.End()

	start := time.Now()
	info := dispatchInfoFrom(ctx)

	err := a.dispatch(ctx, scope, recv, send, info)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.WarnContext(ctx, "request aborted",
			slog.String("request_id", scope.RequestID),
			slog.String("path", scope.Path),
			slog.String("error", err.Error()))
		return err
	}

	if info != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", info.Status))
		if info.Route != "" {
			span.SetAttributes(attribute.String("http.route", info.Route))
		}
	}
	a.logger.DebugContext(ctx, "request dispatched",
		slog.String("request_id", scope.RequestID),
		slog.String("method", scope.Method),
		slog.String("path", scope.Path),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (a *App) dispatch(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender, info *DispatchInfo) error {
	if scope.Type != domain.ScopeHTTP {
		return a.respondNotFound(ctx, send, info)
	}

	if !a.router.Allows(scope.Method) {
		return a.respondError(ctx, send, info, a.methodError(scope.Method))
	}

	route, params, ok := a.router.Match(scope.Method, scope.Path)
	if !ok {
		return a.respondNotFound(ctx, send, info)
	}
	if info != nil {
		info.Route = route.Pattern
	}

	req := &Request{
		Scope:  scope,
		Route:  route.Pattern,
		Params: params,
		Query:  scope.Query(),
	}

	if route.ConsumesJSON {
		body, apiErr, err := DecodeJSONBody(ctx, recv)
		if err != nil {
			return err
		}
		if apiErr != nil {
			return a.respondError(ctx, send, info, apiErr)
		}
		req.Body = body
	}

	res := route.Handler(ctx, req)
	if res.Err != nil {
		return a.respondError(ctx, send, info, res.Err)
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	if info != nil {
		info.Status = status
	}
	return SendJSON(ctx, send, res.Payload, status)
}

func (a *App) methodError(method string) *domain.APIError {
	msg := fmt.Sprintf("Method %s not allowed.", method)
	if a.methodPolicy == MethodPolicyNotAllowed {
		return domain.ErrMethodNotAllowed(msg)
	}
	return domain.ErrNotFound(msg)
}

func (a *App) respondError(ctx context.Context, send ports.Sender, info *DispatchInfo, apiErr *domain.APIError) error {
	if info != nil {
		info.Status = apiErr.HTTPStatusCode()
		info.Error = apiErr.Message
	}
	return SendAPIError(ctx, send, apiErr)
}

func (a *App) respondNotFound(ctx context.Context, send ports.Sender, info *DispatchInfo) error {
	if info != nil {
		info.Status = http.StatusNotFound
		info.Error = "Not found"
	}
	return SendNotFound(ctx, send)
}
