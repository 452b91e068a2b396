package adapter

import (
	"context"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

// ApplicationFunc adapts a function to ports.Application.
type ApplicationFunc func(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error

func (f ApplicationFunc) Handle(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error {
	return f(ctx, scope, recv, send)
}

// Middleware wraps an application, typically to observe or decorate its
// channel pair.
type Middleware func(next ports.Application) ports.Application

// Chain wraps app with mws; the first middleware is the outermost.
func Chain(app ports.Application, mws ...Middleware) ports.Application {
	for i := len(mws) - 1; i >= 0; i-- {
		app = mws[i](app)
	}
	return app
}
