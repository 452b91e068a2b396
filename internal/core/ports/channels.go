// Package ports defines the boundaries between the adapter, its hosts and
// the infrastructure it is wired to.
package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
)

// Receiver yields the next inbound event of the current request. It blocks
// until an event is available or ctx is done.
type Receiver interface {
	Receive(ctx context.Context) (domain.InboundEvent, error)
}

// Sender accepts one outbound event per call and returns once the host has
// accepted it.
type Sender interface {
	Send(ctx context.Context, ev domain.OutboundEvent) error
}

// ReceiveFunc adapts a function to Receiver.
type ReceiveFunc func(ctx context.Context) (domain.InboundEvent, error)

func (f ReceiveFunc) Receive(ctx context.Context) (domain.InboundEvent, error) { return f(ctx) }

// SendFunc adapts a function to Sender.
type SendFunc func(ctx context.Context, ev domain.OutboundEvent) error

func (f SendFunc) Send(ctx context.Context, ev domain.OutboundEvent) error { return f(ctx, ev) }

// Application is anything a host can hand a request to.
type Application interface {
	Handle(ctx context.Context, scope domain.Scope, recv Receiver, send Sender) error
}
