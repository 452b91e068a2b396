// Package channel provides an in-process channel pair for driving an
// application from another goroutine.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

// Pipe connects a host goroutine with an application goroutine. The host
// pushes inbound events and reads outbound events; the application sees the
// Pipe as its Receiver and Sender.
type Pipe struct {
	inbound  chan domain.InboundEvent
	outbound chan domain.OutboundEvent
	done     chan struct{}

	closeOnce sync.Once

	mu    sync.Mutex
	phase domain.ResponsePhase
}

var (
	_ ports.Receiver = (*Pipe)(nil)
	_ ports.Sender   = (*Pipe)(nil)
)

// NewPipe creates a pipe whose directions each buffer up to buffer events.
func NewPipe(buffer int) *Pipe {
	if buffer < 0 {
		buffer = 0
	}
	return &Pipe{
		inbound:  make(chan domain.InboundEvent, buffer),
		outbound: make(chan domain.OutboundEvent, 2),
		done:     make(chan struct{}),
	}
}

// Push delivers an inbound event to the application.
func (p *Pipe) Push(ctx context.Context, ev domain.InboundEvent) error {
	select {
	case <-p.done:
		return domain.ErrChannelClosed
	default:
	}
	select {
	case p.inbound <- ev:
		return nil
	case <-p.done:
		return domain.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PushBody splits body into chunkSize slices and pushes them, marking the
// last one as final. An empty body is pushed as one empty final event.
func (p *Pipe) PushBody(ctx context.Context, body []byte, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = len(body)
	}
	for {
		n := min(chunkSize, len(body))
		ev := domain.InboundEvent{Body: body[:n], MoreBody: n < len(body)}
		if err := p.Push(ctx, ev); err != nil {
			return err
		}
		body = body[n:]
		if !ev.MoreBody {
			return nil
		}
	}
}

// Receive implements ports.Receiver.
func (p *Pipe) Receive(ctx context.Context) (domain.InboundEvent, error) {
	select {
	case ev := <-p.inbound:
		return ev, nil
	case <-p.done:
		return domain.InboundEvent{}, domain.ErrChannelClosed
	case <-ctx.Done():
		return domain.InboundEvent{}, ctx.Err()
	}
}

// Send implements ports.Sender. Events out of start-then-body order are
// rejected with domain.ErrProtocolViolation.
func (p *Pipe) Send(ctx context.Context, ev domain.OutboundEvent) error {
	p.mu.Lock()
	next, err := p.phase.Advance(ev)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	p.phase = next
	p.mu.Unlock()

	select {
	case <-p.done:
		return domain.ErrChannelClosed
	default:
	}
	select {
	case p.outbound <- ev:
		return nil
	case <-p.done:
		return domain.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next outbound event sent by the application.
func (p *Pipe) Next(ctx context.Context) (domain.OutboundEvent, error) {
	select {
	case ev := <-p.outbound:
		return ev, nil
	case <-p.done:
		// Drain what the application managed to send before Close.
		select {
		case ev := <-p.outbound:
			return ev, nil
		default:
			return domain.OutboundEvent{}, domain.ErrChannelClosed
		}
	case <-ctx.Done():
		return domain.OutboundEvent{}, ctx.Err()
	}
}

// Close releases both sides. Pending and future calls fail with
// domain.ErrChannelClosed. Close is idempotent.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// Complete reports whether a full response has been sent.
func (p *Pipe) Complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase == domain.PhaseComplete
}
