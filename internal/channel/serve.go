package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

// Response is the collected outcome of one application call.
type Response struct {
	Status  int
	Headers []domain.Header
	Body    []byte
}

// Header returns the first response header with the given name.
func (r *Response) Header(name string) string {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// ErrNoResponse is returned by Serve when the application finished without
// sending a complete response.
var ErrNoResponse = errors.New("channel: application returned without a complete response")

// Serve runs app for scope in its own goroutine, feeds it body in chunkSize
// slices and collects the response.
func Serve(ctx context.Context, app ports.Application, scope domain.Scope, body []byte, chunkSize int) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipe := NewPipe(1)
	defer pipe.Close()

	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Handle(ctx, scope, pipe, pipe)
	}()

	// The application may answer without reading the body, so feeding it
	// must not block collection.
	go func() {
		_ = pipe.PushBody(ctx, body, chunkSize)
	}()

	var resp Response
	for got := 0; got < 2; {
		select {
		case err := <-appErr:
			if err != nil {
				return nil, fmt.Errorf("application: %w", err)
			}
			// Events may still be buffered after a clean return.
			for got < 2 {
				select {
				case ev := <-pipe.outbound:
					collect(&resp, ev)
					got++
				default:
					return nil, ErrNoResponse
				}
			}
			return &resp, nil
		case ev := <-pipe.outbound:
			collect(&resp, ev)
			got++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := <-appErr; err != nil {
		return nil, fmt.Errorf("application: %w", err)
	}
	return &resp, nil
}

func collect(resp *Response, ev domain.OutboundEvent) {
	switch ev.Type {
	case domain.ResponseStart:
		resp.Status = ev.Status
		resp.Headers = ev.Headers
	case domain.ResponseBody:
		resp.Body = ev.Body
	}
}
