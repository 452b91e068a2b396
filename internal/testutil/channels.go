// Package testutil provides scripted channel pairs for driving an
// application without a host.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
)

// ErrScriptExhausted is returned when a ScriptedReceiver is asked for more
// events than it was given. A real host would block instead.
var ErrScriptExhausted = errors.New("testutil: no more inbound events")

// ScriptedReceiver replays a fixed sequence of inbound events.
type ScriptedReceiver struct {
	Events []domain.InboundEvent
	Calls  int
}

// Chunks builds a receiver delivering each chunk as one event; all but the
// last are marked MoreBody. With no chunks it delivers one empty terminal
// event.
func Chunks(chunks ...string) *ScriptedReceiver {
	if len(chunks) == 0 {
		return &ScriptedReceiver{Events: []domain.InboundEvent{{}}}
	}
	events := make([]domain.InboundEvent, len(chunks))
	for i, c := range chunks {
		events[i] = domain.InboundEvent{Body: []byte(c), MoreBody: i < len(chunks)-1}
	}
	return &ScriptedReceiver{Events: events}
}

func (r *ScriptedReceiver) Receive(ctx context.Context) (domain.InboundEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.InboundEvent{}, err
	}
	if r.Calls >= len(r.Events) {
		r.Calls++
		return domain.InboundEvent{}, ErrScriptExhausted
	}
	ev := r.Events[r.Calls]
	r.Calls++
	return ev, nil
}

// RecordingSender captures every outbound event. FailAfter, when positive,
// makes the Nth and later sends fail with Err.
type RecordingSender struct {
	Events    []domain.OutboundEvent
	FailAfter int
	Err       error
}

func (s *RecordingSender) Send(ctx context.Context, ev domain.OutboundEvent) error {
	if s.FailAfter > 0 && len(s.Events)+1 >= s.FailAfter {
		return s.Err
	}
	s.Events = append(s.Events, ev)
	return nil
}

// AssertResponse checks that exactly one start and one body event were sent,
// in that order, with the JSON content type, and returns status and body.
func (s *RecordingSender) AssertResponse(t *testing.T) (int, []byte) {
	t.Helper()

	if len(s.Events) != 2 {
		t.Fatalf("sent %d events, want 2: %+v", len(s.Events), s.Events)
	}
	start, body := s.Events[0], s.Events[1]
	if start.Type != domain.ResponseStart {
		t.Fatalf("first event type = %q, want %q", start.Type, domain.ResponseStart)
	}
	if body.Type != domain.ResponseBody {
		t.Fatalf("second event type = %q, want %q", body.Type, domain.ResponseBody)
	}
	if len(start.Headers) != 1 || start.Headers[0].Name != "content-type" || start.Headers[0].Value != "application/json" {
		t.Errorf("headers = %+v, want [content-type: application/json]", start.Headers)
	}
	return start.Status, body.Body
}

// DecodeObject unmarshals body into a JSON object.
func DecodeObject(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("response body %q is not a JSON object: %v", body, err)
	}
	return m
}
