package domain

// InboundEvent is one chunk of the request body. The sequence ends with the
// first event whose MoreBody is false.
type InboundEvent struct {
	Body     []byte
	MoreBody bool
}

// OutboundEventType discriminates the two response phases.
type OutboundEventType string

const (
	ResponseStart OutboundEventType = "http.response.start"
	ResponseBody  OutboundEventType = "http.response.body"
)

// OutboundEvent is one response message. Start events carry Status and
// Headers, body events carry Body.
type OutboundEvent struct {
	Type    OutboundEventType
	Status  int
	Headers []Header
	Body    []byte
}

// NewResponseStart builds the first event of a response.
func NewResponseStart(status int, headers ...Header) OutboundEvent {
	return OutboundEvent{Type: ResponseStart, Status: status, Headers: headers}
}

// NewResponseBody builds the final event of a response.
func NewResponseBody(body []byte) OutboundEvent {
	return OutboundEvent{Type: ResponseBody, Body: body}
}

// ResponsePhase tracks which events a sender has accepted. Hosts use it to
// enforce start-then-body ordering.
type ResponsePhase int

const (
	PhaseAwaitingStart ResponsePhase = iota
	PhaseAwaitingBody
	PhaseComplete
)

// Advance validates ev against the current phase and returns the next one.
func (p ResponsePhase) Advance(ev OutboundEvent) (ResponsePhase, error) {
	switch {
	case p == PhaseAwaitingStart && ev.Type == ResponseStart:
		return PhaseAwaitingBody, nil
	case p == PhaseAwaitingBody && ev.Type == ResponseBody:
		return PhaseComplete, nil
	default:
		return p, ErrProtocolViolation
	}
}
