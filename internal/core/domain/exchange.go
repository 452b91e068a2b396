package domain

import "time"

// Exchange records a single request/response pair that passed through the
// adapter. The recorder fills it in as events flow and persists it once the
// response body has been sent.
type Exchange struct {
	// ID uniquely identifies this exchange
	ID string `json:"id"`

	// RequestID is the host-assigned correlation id, if any
	RequestID string `json:"request_id,omitempty"`

	ScopeType ScopeType `json:"scope_type"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Query     string    `json:"query,omitempty"`

	// Route is the pattern of the matched route; empty for fallbacks
	Route string `json:"route,omitempty"`

	// Status is the response status; zero while the exchange is in flight
	Status int `json:"status"`

	// Bodies are kept verbatim; the request body may not be valid JSON
	RequestBody  string `json:"request_body,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`

	// Error holds the transport error that aborted the exchange, if any
	Error string `json:"error,omitempty"`

	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// Completed reports whether a full response was sent.
func (e *Exchange) Completed() bool {
	return e.Status != 0 && e.Error == ""
}
