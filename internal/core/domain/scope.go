package domain

import (
	"net/url"
	"strings"
)

// ScopeType identifies the protocol kind of a connection scope.
type ScopeType string

const (
	ScopeHTTP      ScopeType = "http"
	ScopeWebSocket ScopeType = "websocket"
	ScopeLifespan  ScopeType = "lifespan"
)

// Header is a single response or request header. Names are lower-case.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Scope is the immutable per-request description handed to an application
// by its host. It is passed by value and never mutated by the adapter.
type Scope struct {
	Type     ScopeType `json:"type"`
	Method   string    `json:"method"`
	Path     string    `json:"path"`
	RawQuery string    `json:"query_string"`
	Headers  []Header  `json:"headers,omitempty"`

	// RequestID correlates the scope with host logs. Optional.
	RequestID string `json:"request_id,omitempty"`
}

// Query parses RawQuery. Malformed pairs are skipped rather than failing the
// whole query.
func (s Scope) Query() url.Values {
	values, _ := url.ParseQuery(s.RawQuery)
	if values == nil {
		values = url.Values{}
	}
	return values
}

// Header returns the first header value with the given name.
func (s Scope) Header(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, h := range s.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}
