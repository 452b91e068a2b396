package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
)

// HandlerFunc computes the result of a matched route. It never writes to the
// outbound channel; the App renders the returned Result.
type HandlerFunc func(ctx context.Context, req *Request) Result

// Request is the per-call view a handler receives.
type Request struct {
	Scope  domain.Scope
	Route  string
	Params map[string]string
	Query  url.Values

	// Body holds the decoded JSON body for routes registered with
	// ConsumesJSON; nil otherwise.
	Body any
}

// Param returns a path parameter captured by the route pattern.
func (r *Request) Param(name string) (string, bool) {
	v, ok := r.Params[name]
	return v, ok
}

// QueryParam returns the first value of a query parameter.
func (r *Request) QueryParam(name string) (string, bool) {
	vs, ok := r.Query[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Result is either a success payload or an APIError.
type Result struct {
	// Status defaults to 200 for successes.
	Status  int
	Payload any
	Err     *domain.APIError
}

// OK wraps a success payload.
func OK(payload any) Result {
	return Result{Payload: payload}
}

// Fail wraps an error descriptor.
func Fail(err *domain.APIError) Result {
	return Result{Err: err}
}

// MatchKind selects how a route pattern is compared with the request path.
type MatchKind int

const (
	// MatchExact requires path == pattern.
	MatchExact MatchKind = iota
	// MatchPrefix requires the path to start with the pattern.
	MatchPrefix
	// MatchTrailingParam requires the path to start with the pattern's fixed
	// prefix; the last path segment is captured as the named parameter.
	MatchTrailingParam
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchTrailingParam:
		return "param"
	default:
		return "unknown"
	}
}

// Route binds a method and path pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Kind    MatchKind

	// ConsumesJSON makes the App assemble and decode the request body
	// before calling Handler.
	ConsumesJSON bool

	Handler HandlerFunc

	prefix    string
	paramName string
}

// RouteOption customizes a route at registration.
type RouteOption func(*Route)

// ConsumesJSON marks a route as reading a JSON request body.
func ConsumesJSON() RouteOption {
	return func(r *Route) {
		r.ConsumesJSON = true
	}
}

// Router is a registration table of routes. Matching follows registration
// order and the first match wins. A Router must not be modified once it is
// handed to an App.
type Router struct {
	routes  []Route
	methods map[string]struct{}
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{methods: make(map[string]struct{})}
}

// Handle registers a route. The pattern selects the match kind:
//
//	/mean            exact
//	/factorial*      prefix "/factorial"
//	/fibonacci/{n}   prefix "/fibonacci/", last segment captured as n
func (r *Router) Handle(method, pattern string, h HandlerFunc, opts ...RouteOption) {
	if h == nil {
		panic(fmt.Sprintf("adapter: nil handler for %s %s", method, pattern))
	}

	route := Route{
		Method:  strings.ToUpper(method),
		Pattern: pattern,
		Handler: h,
	}

	switch {
	case strings.HasSuffix(pattern, "*"):
		route.Kind = MatchPrefix
		route.prefix = strings.TrimSuffix(pattern, "*")
	case strings.HasSuffix(pattern, "}"):
		open := strings.LastIndex(pattern, "/{")
		if open < 0 {
			panic(fmt.Sprintf("adapter: malformed pattern %q", pattern))
		}
		route.Kind = MatchTrailingParam
		route.prefix = pattern[:open+1]
		route.paramName = pattern[open+2 : len(pattern)-1]
	default:
		route.Kind = MatchExact
		route.prefix = pattern
	}

	for _, opt := range opts {
		opt(&route)
	}

	r.routes = append(r.routes, route)
	r.methods[route.Method] = struct{}{}
}

// Get registers a GET route.
func (r *Router) Get(pattern string, h HandlerFunc, opts ...RouteOption) {
	r.Handle("GET", pattern, h, opts...)
}

// Post registers a POST route.
func (r *Router) Post(pattern string, h HandlerFunc, opts ...RouteOption) {
	r.Handle("POST", pattern, h, opts...)
}

// Allows reports whether any route is registered for method.
func (r *Router) Allows(method string) bool {
	_, ok := r.methods[strings.ToUpper(method)]
	return ok
}

// Match returns the first route for method whose pattern matches path,
// along with any captured parameters.
func (r *Router) Match(method, path string) (*Route, map[string]string, bool) {
	method = strings.ToUpper(method)
	for i := range r.routes {
		route := &r.routes[i]
		if route.Method != method {
			continue
		}
		switch route.Kind {
		case MatchExact:
			if path == route.prefix {
				return route, nil, true
			}
		case MatchPrefix:
			if strings.HasPrefix(path, route.prefix) {
				return route, nil, true
			}
		case MatchTrailingParam:
			if strings.HasPrefix(path, route.prefix) {
				segment := path[strings.LastIndex(path, "/")+1:]
				return route, map[string]string{route.paramName: segment}, true
			}
		}
	}
	return nil, nil, false
}

// Routes returns a copy of the registration table in match order.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}
