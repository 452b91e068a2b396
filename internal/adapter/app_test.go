package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/testutil"
)

func newTestApp(t *testing.T, opts ...Option) (*App, *int) {
	t.Helper()

	calls := 0
	r := NewRouter()
	r.Get("/echo/{v}", func(ctx context.Context, req *Request) Result {
		calls++
		v, _ := req.Param("v")
		return OK(map[string]string{"v": v})
	})
	r.Get("/square*", func(ctx context.Context, req *Request) Result {
		calls++
		raw, ok := req.QueryParam("n")
		n, apiErr := ValidateNonNegativeInteger(raw, ok)
		if apiErr != nil {
			return Fail(apiErr.WithParam("n"))
		}
		return OK(map[string]int{"result": n * n})
	})
	r.Get("/body", func(ctx context.Context, req *Request) Result {
		calls++
		return OK(map[string]any{"body": req.Body})
	}, ConsumesJSON())
	r.Post("/created", func(ctx context.Context, req *Request) Result {
		calls++
		return Result{Status: http.StatusCreated, Payload: map[string]bool{"ok": true}}
	})

	return NewApp(r, opts...), &calls
}

func httpScope(method, path, query string) domain.Scope {
	return domain.Scope{Type: domain.ScopeHTTP, Method: method, Path: path, RawQuery: query}
}

func TestApp_Handle(t *testing.T) {
	tests := []struct {
		name       string
		scope      domain.Scope
		chunks     []string
		wantStatus int
		wantBody   string
		wantCalls  int
	}{
		{
			name:       "path param",
			scope:      httpScope("GET", "/echo/hi", ""),
			wantStatus: 200,
			wantBody:   `{"v":"hi"}`,
			wantCalls:  1,
		},
		{
			name:       "query param",
			scope:      httpScope("GET", "/square", "n=4"),
			wantStatus: 200,
			wantBody:   `{"result":16}`,
			wantCalls:  1,
		},
		{
			name:       "handler malformed input",
			scope:      httpScope("GET", "/square", "n=four"),
			wantStatus: 422,
			wantBody:   `{"error":"Value must be a positive integer."}`,
			wantCalls:  1,
		},
		{
			name:       "handler invalid input",
			scope:      httpScope("GET", "/square", "n=-4"),
			wantStatus: 400,
			wantBody:   `{"error":"Value must be a positive integer."}`,
			wantCalls:  1,
		},
		{
			name:       "json body in chunks",
			scope:      httpScope("GET", "/body", ""),
			chunks:     []string{`{"a":`, `[1,2]}`},
			wantStatus: 200,
			wantBody:   `{"body":{"a":[1,2]}}`,
			wantCalls:  1,
		},
		{
			name:       "malformed body skips handler",
			scope:      httpScope("GET", "/body", ""),
			chunks:     []string{`{"a":`},
			wantStatus: 422,
			wantBody:   `{"error":"Invalid JSON payload."}`,
			wantCalls:  0,
		},
		{
			name:       "explicit success status",
			scope:      httpScope("POST", "/created", ""),
			wantStatus: 201,
			wantBody:   `{"ok":true}`,
			wantCalls:  1,
		},
		{
			name:       "no matching route",
			scope:      httpScope("GET", "/missing", ""),
			wantStatus: 404,
			wantBody:   `{"error":"Not found"}`,
		},
		{
			name:       "route exists for other method only",
			scope:      httpScope("POST", "/echo/x", ""),
			wantStatus: 404,
			wantBody:   `{"error":"Not found"}`,
		},
		{
			name:       "unsupported method",
			scope:      httpScope("DELETE", "/echo/x", ""),
			wantStatus: 404,
			wantBody:   `{"error":"Method DELETE not allowed."}`,
		},
		{
			name:       "websocket scope",
			scope:      domain.Scope{Type: domain.ScopeWebSocket, Method: "GET", Path: "/echo/x"},
			wantStatus: 404,
			wantBody:   `{"error":"Not found"}`,
		},
		{
			name:       "lifespan scope",
			scope:      domain.Scope{Type: domain.ScopeLifespan},
			wantStatus: 404,
			wantBody:   `{"error":"Not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, calls := newTestApp(t)
			send := &testutil.RecordingSender{}

			err := app.Handle(context.Background(), tt.scope, testutil.Chunks(tt.chunks...), send)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			status, body := send.AssertResponse(t)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
			if *calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", *calls, tt.wantCalls)
			}
		})
	}
}

func TestApp_Handle_NonHTTPScopes(t *testing.T) {
	app, _ := newTestApp(t)

	for _, typ := range []domain.ScopeType{domain.ScopeWebSocket, domain.ScopeLifespan, "", "custom"} {
		for _, method := range []string{"GET", "POST", ""} {
			for _, path := range []string{"/echo/1", "/square", "/", "/missing"} {
				send := &testutil.RecordingSender{}
				scope := domain.Scope{Type: typ, Method: method, Path: path, RawQuery: "n=2"}

				if err := app.Handle(context.Background(), scope, testutil.Chunks(), send); err != nil {
					t.Fatalf("Handle(%+v) error = %v", scope, err)
				}
				status, body := send.AssertResponse(t)
				if status != 404 || string(body) != `{"error":"Not found"}` {
					t.Errorf("Handle(%+v) = %d %s, want 404 Not found", scope, status, body)
				}
			}
		}
	}
}

func TestApp_Handle_MethodPolicy(t *testing.T) {
	app, _ := newTestApp(t, WithMethodPolicy(MethodPolicyNotAllowed))
	send := &testutil.RecordingSender{}

	if err := app.Handle(context.Background(), httpScope("PUT", "/echo/1", ""), testutil.Chunks(), send); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	status, body := send.AssertResponse(t)
	if status != 405 {
		t.Errorf("status = %d, want 405", status)
	}
	if string(body) != `{"error":"Method PUT not allowed."}` {
		t.Errorf("body = %s", body)
	}
}

func TestApp_Handle_FallbackIsIdempotent(t *testing.T) {
	app, _ := newTestApp(t)

	var first []byte
	for i := 0; i < 5; i++ {
		send := &testutil.RecordingSender{}
		if err := app.Handle(context.Background(), httpScope("GET", "/unknown", ""), testutil.Chunks(), send); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		status, body := send.AssertResponse(t)
		if status != 404 {
			t.Fatalf("status = %d, want 404", status)
		}
		if i == 0 {
			first = body
			continue
		}
		if string(body) != string(first) {
			t.Errorf("call %d body = %s, want %s", i, body, first)
		}
	}
}

func TestApp_Handle_TransportErrors(t *testing.T) {
	t.Run("body receive fails", func(t *testing.T) {
		app, calls := newTestApp(t)
		send := &testutil.RecordingSender{}
		recv := &testutil.ScriptedReceiver{Events: []domain.InboundEvent{{Body: []byte("["), MoreBody: true}}}

		err := app.Handle(context.Background(), httpScope("GET", "/body", ""), recv, send)
		if !errors.Is(err, testutil.ErrScriptExhausted) {
			t.Fatalf("Handle() error = %v, want ErrScriptExhausted", err)
		}
		if len(send.Events) != 0 {
			t.Errorf("sent %d events, want 0", len(send.Events))
		}
		if *calls != 0 {
			t.Errorf("handler calls = %d, want 0", *calls)
		}
	})

	t.Run("send fails", func(t *testing.T) {
		app, _ := newTestApp(t)
		sendErr := errors.New("gone")
		send := &testutil.RecordingSender{FailAfter: 1, Err: sendErr}

		err := app.Handle(context.Background(), httpScope("GET", "/echo/1", ""), testutil.Chunks(), send)
		if !errors.Is(err, sendErr) {
			t.Fatalf("Handle() error = %v, want %v", err, sendErr)
		}
	})
}

func TestApp_Handle_DispatchInfo(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		scope      domain.Scope
		wantRoute  string
		wantStatus int
		wantError  string
	}{
		{scope: httpScope("GET", "/echo/1", ""), wantRoute: "/echo/{v}", wantStatus: 200},
		{scope: httpScope("GET", "/square", "n=-1"), wantRoute: "/square*", wantStatus: 400, wantError: "Value must be a positive integer."},
		{scope: httpScope("GET", "/nope", ""), wantStatus: 404, wantError: "Not found"},
	}

	for _, tt := range tests {
		t.Run(tt.scope.Path, func(t *testing.T) {
			ctx, info := WithDispatchInfo(context.Background())
			if err := app.Handle(ctx, tt.scope, testutil.Chunks(), &testutil.RecordingSender{}); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if info.Route != tt.wantRoute {
				t.Errorf("Route = %q, want %q", info.Route, tt.wantRoute)
			}
			if info.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", info.Status, tt.wantStatus)
			}
			if info.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", info.Error, tt.wantError)
			}
		})
	}
}

func TestApp_Handle_Concurrent(t *testing.T) {
	app, _ := newTestApp(t)

	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		go func(i int) {
			send := &testutil.RecordingSender{}
			scope := httpScope("GET", fmt.Sprintf("/echo/%d", i), "")
			if err := app.Handle(context.Background(), scope, testutil.Chunks(), send); err != nil {
				errs <- err
				return
			}
			want := fmt.Sprintf(`{"v":"%d"}`, i)
			if len(send.Events) != 2 || string(send.Events[1].Body) != want {
				errs <- fmt.Errorf("request %d got %+v", i, send.Events)
				return
			}
			errs <- nil
		}(i)
	}

	for i := 0; i < 50; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestMethodPolicyFromStatus(t *testing.T) {
	tests := []struct {
		status  int
		want    MethodPolicy
		wantErr bool
	}{
		{status: 404, want: MethodPolicyNotFound},
		{status: 405, want: MethodPolicyNotAllowed},
		{status: 400, wantErr: true},
	}

	for _, tt := range tests {
		got, err := MethodPolicyFromStatus(tt.status)
		if (err != nil) != tt.wantErr {
			t.Errorf("MethodPolicyFromStatus(%d) error = %v, wantErr %v", tt.status, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (got != tt.want || got.Status() != tt.status) {
			t.Errorf("MethodPolicyFromStatus(%d) = %v (status %d)", tt.status, got, got.Status())
		}
	}
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next ports.Application) ports.Application {
			return ApplicationFunc(func(ctx context.Context, scope domain.Scope, recv ports.Receiver, send ports.Sender) error {
				order = append(order, name)
				return next.Handle(ctx, scope, recv, send)
			})
		}
	}

	app, _ := newTestApp(t)
	chained := Chain(app, mw("outer"), mw("inner"))

	send := &testutil.RecordingSender{}
	if err := chained.Handle(context.Background(), httpScope("GET", "/echo/1", ""), testutil.Chunks(), send); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v, want [outer inner]", order)
	}
	send.AssertResponse(t)
}
