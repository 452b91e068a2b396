package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
)

type contextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey contextKey = "request_id"

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// requestLogKey identifies the per-request access log record.
type requestLogKey struct{}

// requestLog collects what the dispatch layer learns about a request so the
// completion record can report it.
type requestLog struct {
	route     string
	appStatus int
	appError  string
	err       string
	extra     []slog.Attr
}

func requestLogFrom(ctx context.Context) *requestLog {
	rl, _ := ctx.Value(requestLogKey{}).(*requestLog)
	return rl
}

// RequestIDMiddleware assigns each request an ID, stores it in the context and
// echoes it in the X-Request-ID response header. A caller-supplied header is
// reused when it is a valid UUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context, or "" if none is set.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggingMiddleware logs the start and completion of every request. The
// completion record carries the matched route and application error when the
// bridge reported them, plus any fields added with AddLogField. Server errors
// are logged at warn level.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rl := &requestLog{}
			ctx := context.WithValue(r.Context(), requestLogKey{}, rl)
			wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			requestID := GetRequestID(r.Context())

			logger.DebugContext(ctx, "request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			attrs := make([]slog.Attr, 0, 10+len(rl.extra))
			attrs = append(attrs,
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Int("bytes", wrapped.written),
				slog.Duration("duration", time.Since(start)),
			)
			if rl.route != "" {
				attrs = append(attrs, slog.String("route", rl.route))
			}
			if rl.appStatus != 0 && rl.appStatus != wrapped.statusCode {
				attrs = append(attrs, slog.Int("app_status", rl.appStatus))
			}
			if rl.appError != "" {
				attrs = append(attrs, slog.String("app_error", rl.appError))
			}
			if rl.err != "" {
				attrs = append(attrs, slog.String("error", rl.err))
			}
			attrs = append(attrs, rl.extra...)

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError || rl.err != "" {
				level = slog.LevelWarn
			}
			logger.LogAttrs(ctx, level, "request completed", attrs...)
		})
	}
}

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// TimeoutMiddleware cancels the request context after timeout. Handlers
// observe it cooperatively; a zero timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AddLogField appends a key/value to the completion record written by
// LoggingMiddleware. Empty values and contexts without the middleware are
// ignored.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if rl := requestLogFrom(ctx); rl != nil {
		rl.extra = append(rl.extra, slog.String(key, value))
	}
}

// annotateDispatch copies the routing outcome of a request into its log
// record.
func annotateDispatch(ctx context.Context, info *adapter.DispatchInfo) {
	rl := requestLogFrom(ctx)
	if rl == nil || info == nil {
		return
	}
	rl.route = info.Route
	rl.appStatus = info.Status
	rl.appError = info.Error
}

// AddError records err as the request's transport error. No-op for nil.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if rl := requestLogFrom(ctx); rl != nil {
		rl.err = err.Error()
	}
}
