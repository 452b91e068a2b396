package adapter

import "context"

// dispatchInfoKey identifies the request-scoped DispatchInfo.
type dispatchInfoKey struct{}

// DispatchInfo is filled in by App.Handle so that wrappers running outside
// the App (recorder, metrics) can see how a request was routed.
type DispatchInfo struct {
	// Route is the matched route pattern; empty for fallbacks.
	Route string
	// Status is the status the App emitted.
	Status int
	// Error is the client-facing error message, if any.
	Error string
}

// WithDispatchInfo attaches an empty DispatchInfo to ctx and returns it.
// The caller reads it after Handle returns.
func WithDispatchInfo(ctx context.Context) (context.Context, *DispatchInfo) {
	if info := dispatchInfoFrom(ctx); info != nil {
		return ctx, info
	}
	info := &DispatchInfo{}
	return context.WithValue(ctx, dispatchInfoKey{}, info), info
}

func dispatchInfoFrom(ctx context.Context) *DispatchInfo {
	info, _ := ctx.Value(dispatchInfoKey{}).(*DispatchInfo)
	return info
}
