// Package mathroutes registers the math endpoints served by the gateway:
// factorial, fibonacci and arithmetic mean.
package mathroutes

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-event-gateway/internal/adapter"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
)

const (
	welcomeMessage    = "Welcome to the math gateway"
	notFloatsMessage  = "Body must be an array of floats."
	emptyArrayMessage = "Array of floats cannot be empty."
	cancelledMessage  = "Computation cancelled."

	// splitThreshold is the range below which factorial multiplies directly
	// without checking for cancellation.
	splitThreshold = 512
)

// Options tunes the math routes.
type Options struct {
	// MaxN caps n for factorial and fibonacci. Zero means no cap.
	MaxN int
}

// ResultPayload is the success body of every math route.
type ResultPayload struct {
	Result any `json:"result"`
}

// Register adds the math routes to r in match order.
func Register(r *adapter.Router, opts Options) {
	h := &handlers{maxN: opts.MaxN}

	r.Get("/", h.root)
	r.Get("/factorial*", h.factorial)
	r.Get("/fibonacci/{n}", h.fibonacci)
	r.Get("/mean", h.mean, adapter.ConsumesJSON())
}

// NewRouter returns a router with only the math routes registered.
func NewRouter(opts Options) *adapter.Router {
	r := adapter.NewRouter()
	Register(r, opts)
	return r
}

type handlers struct {
	maxN int
}

func (h *handlers) root(ctx context.Context, req *adapter.Request) adapter.Result {
	return adapter.OK(map[string]string{"message": welcomeMessage})
}

func (h *handlers) factorial(ctx context.Context, req *adapter.Request) adapter.Result {
	raw, present := req.QueryParam("n")
	n, apiErr := h.validateN(raw, present)
	if apiErr != nil {
		return adapter.Fail(apiErr)
	}
	return compute(ctx, Factorial, n)
}

func (h *handlers) fibonacci(ctx context.Context, req *adapter.Request) adapter.Result {
	raw, present := req.Param("n")
	n, apiErr := h.validateN(raw, present)
	if apiErr != nil {
		return adapter.Fail(apiErr)
	}
	return compute(ctx, Fibonacci, n)
}

func (h *handlers) mean(ctx context.Context, req *adapter.Request) adapter.Result {
	numbers, apiErr := parseFloats(req.Body)
	if apiErr != nil {
		return adapter.Fail(apiErr)
	}
	if len(numbers) == 0 {
		return adapter.Fail(domain.ErrInvalid(emptyArrayMessage))
	}
	return adapter.OK(ResultPayload{Result: Float(Mean(numbers))})
}

func compute(ctx context.Context, fn func(context.Context, int) (*big.Int, error), n int) adapter.Result {
	v, err := fn(ctx, n)
	if err != nil {
		return adapter.Fail(domain.ErrServer(cancelledMessage))
	}
	return adapter.OK(ResultPayload{Result: v})
}

func (h *handlers) validateN(raw string, present bool) (int, *domain.APIError) {
	n, apiErr := adapter.ValidateNonNegativeInteger(raw, present)
	if apiErr != nil {
		return 0, apiErr.WithParam("n")
	}
	if h.maxN > 0 && n > h.maxN {
		return 0, domain.ErrInvalid(fmt.Sprintf("Value must not exceed %d.", h.maxN)).WithParam("n")
	}
	return n, nil
}

// parseFloats converts a decoded JSON body into numbers. A body that is not
// an array counts as an empty array. Elements may be numbers, numeric strings
// or booleans; anything else, or a non-finite value, is malformed.
func parseFloats(body any) ([]float64, *domain.APIError) {
	items, ok := body.([]any)
	if !ok {
		return nil, nil
	}

	numbers := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, domain.ErrMalformed(notFloatsMessage)
		}
		numbers = append(numbers, f)
	}
	return numbers, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Factorial returns n! exactly. Large products are split in halves and ctx
// is checked before each split, so a cancelled request stops early.
func Factorial(ctx context.Context, n int) (*big.Int, error) {
	if n < 2 {
		return big.NewInt(1), nil
	}
	return productRange(ctx, 2, int64(n))
}

func productRange(ctx context.Context, lo, hi int64) (*big.Int, error) {
	if hi-lo < splitThreshold {
		return new(big.Int).MulRange(lo, hi), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mid := lo + (hi-lo)/2
	left, err := productRange(ctx, lo, mid)
	if err != nil {
		return nil, err
	}
	right, err := productRange(ctx, mid+1, hi)
	if err != nil {
		return nil, err
	}
	return left.Mul(left, right), nil
}

// Fibonacci returns the nth Fibonacci number exactly, with F(0) = 0 and
// F(1) = 1. It uses fast doubling and checks ctx once per bit of n.
func Fibonacci(ctx context.Context, n int) (*big.Int, error) {
	a, b := big.NewInt(0), big.NewInt(1) // F(k), F(k+1)
	t := new(big.Int)
	for bit := highBit(n); bit > 0; bit >>= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// F(2k) = F(k) * (2F(k+1) - F(k))
		// F(2k+1) = F(k)^2 + F(k+1)^2
		t.Lsh(b, 1)
		t.Sub(t, a)
		t.Mul(t, a)
		a2 := new(big.Int).Mul(a, a)
		b.Mul(b, b)
		b.Add(b, a2)
		a.Set(t)
		if n&bit != 0 {
			a.Add(a, b)
			a, b = b, a
		}
	}
	return a, nil
}

func highBit(n int) int {
	if n <= 0 {
		return 0
	}
	bit := 1
	for bit <= n>>1 {
		bit <<= 1
	}
	return bit
}

// Mean returns the arithmetic mean of a non-empty slice. If the running sum
// overflows it falls back to an incremental mean.
func Mean(numbers []float64) float64 {
	var sum float64
	for _, f := range numbers {
		sum += f
	}
	if !math.IsInf(sum, 0) {
		return sum / float64(len(numbers))
	}

	var m float64
	for i, f := range numbers {
		m += (f - m) / float64(i+1)
	}
	return m
}
