package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

// ContentTypeJSON is the only header the emitter sets.
var ContentTypeJSON = domain.Header{Name: "content-type", Value: "application/json"}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// SendJSON encodes payload and writes a response-start event followed by a
// response-body event. It does not guard against being called twice for
// the same request.
func SendJSON(ctx context.Context, send ports.Sender, payload any, status int) error {
	body, err := encodeJSON(payload)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	if err := send.Send(ctx, domain.NewResponseStart(status, ContentTypeJSON)); err != nil {
		return fmt.Errorf("send response start: %w", err)
	}
	if err := send.Send(ctx, domain.NewResponseBody(body)); err != nil {
		return fmt.Errorf("send response body: %w", err)
	}
	return nil
}

// SendError writes {"error": message} with the given status.
func SendError(ctx context.Context, send ports.Sender, status int, message string) error {
	return SendJSON(ctx, send, ErrorBody{Error: message}, status)
}

// SendAPIError writes apiErr using its derived status.
func SendAPIError(ctx context.Context, send ports.Sender, apiErr *domain.APIError) error {
	return SendError(ctx, send, apiErr.HTTPStatusCode(), apiErr.Message)
}

// SendNotFound writes the default response for unroutable requests.
func SendNotFound(ctx context.Context, send ports.Sender) error {
	return SendError(ctx, send, http.StatusNotFound, "Not found")
}

func encodeJSON(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
