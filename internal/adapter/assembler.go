package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
)

const invalidJSONMessage = "Invalid JSON payload."

// AssembleBody drains recv until an event reports no more body and returns
// the concatenated chunks. The whole body is buffered; there is no size
// limit. Receive errors, including ctx cancellation, are returned as is.
func AssembleBody(ctx context.Context, recv ports.Receiver) ([]byte, error) {
	var body bytes.Buffer
	for {
		ev, err := recv.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("receive body: %w", err)
		}
		body.Write(ev.Body)
		if !ev.MoreBody {
			return body.Bytes(), nil
		}
	}
}

// DecodeJSONBody assembles the body and decodes it as UTF-8 JSON.
//
// A body that is not valid UTF-8 JSON yields a malformed-input APIError; the
// caller must send it and stop processing the request. The error return is
// reserved for transport failures.
func DecodeJSONBody(ctx context.Context, recv ports.Receiver) (any, *domain.APIError, error) {
	raw, err := AssembleBody(ctx, recv)
	if err != nil {
		return nil, nil, err
	}

	v, apiErr := decodeJSON(raw)
	return v, apiErr, nil
}

func decodeJSON(raw []byte) (any, *domain.APIError) {
	if !utf8.Valid(raw) {
		return nil, domain.ErrMalformed(invalidJSONMessage)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, domain.ErrMalformed(invalidJSONMessage)
	}
	return v, nil
}
