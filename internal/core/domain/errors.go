// Package domain provides the canonical request, event and error types
// shared by the adapter, its hosts and its collaborators.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeMalformed indicates input that cannot be parsed into the expected shape.
	ErrorTypeMalformed ErrorType = "malformed_input"

	// ErrorTypeInvalid indicates input that parses but violates a domain constraint.
	ErrorTypeInvalid ErrorType = "invalid_input"

	// ErrorTypeNotFound indicates no route or resource matched.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeMethodNotAllowed indicates the method is not served by any route.
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

var (
	// ErrProtocolViolation is returned by senders when response events arrive
	// out of phase order (body before start, or a second start or body).
	ErrProtocolViolation = errors.New("response events out of order")

	// ErrChannelClosed is returned when an endpoint of a channel pair is used
	// after it has been closed.
	ErrChannelClosed = errors.New("channel closed")

	// ErrExchangeNotFound is returned by stores for unknown exchange ids.
	ErrExchangeNotFound = errors.New("exchange not found")
)

// APIError describes a client-facing failure. It is the error half of every
// validation and routing result; the adapter renders it as {"error": Message}.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Param is the parameter that caused the error (if applicable)
	Param string `json:"param,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Param, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeMalformed:
		return http.StatusUnprocessableEntity
	case ErrorTypeInvalid:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// ErrMalformed creates a malformed input error (422).
func ErrMalformed(message string) *APIError {
	return NewAPIError(ErrorTypeMalformed, message)
}

// ErrInvalid creates a semantically invalid input error (400).
func ErrInvalid(message string) *APIError {
	return NewAPIError(ErrorTypeInvalid, message)
}

// ErrNotFound creates a not found error (404).
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrMethodNotAllowed creates a method not allowed error (405).
func ErrMethodNotAllowed(message string) *APIError {
	return NewAPIError(ErrorTypeMethodNotAllowed, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}
