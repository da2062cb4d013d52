package api

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a provider error.
type ErrorKind string

const (
	// ErrorKindTransport is a network-level failure before any HTTP
	// status was received. Eligible for retry.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindRequest is a fatal request failure: a non-2xx status the
	// retry policy did not recognize as transient, or a decode failure
	// of a well-formed but unexpected body.
	ErrorKindRequest ErrorKind = "request_failed"

	// ErrorKindStreamDecode is a malformed frame inside an event stream.
	ErrorKindStreamDecode ErrorKind = "stream_decode"

	// ErrorKindIncompleteStream is an end-of-stream without a terminal
	// message_stop event.
	ErrorKindIncompleteStream ErrorKind = "incomplete_stream"

	// ErrorKindConfiguration is a missing or malformed credential,
	// raised at adapter construction.
	ErrorKindConfiguration ErrorKind = "configuration"
)

// ProviderError is the typed error surfaced by all provider calls. It
// carries enough context (status code, body excerpt) for diagnosis.
type ProviderError struct {
	Kind    ErrorKind
	Message string

	// Status is the HTTP status code when one was received, 0 otherwise.
	Status int

	// Body is an excerpt of the backend's error body, when available.
	Body string

	// Err is the underlying cause, when one exists.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s: %s (status %d: %s)", e.Kind, e.Message, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a network-level failure.
func NewTransportError(err error) *ProviderError {
	return &ProviderError{
		Kind:    ErrorKindTransport,
		Message: "backend connection error",
		Err:     err,
	}
}

// NewRequestError creates a fatal request failure with status/body context.
func NewRequestError(status int, message, body string) *ProviderError {
	return &ProviderError{
		Kind:    ErrorKindRequest,
		Message: message,
		Status:  status,
		Body:    body,
	}
}

// NewDecodeError creates a request failure for a well-formed HTTP response
// whose body could not be decoded.
func NewDecodeError(message string, err error) *ProviderError {
	return &ProviderError{
		Kind:    ErrorKindRequest,
		Message: message,
		Err:     err,
	}
}

// NewStreamDecodeError creates an error for a malformed stream frame.
func NewStreamDecodeError(message string, err error) *ProviderError {
	return &ProviderError{
		Kind:    ErrorKindStreamDecode,
		Message: message,
		Err:     err,
	}
}

// NewIncompleteStreamError creates an error for a stream that ended
// without its terminal event.
func NewIncompleteStreamError() *ProviderError {
	return &ProviderError{
		Kind:    ErrorKindIncompleteStream,
		Message: "stream ended before message_stop",
	}
}

// NewConfigurationError creates an error for invalid adapter construction.
func NewConfigurationError(message string) *ProviderError {
	return &ProviderError{
		Kind:    ErrorKindConfiguration,
		Message: message,
	}
}

// AsProviderError extracts a *ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
