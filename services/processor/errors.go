package processor

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// APIError is a processor 4xx/5xx normalized through the classifier. The
// message is always customer-safe.
type APIError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	// RawID is the processor-side object id carried on the error body,
	// when one was present. Informational only.
	RawID string
	// RawMessage keeps the processor's own error text for internal
	// recovery paths (duplicate-card id extraction). It must never be
	// surfaced to a customer and is logged only through the sanitizer.
	RawMessage string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("processor error %s (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// TransportError wraps a network-level failure: the call never produced a
// processor response.
type TransportError struct {
	Op       string
	Timeout  bool
	Canceled bool
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Canceled:
		return fmt.Sprintf("processor %s canceled: %v", e.Op, e.Err)
	case e.Timeout:
		return fmt.Sprintf("processor %s timed out: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("processor %s failed: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(op string, err error) *TransportError {
	te := &TransportError{Op: op, Err: err}
	if errors.Is(err, context.Canceled) {
		te.Canceled = true
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		te.Timeout = true
		return te
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		te.Timeout = true
	}
	return te
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
