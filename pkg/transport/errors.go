package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError reports a call that never produced a response envelope:
// connection refused, timeouts, resets, malformed HTTP and similar I/O failures.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by a connect or read timeout.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// OperationError is a non-200 response escalated by the caller.
type OperationError struct {
	StatusCode    int
	StatusMessage string
	Body          string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation failed: status %d %s: %s", e.StatusCode, e.StatusMessage, e.Body)
}
