package search

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUnavailable marks transport-level failures (connection refused, DNS).
var ErrUnavailable = errors.New("search: cluster unavailable")

// ErrTimeout marks requests that exceeded their deadline.
var ErrTimeout = errors.New("search: request timed out")

// BadQueryError is returned when the cluster rejects the request body (4xx).
// These are never retried; the query itself must be fixed.
type BadQueryError struct {
	StatusCode int
	Reason     string
}

func (e *BadQueryError) Error() string {
	return fmt.Sprintf("search: query rejected (status %d): %s", e.StatusCode, e.Reason)
}

// classify wraps a raw transport error into the package taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// IsRetryable reports whether the error is transient and worth one retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}
