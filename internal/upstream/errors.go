package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks a response whose body did not have the expected shape.
	ErrDecode = errors.New("unexpected response body")
	// ErrTooLarge marks a response body above the client's byte limit.
	ErrTooLarge = errors.New("response body too large")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Upstream   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Upstream, e.StatusCode)
}

// Temporary reports whether the status suggests the upstream itself is
// struggling rather than rejecting this particular request.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
