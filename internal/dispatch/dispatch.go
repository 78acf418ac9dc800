package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Request describes a single completion call after routing has chosen the
// model. Document carries attached document text, already extracted upstream.
type Request struct {
	ModelID  string
	Provider string
	Prompt   string
	Document string
}

// Result is a normalized provider response.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Dispatcher sends one request to a concrete backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Result, error)
}

// ErrUnknownProvider is returned when no dispatcher is registered for the
// provider named in a routing decision.
var ErrUnknownProvider = errors.New("unknown provider")

// transientError marks failures worth retrying: timeouts, connection
// resets, rate limits and provider-side 5xx responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether a dispatch failure is retryable. Network-level
// timeouts count as transient even when not explicitly wrapped.
func IsTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// statusError converts an HTTP status into a permanent or transient error.
func statusError(status int, body []byte) error {
	err := fmt.Errorf("provider returned status %d: %s", status, truncate(body, 256))
	if status == 429 || status >= 500 {
		return Transient(err)
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
