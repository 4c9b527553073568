package googlebooks

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for catalog operations. Every failure returned by the
// client wraps exactly one of them inside an *Error.
var (
	ErrTimeout     = errors.New("googlebooks: request timed out")
	ErrRateLimited = errors.New("googlebooks: rate limited by server")
	ErrUpstream    = errors.New("googlebooks: upstream error")
	ErrTransport   = errors.New("googlebooks: transport failure")
)

// Error wraps a sentinel with the operation context.
type Error struct {
	Op         string // "search"
	Query      string
	Status     int           // HTTP status when the server answered
	RetryAfter time.Duration // parsed from Retry-After on throttling responses
	Err        error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("googlebooks %s %q: status %d: %v", e.Op, e.Query, e.Status, e.Err)
	}
	return fmt.Sprintf("googlebooks %s %q: %v", e.Op, e.Query, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transport-level failure worth one retry.
// Timeouts, throttling and upstream errors are not transient in this sense.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}

func wrapError(op, query string, status int, err error) error {
	return &Error{Op: op, Query: query, Status: status, Err: err}
}
