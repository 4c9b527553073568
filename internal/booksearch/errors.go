package booksearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/ratelimit"
)

// ErrSearchFailed marks a fetch failure that left no earlier stage results
// to fall back on. Primary-stage failures match it.
var ErrSearchFailed = errors.New("search failed")

// Fetch failures. Each unwraps to both its cause and the matching domain
// sentinel, so errors.Is works against either taxonomy.

// TimeoutError reports a fetch that exceeded its budget.
type TimeoutError struct {
	Stage Stage
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s fetch timed out: %v", e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() []error { return unwrapFetch(e.Stage, e.Err, domainerrors.ErrTimeout) }

// RateLimitError reports a fetch refused by the upstream or the local quota.
type RateLimitError struct {
	Stage Stage
	Err   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s fetch rate limited: %v", e.Stage, e.Err)
}

func (e *RateLimitError) Unwrap() []error {
	return unwrapFetch(e.Stage, e.Err, domainerrors.ErrRateLimited)
}

// UpstreamError reports an unavailable source or an unusable payload.
type UpstreamError struct {
	Stage Stage
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return unwrapFetch(e.Stage, e.Err, domainerrors.ErrUpstream) }

func unwrapFetch(stage Stage, cause, sentinel error) []error {
	if stage == StagePrimary {
		return []error{cause, sentinel, ErrSearchFailed}
	}
	return []error{cause, sentinel}
}

// classify maps a source or quota error onto the fetch failure types.
func classify(stage Stage, err error) error {
	switch {
	case errors.Is(err, googlebooks.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Stage: stage, Err: err}
	case errors.Is(err, googlebooks.ErrRateLimited), errors.Is(err, ratelimit.ErrExhausted):
		return &RateLimitError{Stage: stage, Err: err}
	default:
		return &UpstreamError{Stage: stage, Err: err}
	}
}
