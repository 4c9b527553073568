package store

import (
	"fmt"
	"net/http"

	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
)

// Error is a persistence error with an HTTP status code. Errors derived from
// a sentinel via WithMessage or WithCause still match it with errors.Is, and
// every Error also matches the domain sentinel for its status.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	root *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if d := domainSentinel(e.Code); d != nil {
		errs = append(errs, d)
	}
	return errs
}

// Is matches errors derived from the same sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.origin() == t.origin()
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err, root: e.origin()}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err, root: e.origin()}
}

func (e *Error) origin() *Error {
	if e.root != nil {
		return e.root
	}
	return e
}

func domainSentinel(code int) error {
	switch code {
	case http.StatusNotFound:
		return domainerrors.ErrNotFound
	case http.StatusConflict:
		return domainerrors.ErrConflict
	case http.StatusBadRequest:
		return domainerrors.ErrValidation
	}
	return nil
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	// ErrConflict reports a write that lost a race: a position collision or
	// a database busy with another writer. Callers may retry on a fresh read.
	ErrConflict = &Error{
		Code:    http.StatusConflict,
		Message: "concurrent modification",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}
)
