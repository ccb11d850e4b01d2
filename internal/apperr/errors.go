// Package apperr is the error taxonomy shared by the booking store, the tool
// dispatcher and the chat session manager.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindInvalidState    Kind = "INVALID_STATE"
	KindInternal        Kind = "INTERNAL"
)

// Error carries a Kind and a message that is safe to show to a caller.
// Err holds the underlying cause and is never exposed outside the process.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, apperr.ErrNotFound) works
// for any not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrInternal        = &Error{Kind: KindInternal}
)

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the Kind of err. Errors outside the taxonomy are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsBusiness reports whether err is an expected business outcome that callers
// recover from locally instead of aborting the request.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindInvalidArgument, KindInvalidState:
		return true
	}
	return false
}

// PublicMessage returns the message that may be shown to a caller.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
