package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error wraps exactly one of them so callers can
// classify with errors.Is regardless of the message.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrProvider      = errors.New("remote provider error")
	ErrConflict      = errors.New("conflict")
)

// Error carries a message that is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return newf(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newf(ErrNotFound, format, args...)
}

func Configurationf(format string, args ...any) error {
	return newf(ErrConfiguration, format, args...)
}

func Providerf(format string, args ...any) error {
	return newf(ErrProvider, format, args...)
}

func Conflictf(format string, args ...any) error {
	return newf(ErrConflict, format, args...)
}

// Message returns the caller-facing message of err if it is an *Error.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, true
	}
	return "", false
}
