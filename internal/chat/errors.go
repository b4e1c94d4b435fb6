package chat

import (
	"errors"
)

type Kind string

const (
	KindUnauthorized    Kind = "unauthorized"
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindIntegrity       Kind = "integrity_error"
	KindOperationFailed Kind = "operation_failed"
)

// Error is returned by every Service operation. Message is safe to show to
// clients; Err holds the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ErrUnauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "unauthorized"}
}

func ErrValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func ErrNotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func ErrConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func ErrIntegrity(msg string) *Error {
	return &Error{Kind: KindIntegrity, Message: msg}
}

func ErrOperationFailed(err error) *Error {
	return &Error{Kind: KindOperationFailed, Message: "operation failed", Err: err}
}

func errNotMember() *Error {
	return &Error{Kind: KindNotFound, Message: "not a member of this channel"}
}

// AsError returns err as an *Error, wrapping anything else as an
// operation failure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrOperationFailed(err)
}
