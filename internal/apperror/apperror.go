package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller. Handlers map kinds to HTTP statuses.
type Kind string

const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindDuplicateRequest Kind = "DUPLICATE_REQUEST"
	KindAlreadyFriends   Kind = "ALREADY_FRIENDS"
	KindForbidden        Kind = "FORBIDDEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindInvalidState     Kind = "INVALID_STATE"
	KindScheduleConflict Kind = "SCHEDULE_CONFLICT"
	KindAlreadyExists    Kind = "ALREADY_EXISTS"
	KindStore            Kind = "STORE_ERROR"
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any *AppError of the same kind, so errors.Is(err, apperror.New(KindNotFound, ""))
// works regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
	}
}

func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Store wraps a persistence failure with the name of the operation that hit it.
func Store(err error, op string) *AppError {
	return Wrap(err, KindStore, "failed to "+op)
}

func Validation(message string) *AppError {
	return New(KindValidation, message)
}

func Forbidden(message string) *AppError {
	return New(KindForbidden, message)
}

func NotFound(message string) *AppError {
	return New(KindNotFound, message)
}

// KindOf returns the kind of the first *AppError in err's chain, or KindStore for
// anything unclassified.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
