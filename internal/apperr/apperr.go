// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindNotFound
	KindForbidden
	KindValidation
	KindInvalidState
	KindInvalidTransition
	KindSupplierUnavailable
	KindBelowMinimum
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindValidation:
		return "ValidationError"
	case KindInvalidState:
		return "InvalidState"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindSupplierUnavailable:
		return "SupplierUnavailable"
	case KindBelowMinimum:
		return "BelowMinimum"
	case KindConflict:
		return "Conflict"
	}
	return "Internal"
}

// Error carries a caller-facing message. Message is part of the API contract.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string) error { return &Error{Kind: k, Message: msg} }

func Unauthenticated(msg string) error     { return newErr(KindUnauthenticated, msg) }
func NotFound(msg string) error            { return newErr(KindNotFound, msg) }
func Forbidden(msg string) error           { return newErr(KindForbidden, msg) }
func Validation(msg string) error          { return newErr(KindValidation, msg) }
func InvalidState(msg string) error        { return newErr(KindInvalidState, msg) }
func InvalidTransition(msg string) error   { return newErr(KindInvalidTransition, msg) }
func SupplierUnavailable(msg string) error { return newErr(KindSupplierUnavailable, msg) }
func BelowMinimum(msg string) error        { return newErr(KindBelowMinimum, msg) }
func Conflict(msg string) error            { return newErr(KindConflict, msg) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Message returns the caller-facing message for err. Errors outside the
// taxonomy get a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error to its response code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindInvalidState, KindInvalidTransition, KindSupplierUnavailable, KindBelowMinimum:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
