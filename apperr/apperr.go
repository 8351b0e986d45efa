// Package apperr holds the error taxonomy shared by the HTTP and gRPC surfaces.
// Domain errors wrap one of these sentinels with %w.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("access denied")
	ErrValidation      = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrGateway         = errors.New("payment gateway failure")
	ErrPersistence     = errors.New("persistence failure")
)

// HTTPStatus maps an error to the response code used at the request boundary.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the error message is safe to return to a client.
// Persistence and unclassified errors stay opaque.
func Public(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrGateway)
}

// Error is a domain error with a client-facing message and a taxonomy kind.
type Error struct {
	Kind error
	Msg  string
}

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }
