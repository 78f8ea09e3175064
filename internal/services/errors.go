package services

import "errors"

// Error kinds. Handlers map these to HTTP statuses.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrStatusChanged      = errors.New("task status changed concurrently")
)

// Error carries a client-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func validation(msg string) error { return newError(ErrValidation, msg) }
func forbidden(msg string) error  { return newError(ErrForbidden, msg) }
func notFound(msg string) error   { return newError(ErrNotFound, msg) }
func conflict(msg string) error   { return newError(ErrConflict, msg) }
