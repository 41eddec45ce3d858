package domain

import "errors"

// Error kinds. Every failure surfaced to a caller wraps exactly one of these.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("session expired")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error carries a caller-facing message together with its kind
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError creates an error of the given kind
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Well-known errors returned by more than one layer
var (
	ErrInvalidCredentials = NewError(ErrUnauthorized, "invalid credentials")
	ErrAdminCodeTaken     = NewError(ErrConflict, "admin code already in use")
	ErrUsernameTaken      = NewError(ErrConflict, "username already exists")
	ErrEmailTaken         = NewError(ErrConflict, "email already exists")
	ErrForeignEmployee    = NewError(ErrForbidden, "you can only assign tasks to your own employees")
	ErrAlreadyEmployee    = NewError(ErrConflict, "this user is already added as an employee")
	ErrIdentityNotInScope = NewError(ErrNotFound, "user not found, the user must register with your admin code first")
)

// KindOf returns the kind of err, or nil if err is not a domain error
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrUnauthorized, ErrExpired, ErrForbidden, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// MessageOf returns the caller-facing message of a domain error
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if kind := KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal server error"
}
