package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport boundary. Handlers map kinds to
// HTTP status codes, services never deal with statuses directly.
type Kind int

const (
	Failure Kind = iota
	Unexpected
	Validation
	Conflict
	NotFound
	Unauthorized
	Forbidden
	Custom
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NewValidation(code, message string) *Error {
	return New(Validation, code, message)
}

func NewNotFound(code, message string) *Error {
	return New(NotFound, code, message)
}

func NewConflict(code, message string) *Error {
	return New(Conflict, code, message)
}

// Wrap tags an unexpected underlying failure (store unavailable and the like)
// so it surfaces as a 500 at the boundary while keeping the cause for logs.
func Wrap(code string, err error) *Error {
	return &Error{Kind: Unexpected, Code: code, Message: "unexpected failure", Err: err}
}

// KindOf reports the kind of err, or Unexpected if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// HTTPStatus maps an error kind to a transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
