// Package apperr classifies failures of the trust engine and maps them to
// the outward status code and message. Detail stays server side.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Authentication
	Unauthorized
	Forbidden
	Csrf
	TokenInvalid
	Configuration
	InvalidInput
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Authentication:
		return "authentication"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Csrf:
		return "csrf"
	case TokenInvalid:
		return "token_invalid"
	case Configuration:
		return "configuration"
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a Kind next to the internal message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches kind to err. A nil err stays nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Status(kind Kind) int {
	switch kind {
	case Authentication, Unauthorized:
		return http.StatusUnauthorized
	case Forbidden, Csrf:
		return http.StatusForbidden
	case TokenInvalid, InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the only text a client ever sees for a failure kind.
func PublicMessage(kind Kind) string {
	switch kind {
	case Authentication:
		return "invalid credentials"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Csrf:
		return "csrf validation failed"
	case TokenInvalid:
		return "invalid or expired token"
	case InvalidInput:
		return "invalid request"
	case NotFound:
		return "not found"
	case Conflict:
		return "conflict"
	default:
		return "server error"
	}
}
