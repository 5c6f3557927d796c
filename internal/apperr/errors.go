// Package apperr is the application error taxonomy. Every failure that reaches
// the HTTP boundary is rendered from an *Error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

type Kind string

const (
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindUpstream    Kind = "upstream"
	KindGeneric     Kind = "generic"
	KindRateLimited Kind = "rate_limited"
)

// Error is a tagged application error. Status is always the HTTP status it renders with.
type Error struct {
	Kind    Kind
	Message string
	Status  int

	// UpstreamStatus is the CRM's HTTP status when the failure came from an upstream response.
	UpstreamStatus int

	cause error
	stack error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Stack returns the stack captured when the error was created.
func (e *Error) Stack() string {
	if e.stack == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.stack)
}

func newError(kind Kind, status int, msg string, cause error) *Error {
	var stack error
	if cause == nil {
		stack = pkgerrors.New(msg)
	} else {
		stack = pkgerrors.WithStack(cause)
	}
	return &Error{Kind: kind, Message: msg, Status: status, cause: cause, stack: stack}
}

func Auth(msg string) *Error {
	return newError(KindAuth, http.StatusUnauthorized, msg, nil)
}

func Validation(msg string) *Error {
	return newError(KindValidation, http.StatusBadRequest, msg, nil)
}

// Upstream wraps a CRM failure. upstreamStatus is passed through when it is an
// HTTP error status; anything else renders as 500.
func Upstream(msg string, upstreamStatus int, cause error) *Error {
	status := http.StatusInternalServerError
	if upstreamStatus >= 400 && upstreamStatus <= 599 {
		status = upstreamStatus
	}
	e := newError(KindUpstream, status, msg, cause)
	e.UpstreamStatus = upstreamStatus
	return e
}

func Generic(msg string, cause error) *Error {
	return newError(KindGeneric, http.StatusInternalServerError, msg, cause)
}

func RateLimited(msg string) *Error {
	return newError(KindRateLimited, http.StatusTooManyRequests, msg, nil)
}

// From classifies any error. Unknown errors become Generic with their own message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Generic(err.Error(), err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
