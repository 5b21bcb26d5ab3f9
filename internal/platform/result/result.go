// Package result defines the uniform outcome returned by every CRM action and
// the error taxonomy that feeds it. Services return *Error values for expected
// failures (missing session, invalid input, ownership, not found, upstream I/O)
// and handlers render them through Failed so that only the public message ever
// reaches the client.
package result

import (
	"errors"
	"net/http"
)

// Kind classifies an action failure.
type Kind int

const (
	KindUpstream Kind = iota
	KindUnauthenticated
	KindValidation
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "upstream"
	}
}

// HTTPStatus maps a kind to the status code used by the JSON API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GenericMessage is returned for failures that carry no public message.
const GenericMessage = "Something went wrong Try again"

// Error is a classified action failure. Message is safe to show to the
// caller; Err is the diagnostic cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message, nil)
}

func Invalid(message string, cause error) *Error {
	return New(KindValidation, message, cause)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Upstream(message string, cause error) *Error {
	return New(KindUpstream, message, cause)
}

// KindOf returns the kind of err, treating unclassified errors as upstream.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Status returns the HTTP status for err.
func Status(err error) int {
	return KindOf(err).HTTPStatus()
}

// Result is the de facto wire contract between the API and its front end.
// Entity specific payloads embed it so the JSON stays flat:
//
//	{"success": true, "message": "...", "error": null, "patient": {...}}
type Result struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
	Error   *string `json:"error"`
}

// OK builds a successful result.
func OK(message string) Result {
	return Result{Success: true, Message: &message}
}

// Failed builds a failed result from err. Only the public message of a
// classified error is exposed.
func Failed(err error) Result {
	msg := GenericMessage
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	return Result{Success: false, Error: &msg}
}

// Fail builds a failed result carrying message as is.
func Fail(message string) Result {
	return Result{Success: false, Error: &message}
}
