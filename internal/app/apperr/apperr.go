// Package apperr defines the error kinds surfaced by the service and the
// policy for mapping them to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindUpstream
	KindStorage
	KindRender
)

// Error carries a kind, a client-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFoundf builds a NotFound error with a formatted message.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Upstream wraps a failure talking to an external data source. The source
// name is part of the client-visible message.
func Upstream(source string, err error) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("Could not fetch data from %s", source),
		Err:     err,
	}
}

// Storage wraps a relational-store failure. Detail stays server-side.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: "Internal server error", Err: err}
}

// Render wraps a summary-image generation failure.
func Render(err error) *Error {
	return &Error{Kind: KindRender, Message: "Image generation failed", Err: err}
}

// Internal wraps any other failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to its response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the body text safe to expose to callers. NotFound,
// validation and upstream errors include detail; everything else stays
// generic so internal error text never leaks.
func ClientMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal server error"
	}
	switch e.Kind {
	case KindNotFound, KindValidation:
		return e.Message
	case KindUpstream:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	case KindRender:
		return e.Message
	default:
		return "Internal server error"
	}
}
