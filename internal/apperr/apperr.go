// Package apperr defines the request-level error taxonomy shared by the
// pipeline, the store, and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput means a required parameter was missing or invalid.
	KindInput
	// KindNotFound means the addressed record does not exist.
	KindNotFound
	// KindUpstream means the generation or search service failed.
	KindUpstream
	// KindMalformedOutput means the service answered but the text was unusable.
	KindMalformedOutput
	// KindStore means a datastore operation failed.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input_validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_service"
	case KindMalformedOutput:
		return "malformed_generation_output"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a classified error. Msg is safe to show to API callers.
type Error struct {
	Kind Kind
	Msg  string
	// Status is the upstream HTTP status for KindUpstream, 0 otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Input returns a KindInput error.
func Input(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Upstream returns a KindUpstream error carrying the upstream status code.
func Upstream(status int, err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Msg: fmt.Sprintf(format, args...), Status: status, Err: err}
}

// Malformed returns a KindMalformedOutput error.
func Malformed(err error, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedOutput, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Store returns a KindStore error.
func Store(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStore, Msg: fmt.Sprintf(format, args...), Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps err onto the status code returned to API callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-safe message for err. Unclassified errors get a
// generic message so internal detail stays in the server log.
func Message(err error) string {
	if e, ok := As(err); ok {
		return e.Msg
	}
	return "internal error"
}
