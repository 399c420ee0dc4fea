// Package apperrors holds the error taxonomy shared by the record store,
// the upstream clients, the resolver and the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for translation at the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindValidation
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified failure. Status is the upstream status code for
// KindUpstream (0 when the request never got a response) and Detail is an
// optional payload shown to the client, typically the upstream body.
type Error struct {
	Kind   Kind
	Msg    string
	Status int
	Detail any
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return e.Msg + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error onto the status returned to the caller.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		// pass through upstream error codes; transport failures and odd
		// statuses become 502, not 500
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Unauthenticated reports a missing, invalid or expired credential.
func Unauthenticated(msg string, err error) error {
	return &Error{Kind: KindAuthentication, Msg: msg, Err: err}
}

// Validation reports a request the caller must fix.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// NotFound reports an absent record, join row or upstream entity.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// NotFoundf is NotFound with formatting.
func NotFoundf(format string, a ...any) error {
	return NotFound(fmt.Sprintf(format, a...))
}

// Upstream reports a non-2xx answer from an external system. body is the
// upstream response text, kept for diagnosability.
func Upstream(msg string, status int, body string) error {
	e := &Error{Kind: KindUpstream, Msg: msg, Status: status}
	if body != "" {
		e.Detail = body
	}
	return e
}

// Transport reports an external system that could not be reached at all.
func Transport(msg string, err error) error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when unclassified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is classified as KindNotFound.
func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// IsAuthentication reports whether err is classified as KindAuthentication.
func IsAuthentication(err error) bool { return err != nil && KindOf(err) == KindAuthentication }

// IsValidation reports whether err is classified as KindValidation.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsUpstream reports whether err is classified as KindUpstream.
func IsUpstream(err error) bool { return err != nil && KindOf(err) == KindUpstream }
