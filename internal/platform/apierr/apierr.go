// Package apierr describes failures raised at the HTTP edge before a service runs:
// missing credentials, wrong role, unparseable input.
package apierr

import "net/http"

type Error struct {
	Status int
	Code   string
	// Reason narrows Code for clients, e.g. unauthorized/token_expired.
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Reason != "":
		return e.Code + "/" + e.Reason
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// WithReason returns a copy tagged with reason.
func (e *Error) WithReason(reason string) *Error {
	out := *e
	out.Reason = reason
	return &out
}

func BadRequest(err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation", Reason: "invalid_argument", Err: err}
}

func Unauthorized(err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Err: err}
}

func Forbidden(err error) *Error {
	return &Error{Status: http.StatusForbidden, Code: "forbidden", Err: err}
}
