// Package api provides error types for file-sharing API responses.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionInvalid indicates the server rejected the bearer credential of an
// authenticated request. The caller must discard local state and log in again.
var ErrSessionInvalid = errors.New("session is no longer valid")

// ErrInvalidCredentials is returned by Login when the username or password is wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrForbidden indicates a server-side role or folder-access denial.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound indicates the requested folder, file or version does not exist.
var ErrNotFound = errors.New("not found")

// RequestError is a failed API call: a non-success status or a transport failure.
// StatusCode is zero for transport failures.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsSessionInvalid reports whether err signals that the session must be torn down.
func IsSessionInvalid(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}

// IsForbidden reports whether err is a server-side permission denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// statusError maps a non-success status onto a RequestError.
// authenticated distinguishes a login failure from an expired session.
func statusError(op string, status int, message string, authenticated bool) *RequestError {
	re := &RequestError{Op: op, StatusCode: status, Message: message}
	switch status {
	case http.StatusUnauthorized:
		if authenticated {
			re.Err = ErrSessionInvalid
		} else {
			re.Err = ErrInvalidCredentials
		}
	case http.StatusForbidden:
		re.Err = ErrForbidden
	case http.StatusNotFound:
		re.Err = ErrNotFound
	}
	return re
}
