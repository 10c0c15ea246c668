package shippo

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeMissingParameter   = "MISSING_PARAMETER"
	CodeTransport          = "TRANSPORT"
	CodeUnexpectedStatus   = "UNEXPECTED_STATUS"
	CodeDecode             = "DECODE"
)

// Error represents a failed Shippo operation.
type Error struct {
	Op         string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("shippo %s (%s): %s: %v", e.Op, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("shippo %s (%s): %s", e.Op, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, or the sentinel for this error's code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return target == sentinelFor(e.Code)
}

// NewError creates a new Error.
func NewError(op, code, message string) *Error {
	return &Error{
		Op:      op,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// Sentinel errors, one per failure class.
var (
	// ErrMissingCredentials indicates the API URL or key is not configured.
	ErrMissingCredentials = errors.New("api credentials are missing")

	// ErrMissingParameter indicates a required identifier was empty; no request was sent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("transport failure")

	// ErrUnexpectedStatus indicates the provider answered, but not with the expected
	// status (GET or PUT other than 200) or object (a created merchant without an id).
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrDecode indicates the response body was not valid JSON.
	ErrDecode = errors.New("invalid response body")
)

func sentinelFor(code string) error {
	switch code {
	case CodeMissingCredentials:
		return ErrMissingCredentials
	case CodeMissingParameter:
		return ErrMissingParameter
	case CodeTransport:
		return ErrTransport
	case CodeUnexpectedStatus:
		return ErrUnexpectedStatus
	case CodeDecode:
		return ErrDecode
	default:
		return nil
	}
}

func missingParameter(op string, params ...string) *Error {
	return NewError(op, CodeMissingParameter, fmt.Sprintf("missing %v", params))
}

// IsNoData reports whether err means nothing was sent to the provider
// (missing credentials or a missing required parameter).
func IsNoData(err error) bool {
	return errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrMissingParameter)
}
