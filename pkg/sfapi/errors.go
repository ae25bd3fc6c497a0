package sfapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Static errors for err113 compliance.
var (
	ErrInvalidID             = errors.New("invalid record ID")
	ErrRecordExists          = errors.New("cannot create a record that already has an ID")
	ErrRecordDoesNotExist    = errors.New("cannot perform this operation on a record without an ID")
	ErrCollectionTooLarge    = errors.New("collection exceeds the per-call record limit")
	ErrCollectionEmpty       = errors.New("collection contains no records")
	ErrMixedObjectTypes      = errors.New("collection records must share one object type")
	ErrCannotRefresh         = errors.New("credential source cannot refresh")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrResponseBodyExpected  = errors.New("a response body was expected but is not present")
	ErrReferenceOutsideBatch = errors.New("a composite reference is only valid inside a composite batch")
	ErrIteratorExhausted     = errors.New("no more records")
	ErrConfigRequired        = errors.New("config is required")
	ErrLoginURLRequired      = errors.New("login URL is required")
	ErrNoCredentials         = errors.New("no valid credentials available")
	ErrDuplicateReferenceID  = errors.New("duplicate composite reference ID")
)

// ErrorDetail is one structured error entry returned by the API.
//
// The sObject Rows endpoints report the code under errorCode while the
// Collections endpoints use statusCode; Code returns whichever is set.
type ErrorDetail struct {
	Message    string   `json:"message"              yaml:"message"`
	ErrorCode  string   `json:"errorCode,omitempty"  yaml:"errorCode,omitempty"`
	StatusCode string   `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Fields     []string `json:"fields,omitempty"     yaml:"fields,omitempty"`
}

// Code returns the error code regardless of which wire field carried it.
func (e *ErrorDetail) Code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}

	return e.StatusCode
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	code := e.Code()
	if code == "" {
		code = "UNKNOWN_ERROR"
	}

	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (fields: %s)", code, e.Message, strings.Join(e.Fields, ", "))
	}

	return fmt.Sprintf("%s: %s", code, e.Message)
}

// APIError is a structured application-level rejection: a non-2xx response
// carrying the service's error array. It is never retried automatically.
type APIError struct {
	StatusCode int           `json:"-"`
	Errors     []ErrorDetail `json:"errors"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("API error (HTTP %d)", e.StatusCode)
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	return fmt.Sprintf("multiple API errors (HTTP %d): %v", e.StatusCode, e.Errors)
}

// First returns the first error detail, or nil.
func (e *APIError) First() *ErrorDetail {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// AuthError means a credential could not be obtained or refreshed. It is
// fatal to the operation; the dispatcher never retries past the single
// expiry-triggered refresh.
type AuthError struct {
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

// Unwrap supports errors.Is/As chains.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport or connection level failure. Retrying with
// backoff is the caller's responsibility.
type NetworkError struct {
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap supports errors.Is/As chains.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError means the response shape violates the documented contract,
// such as a Collections response whose length does not match the request.
// Always fatal; indicates a compatibility break, never a data error.
type ProtocolError struct {
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Message
}

// InvalidStateError reports an operation attempted against a bulk job in a
// state that does not permit it.
type InvalidStateError struct {
	Op    string
	State BulkJobState
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a job in state %s", e.Op, e.State)
}

// Error codes with dedicated handling.
const (
	// ErrorCodeInvalidSession is the distinguished expiry signal: paired
	// with HTTP 401 it triggers exactly one refresh-and-replay in the
	// dispatcher.
	ErrorCodeInvalidSession = "INVALID_SESSION_ID"

	ErrorCodeNotFound = "NOT_FOUND"
)

// IsSessionExpired reports whether err is the service's credential-expiry
// signal, as opposed to an ordinary application-level 401.
func IsSessionExpired(err error) bool {
	apiErr := &APIError{}
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.StatusCode != 401 {
		return false
	}

	for i := range apiErr.Errors {
		if apiErr.Errors[i].Code() == ErrorCodeInvalidSession {
			return true
		}
	}

	return false
}

// IsNotFound checks if the error is a not-found rejection.
func IsNotFound(err error) bool {
	apiErr := &APIError{}
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.StatusCode == 404 {
		return true
	}

	first := apiErr.First()

	return first != nil && first.Code() == ErrorCodeNotFound
}

// ParseAPIError decodes the service's error array from a response body.
// The service returns a bare JSON array for most endpoints.
func ParseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	if len(body) == 0 {
		return apiErr
	}

	if err := json.Unmarshal(body, &apiErr.Errors); err != nil {
		// Not the documented shape; preserve the raw body as the message.
		apiErr.Errors = []ErrorDetail{{Message: string(body)}}
	}

	return apiErr
}
