package knowledge

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a client error for retry and escalation logic.
type ErrorKind string

const (
	// KindTransient indicates a temporary failure that may succeed on retry.
	// Examples: network errors, timeouts, HTTP 5xx responses.
	KindTransient ErrorKind = "transient"

	// KindThrottled indicates rate limiting (HTTP 429). Retried, honouring
	// the server's Retry-After header when present.
	KindThrottled ErrorKind = "throttled"

	// KindProtocol indicates an unexpected response shape: invalid JSON, a
	// missing or mistyped field, or an embedded service error. Never retried.
	KindProtocol ErrorKind = "protocol"

	// KindClient indicates a non-retryable HTTP 4xx response (other than 429).
	KindClient ErrorKind = "client"

	// KindPagination indicates the page-count ceiling was exceeded without
	// the server terminating pagination.
	KindPagination ErrorKind = "pagination"
)

// Error is a classified client error.
type Error struct {
	// Kind is the error classification for retry logic.
	Kind ErrorKind

	// Message is the human-readable error message.
	Message string

	// StatusCode is the HTTP status code, if the error came from a response.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// NewProtocolError creates a new protocol error.
func NewProtocolError(message string) *Error {
	return &Error{Kind: KindProtocol, Message: message}
}

// kindOf extracts the classification from an error chain.
func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransient
}

// IsThrottled returns true if the error is classified as throttled.
func IsThrottled(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindThrottled
}

// IsProtocol returns true if the error is classified as a protocol error.
func IsProtocol(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindProtocol
}

// IsClient returns true if the error is a non-retryable client error.
func IsClient(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindClient
}

// IsPagination returns true if the error is a pagination-ceiling error.
func IsPagination(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPagination
}

// IsRetryable returns true if the error can be retried.
// Transient and throttled errors are retryable.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err)
}
