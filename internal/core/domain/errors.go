package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the bearer token was missing or rejected
	ErrUnauthenticated = errors.New("unauthenticated: access token missing or invalid")

	// ErrQuotaExceeded means usage-time quota is exhausted
	ErrQuotaExceeded = errors.New("assignment denied: usage time quota exceeded")

	// ErrDenylisted means the account cannot obtain runtimes
	ErrDenylisted = errors.New("assignment denied: account denylisted")

	// ErrBusy rejects a second execution on a session that already has one in flight
	ErrBusy = errors.New("session busy: an execution is already in flight")

	// ErrTransportLost means the kernel WebSocket closed unexpectedly
	ErrTransportLost = errors.New("transport lost: kernel connection closed unexpectedly")

	// ErrSessionClosed rejects operations on a closed session
	ErrSessionClosed = errors.New("session closed")
)

// HTTPError is a non-2xx response from an upstream service
type HTTPError struct {
	StatusCode int
	StatusText string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s from %s: %s", e.StatusCode, e.StatusText, e.URL, e.Body)
}

// Retryable reports whether the failure is worth another attempt
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// SchemaError is a response that parsed but did not match expectations
type SchemaError struct {
	Err     error
	URL     string
	Payload string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected response shape from %s: %v (payload: %s)", e.URL, e.Err, e.Payload)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// QuotaDeniedError carries the variant that was refused
type QuotaDeniedError struct {
	Variant Variant
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("assignment denied: quota denied for variant %s", e.Variant)
}

// AssignmentFailedError is any non-success outcome without a dedicated error
type AssignmentFailedError struct {
	Outcome Outcome
}

func (e *AssignmentFailedError) Error() string {
	return fmt.Sprintf("assignment failed with outcome %s", e.Outcome)
}

// ProtocolError is a malformed Jupyter wire message
type ProtocolError struct {
	Err    error
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
