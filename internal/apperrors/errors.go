// Package apperrors provides structured client errors classified by sentinel.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("transport error")
	ErrDecode     = errors.New("decode error")
	ErrSubmit     = errors.New("job submission error")
	ErrProbe      = errors.New("status probe error")
	ErrJobFailed  = errors.New("job failed")
	ErrTimeout    = errors.New("timed out")
)

// Error provides structured error with context.
type Error struct {
	Sentinel   error  // Wrapped sentinel for errors.Is() classification
	Message    string // Human-readable message
	Field      string // For validation errors (e.g., "modelId")
	Resource   string // Remote resource involved (e.g., "projection 42")
	Op         string // Operation that failed (e.g., "POST /DataTables")
	StatusCode int    // HTTP status for transport errors
	Body       string // Response body surfaced as diagnostic text
	Cause      error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the cause so both stay reachable via errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Transport creates an error for a non-success HTTP status.
func Transport(op string, statusCode int, body string) error {
	msg := fmt.Sprintf("%s: unexpected status %d", op, statusCode)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &Error{
		Sentinel:   ErrTransport,
		Message:    msg,
		Op:         op,
		StatusCode: statusCode,
		Body:       body,
	}
}

// Request creates a transport error for a request that never got a response.
func Request(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransport,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Decode creates an error for a success response whose body has the wrong shape.
func Decode(endpoint string, cause error) error {
	return &Error{
		Sentinel: ErrDecode,
		Message:  fmt.Sprintf("invalid JSON from endpoint %s: %v", endpoint, cause),
		Op:       endpoint,
		Cause:    cause,
	}
}

// Submit creates an error for a job that could not be started.
func Submit(resource string, cause error) error {
	e := &Error{
		Sentinel: ErrSubmit,
		Message:  fmt.Sprintf("failed to start %s: %v", resource, cause),
		Resource: resource,
		Cause:    cause,
	}
	e.copyResponse(cause)
	return e
}

// Probe creates an error for a status probe that failed while polling.
func Probe(resource string, cause error) error {
	e := &Error{
		Sentinel: ErrProbe,
		Message:  fmt.Sprintf("status probe for %s failed: %v", resource, cause),
		Resource: resource,
		Cause:    cause,
	}
	e.copyResponse(cause)
	return e
}

// JobFailed creates an error for a job that reached a failed terminal state.
func JobFailed(resource, message string) error {
	return &Error{
		Sentinel: ErrJobFailed,
		Message:  fmt.Sprintf("%s failed: %s", resource, message),
		Resource: resource,
	}
}

// Timeout creates an error for polling that exceeded its maximum wait.
func Timeout(resource string, waited time.Duration) error {
	return &Error{
		Sentinel: ErrTimeout,
		Message:  fmt.Sprintf("timed out after %s waiting for %s", waited.Round(time.Millisecond), resource),
		Resource: resource,
	}
}

// copyResponse lifts the HTTP status and body of a wrapped error.
func (e *Error) copyResponse(cause error) {
	var appErr *Error
	if errors.As(cause, &appErr) {
		e.StatusCode = appErr.StatusCode
		e.Body = appErr.Body
	}
}
