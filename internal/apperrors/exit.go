package apperrors

import (
	"errors"
)

// Process exit codes returned by slopectl.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitTimeout    = 3
	ExitJobFailed  = 4
)

// ExitCode maps an error to the process exit code.
// Timeouts get their own code so callers can resume waiting later.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrTimeout):
		return ExitTimeout
	case errors.Is(err, ErrJobFailed):
		return ExitJobFailed
	default:
		return ExitFailure
	}
}

// StatusCode returns the HTTP status carried by err, or 0 if none.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 0
}
