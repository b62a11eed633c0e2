package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("modelId", "model ID is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "model ID is required" {
		t.Errorf("expected message 'model ID is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "modelId" {
		t.Errorf("expected field 'modelId', got %q", appErr.Field)
	}
}

func TestTransport(t *testing.T) {
	t.Parallel()
	err := Transport("POST /DataTables", 400, `{"error":"bad sheet"}`)

	if !errors.Is(err, ErrTransport) {
		t.Error("expected error to match ErrTransport")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "bad sheet") {
		t.Errorf("expected status and body in message, got %q", err.Error())
	}
	if StatusCode(err) != 400 {
		t.Errorf("expected status 400, got %d", StatusCode(err))
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()
	err := Decode("/Authorize", fmt.Errorf("unexpected EOF"))

	if !errors.Is(err, ErrDecode) {
		t.Error("expected error to match ErrDecode")
	}
	if !strings.Contains(err.Error(), "/Authorize") {
		t.Errorf("expected endpoint in message, got %q", err.Error())
	}
}

func TestSubmit_KeepsTransportDetails(t *testing.T) {
	t.Parallel()
	cause := Transport("POST /Projections/7/run", 409, "already running")
	err := Submit("projection 7", cause)

	if !errors.Is(err, ErrSubmit) {
		t.Error("expected error to match ErrSubmit")
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("expected cause to stay reachable")
	}
	if !strings.Contains(err.Error(), "projection 7") || !strings.Contains(err.Error(), "already running") {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.StatusCode != 409 || appErr.Body != "already running" {
		t.Errorf("expected transport details copied, got %d %q", appErr.StatusCode, appErr.Body)
	}
}

func TestJobFailed(t *testing.T) {
	t.Parallel()
	err := JobFailed("report generation g-1", "element not found")

	if !errors.Is(err, ErrJobFailed) {
		t.Error("expected error to match ErrJobFailed")
	}
	if !strings.Contains(err.Error(), "element not found") {
		t.Errorf("expected remote message, got %q", err.Error())
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()
	err := Timeout("projection 9", 1500*time.Millisecond)

	if !errors.Is(err, ErrTimeout) {
		t.Error("expected error to match ErrTimeout")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout must not be confused with context deadline")
	}
	if err.Error() != "timed out after 1.5s waiting for projection 9" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestProbe_WrapsCause(t *testing.T) {
	t.Parallel()
	cause := Transport("GET /Projections/3", 404, "")
	err := Probe("projection 3", cause)

	if !errors.Is(err, ErrProbe) || !errors.Is(err, ErrTransport) {
		t.Error("expected probe error to match both ErrProbe and ErrTransport")
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, ExitOK},
		{"validation", Validation("id", "required"), ExitValidation},
		{"timeout", Timeout("job", time.Second), ExitTimeout},
		{"job failed", JobFailed("job", "boom"), ExitJobFailed},
		{"transport", Transport("GET /x", 500, ""), ExitFailure},
		{"decode", Decode("/x", fmt.Errorf("bad")), ExitFailure},
		{"wrapped timeout", fmt.Errorf("wait: %w", Timeout("job", time.Second)), ExitTimeout},
		{"unknown error", fmt.Errorf("unknown"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExitCode(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := Validation("id", "required")
	wrapped := fmt.Errorf("plan error: %w", original)
	doubleWrapped := fmt.Errorf("run error: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrValidation) {
		t.Error("expected errors.Is to find ErrValidation through multiple wraps")
	}
}
