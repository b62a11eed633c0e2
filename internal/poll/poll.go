// Package poll waits for remote jobs to reach a terminal state.
//
// A Poller checks status immediately, then sleeps a fixed interval between
// checks until the classifier reports a terminal phase or the optional
// timeout elapses. The remote job is never cancelled; a timeout only stops
// the local wait.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"slopectl/internal/apperrors"
	"slopectl/internal/observability"
)

// Phase is the classification of one observed status.
type Phase int

const (
	Pending Phase = iota
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Verdict classifies a status. Message carries the remote failure text.
type Verdict struct {
	Phase   Phase
	Message string
}

// CheckFunc fetches the current status of a job.
type CheckFunc[S any] func(ctx context.Context) (S, error)

// ClassifyFunc maps a status to a verdict.
type ClassifyFunc[S any] func(status S) Verdict

// Config controls polling cadence. Zero Timeout waits indefinitely.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poller waits for one job.
type Poller[S any] struct {
	kind     string // e.g. "projection", "report"
	resource string // e.g. "projection 42"
	check    CheckFunc[S]
	classify ClassifyFunc[S]
	cfg      Config

	metrics *observability.Metrics
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes a Poller.
type Option[S any] func(*Poller[S])

// WithMetrics records checks and outcomes.
func WithMetrics[S any](m *observability.Metrics) Option[S] {
	return func(p *Poller[S]) {
		p.metrics = m
	}
}

// WithClock replaces the time source and sleeper, for tests.
func WithClock[S any](now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option[S] {
	return func(p *Poller[S]) {
		p.now = now
		p.sleep = sleep
	}
}

// New creates a Poller. kind labels metrics; resource names the job in logs and errors.
func New[S any](kind, resource string, check CheckFunc[S], classify ClassifyFunc[S], cfg Config, opts ...Option[S]) *Poller[S] {
	p := &Poller[S]{
		kind:     kind,
		resource: resource,
		check:    check,
		classify: classify,
		cfg:      cfg,
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls until a terminal verdict, a check error, the timeout, or ctx cancellation.
//
// On Succeeded it returns the terminal status and nil. On Failed it returns the
// terminal status and an apperrors.ErrJobFailed error carrying the verdict message.
// Check errors are returned unchanged.
func (p *Poller[S]) Wait(ctx context.Context) (S, error) {
	if p.cfg.Interval <= 0 {
		var zero S
		return zero, apperrors.Validation("interval", "poll interval must be positive")
	}

	logger := slog.With("kind", p.kind, "resource", p.resource)
	start := p.now()
	checks := 0

	for {
		status, err := p.check(ctx)
		checks++
		p.metrics.RecordPollCheck(ctx, p.kind)
		if err != nil {
			p.finish(ctx, "error", start)
			var zero S
			return zero, err
		}

		verdict := p.classify(status)
		logger.Debug("Polled job status", "check", checks, "phase", verdict.Phase)

		switch verdict.Phase {
		case Succeeded:
			p.finish(ctx, "succeeded", start)
			logger.Info("Job reached terminal state", "phase", verdict.Phase, "checks", checks)
			return status, nil
		case Failed:
			p.finish(ctx, "failed", start)
			logger.Warn("Job failed", "message", verdict.Message, "checks", checks)
			return status, apperrors.JobFailed(p.resource, verdict.Message)
		}

		wait := p.cfg.Interval
		if p.cfg.Timeout > 0 {
			elapsed := p.now().Sub(start)
			if elapsed >= p.cfg.Timeout {
				p.finish(ctx, "timeout", start)
				var zero S
				return zero, apperrors.Timeout(p.resource, elapsed)
			}
			// Final check lands on the deadline rather than a full interval past it.
			if remaining := p.cfg.Timeout - elapsed; remaining < wait {
				wait = remaining
			}
		}

		if err := p.sleep(ctx, wait); err != nil {
			p.finish(ctx, "cancelled", start)
			var zero S
			return zero, fmt.Errorf("waiting for %s: %w", p.resource, err)
		}
	}
}

func (p *Poller[S]) finish(ctx context.Context, outcome string, start time.Time) {
	p.metrics.RecordJobFinished(context.WithoutCancel(ctx), p.kind, outcome, p.now().Sub(start).Seconds())
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
