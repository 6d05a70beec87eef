// Package retry runs operations with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, back off and try again
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration // zero means uncapped
	Clock          clockwork.Clock
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

type Classify func(err error) Action

// Transient treats every error as retryable except context cancellation.
func Transient(err error) Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Stop
	}
	return Retry
}

func Do[T any](ctx context.Context, p Policy, classify Classify, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, errors.New("retry: MaxAttempts must be >= 1")
	}

	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		if classify(err) == Stop {
			return zero, &PermanentError{Err: err}
		}
		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		timer := clock.NewTimer(backoff)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

func DoVoid(ctx context.Context, p Policy, classify Classify, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, classify, func(ctx context.Context) (struct{}, error) { return struct{}{}, op(ctx) })
	return err
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
