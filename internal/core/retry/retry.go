// Package retry runs unreliable remote calls with bounded exponential backoff
// and surfaces every terminal failure as an *Error.
package retry

import (
	"context"
	"errors"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Event describes a retry that is about to be scheduled.
type Event struct {
	Context *OperationContext
	Attempt int
	Delay   time.Duration
	Err     error
}

type options struct {
	sleep   SleepFunc
	onRetry []func(Event)
}

// Option customizes a single Do call.
type Option func(*options)

// WithSleep replaces the timer-based wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		o.sleep = fn
	}
}

// OnRetry registers a hook called before each backoff wait. Hooks run in
// registration order.
func OnRetry(fn func(Event)) Option {
	return func(o *options) {
		o.onRetry = append(o.onRetry, fn)
	}
}

// Do invokes op until it succeeds, fails with a non-retryable error, or
// policy.MaxAttempts is reached. ctx is checked before every attempt and
// interrupts the backoff wait. Do itself never logs.
func Do[T any](
	ctx context.Context,
	op func(ctx context.Context) (T, error),
	policy Policy,
	octx *OperationContext,
	opts ...Option,
) (T, error) {
	var zero T

	o := options{sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	if err := policy.Validate(); err != nil {
		return zero, &Error{
			Message: "retry policy rejected",
			Context: octx,
			Cause:   err,
			Kind:    KindInvalidPolicy,
		}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, cancelled(octx, err, lastErr, attempt-1)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, cancelled(octx, ctxErr, err, attempt)
		}

		if !policy.IsRetryable(err) {
			return zero, terminal(octx, err, KindNonRetryable, false, attempt)
		}
		if attempt >= policy.MaxAttempts {
			return zero, terminal(octx, err, KindExhausted, true, attempt)
		}

		delay := policy.Delay(attempt)
		for _, hook := range o.onRetry {
			hook(Event{Context: octx, Attempt: attempt, Delay: delay, Err: err})
		}
		if err := o.sleep(ctx, delay); err != nil {
			return zero, cancelled(octx, err, lastErr, attempt)
		}
	}
}

// Sleep is the default SleepFunc. It does not block other goroutines.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func terminal(octx *OperationContext, err error, kind Kind, retryable bool, attempts int) *Error {
	if origin, ok := AsError(err); ok && origin.Context != nil {
		octx = origin.Context
	}
	return &Error{
		Message:   err.Error(),
		Context:   octx,
		Cause:     err,
		Retryable: retryable,
		Kind:      kind,
		Attempts:  attempts,
	}
}

func cancelled(octx *OperationContext, ctxErr, lastErr error, attempts int) *Error {
	cause := ctxErr
	if lastErr != nil {
		cause = errors.Join(ctxErr, lastErr)
	}
	return &Error{
		Message:  ErrCancelled.Error(),
		Context:  octx,
		Cause:    cause,
		Kind:     KindCancelled,
		Attempts: attempts,
	}
}
