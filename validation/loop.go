// Package validation repeats a produce-and-validate cycle until a result
// is accepted or attempts are exhausted, keeping prior failures visible to
// the producer so it can adapt.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts is used when no attempt cap is configured.
const DefaultMaxAttempts = 3

// Execute produces a candidate result. The history of prior attempts is
// read-only input; producers may fold failure reasons into their next try.
// A producer error is a collaborator failure and aborts the loop directly,
// without being recorded as an attempt.
type Execute[T any] func(ctx context.Context, history *History[T]) (T, error)

// Validate judges a produced result against the attempt history.
type Validate[T any] func(result T, history *History[T]) Verdict

// ExhaustedError reports that every attempt ran and none validated. It
// carries the complete history for diagnostics. This package never retries
// past it; wrapping another loop around it is a caller decision.
type ExhaustedError[T any] struct {
	History *History[T]
}

func (e *ExhaustedError[T]) Error() string {
	reasons := e.History.FailureReasons()
	if len(reasons) == 0 {
		return fmt.Sprintf("validation exhausted after %d attempts", e.History.Len())
	}
	return fmt.Sprintf("validation exhausted after %d attempts: %s",
		e.History.Len(), strings.Join(reasons, "; "))
}

// RetryLoop runs producers until validation accepts a result.
type RetryLoop[T any] struct {
	maxAttempts int
	delay       time.Duration
	onAttempt   func(Attempt[T])
	logger      *zap.Logger
}

// Option configures a RetryLoop.
type Option[T any] func(*RetryLoop[T])

// WithMaxAttempts caps the number of attempts. Values below 1 behave as 1
// attempt with no retries.
func WithMaxAttempts[T any](n int) Option[T] {
	return func(l *RetryLoop[T]) { l.maxAttempts = n }
}

// WithRetryDelay waits the given duration between attempts. The delay is
// applied strictly between attempts, never before the first or after the last.
func WithRetryDelay[T any](d time.Duration) Option[T] {
	return func(l *RetryLoop[T]) { l.delay = d }
}

// WithAttemptObserver invokes fn with each attempt just after it is recorded.
func WithAttemptObserver[T any](fn func(Attempt[T])) Option[T] {
	return func(l *RetryLoop[T]) { l.onAttempt = fn }
}

// WithLogger sets the loop logger. A nil logger falls back to a no-op.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(l *RetryLoop[T]) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRetryLoop creates a retry loop with the given options.
func NewRetryLoop[T any](opts ...Option[T]) *RetryLoop[T] {
	l := &RetryLoop[T]{
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxAttempts < 1 {
		l.maxAttempts = 1
	}
	l.logger = l.logger.With(zap.String("component", "validation_retry_loop"))
	return l
}

// Run executes the produce-and-validate cycle. It returns the first result
// the validator accepts, a context error if cancellation is observed at a
// checkpoint, the producer's error verbatim if production fails, or an
// *ExhaustedError once every attempt was invalid.
func (l *RetryLoop[T]) Run(ctx context.Context, execute Execute[T], validate Validate[T]) (T, error) {
	var zero T
	if execute == nil || validate == nil {
		return zero, fmt.Errorf("validation: execute and validate are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	history := &History[T]{}
	for history.NextAttempt() <= l.maxAttempts {
		// Cancellation checkpoint at the top of each attempt.
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("validation retry loop canceled: %w", err)
		}

		attempt := history.NextAttempt()
		result, err := execute(ctx, history)
		if err != nil {
			return zero, err
		}

		verdict := validate(result, history)
		record := Attempt[T]{
			Number: attempt,
			Result: result,
			Valid:  verdict.Valid,
			Reason: verdict.Reason,
		}
		history.append(record)
		if l.onAttempt != nil {
			l.onAttempt(record)
		}

		if verdict.Valid {
			if attempt > 1 {
				l.logger.Debug("validation accepted on retry", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		l.logger.Debug("validation rejected result",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", l.maxAttempts),
			zap.String("reason", verdict.Reason),
		)

		// No delay after the final attempt.
		if l.delay > 0 && history.NextAttempt() <= l.maxAttempts {
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("validation retry loop canceled: %w", ctx.Err())
			case <-time.After(l.delay):
			}
		}
	}

	l.logger.Warn("validation attempts exhausted",
		zap.Int("attempts", history.Len()),
		zap.Strings("reasons", history.FailureReasons()),
	)
	return zero, &ExhaustedError[T]{History: history}
}
