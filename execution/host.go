package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/promptcycle/promptcycle/execution"

// ErrNilProducer is reported as the failure of a host constructed without a producer.
var ErrNilProducer = errors.New("execution: nil producer")

// Producer is the unit of asynchronous work driven by a Host. It must honor
// ctx cancellation at its suspension points; cancellation is cooperative.
type Producer[T any] func(ctx context.Context) (T, error)

// Host drives one unit of asynchronous work to a single terminal outcome.
// It owns the execution's cancellation flag and cleanup guard for its
// lifetime. A Host is single-use: Start runs the producer at most once and
// every later Wait or Result observes the same memoized outcome.
type Host[T any] struct {
	id      string
	produce Producer[T]
	hooks   *Hooks[T]
	logger  *zap.Logger

	started  atomic.Bool
	canceled atomic.Bool

	mu        sync.RWMutex
	cancelRun context.CancelFunc
	status    Status
	result    Result[T]
	calls     int
	usage     Usage
	cleanups  []func()
	cleaned   bool

	done chan struct{}
}

// HostOption configures a Host at construction.
type HostOption[T any] func(*Host[T])

// WithHooks attaches a lifecycle observer to the host.
func WithHooks[T any](hooks *Hooks[T]) HostOption[T] {
	return func(h *Host[T]) { h.hooks = hooks }
}

// WithLogger sets the host logger. A nil logger falls back to a no-op.
func WithLogger[T any](logger *zap.Logger) HostOption[T] {
	return func(h *Host[T]) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithID overrides the generated execution ID.
func WithID[T any](id string) HostOption[T] {
	return func(h *Host[T]) {
		if id != "" {
			h.id = id
		}
	}
}

// NewHost creates a host for the given producer. The host is Idle until Start.
func NewHost[T any](produce Producer[T], opts ...HostOption[T]) *Host[T] {
	h := &Host[T]{
		id:      generateExecutionID(),
		produce: produce,
		logger:  zap.NewNop(),
		status:  StatusIdle,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(
		zap.String("component", "execution_host"),
		zap.String("execution_id", h.id),
	)
	return h
}

// ID returns the execution identifier.
func (h *Host[T]) ID() string { return h.id }

// Status returns the current lifecycle state.
func (h *Host[T]) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Start launches the producer in its own goroutine. Subsequent calls are no-ops.
func (h *Host[T]) Start(ctx context.Context) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancelRun = cancel
	h.status = StatusRunning
	h.mu.Unlock()

	// Cancel may have been requested before Start.
	if h.canceled.Load() {
		cancel()
	}

	h.logger.Debug("starting execution")
	go h.run(runCtx)
}

// Cancel requests cooperative cancellation. It is idempotent and never
// fails; the in-flight producer observes the cancellation at its next
// checkpoint and the execution resolves with StatusCanceled.
func (h *Host[T]) Cancel() {
	if !h.canceled.CompareAndSwap(false, true) {
		return
	}
	h.mu.RLock()
	cancel := h.cancelRun
	h.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("cancellation requested")
}

// OnCleanup registers a teardown hook. Hooks run exactly once, in
// registration order, when Cleanup is first invoked. Registering after
// cleanup has run executes the hook immediately.
func (h *Host[T]) OnCleanup(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if h.cleaned {
		h.mu.Unlock()
		h.runHook(fn)
		return
	}
	h.cleanups = append(h.cleanups, fn)
	h.mu.Unlock()
}

// Cleanup runs the registered teardown hooks exactly once, no matter how
// many times or from how many goroutines it is invoked. The has-run guard
// is set before the hooks execute, so re-entrant and concurrent callers
// observe it immediately. Safe to call on a host that never started.
func (h *Host[T]) Cleanup() {
	h.mu.Lock()
	if h.cleaned {
		h.mu.Unlock()
		return
	}
	h.cleaned = true
	hooks := h.cleanups
	h.cleanups = nil
	h.mu.Unlock()

	for _, fn := range hooks {
		h.runHook(fn)
	}
}

func (h *Host[T]) runHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("cleanup hook panicked", zap.Any("recover", r))
		}
	}()
	fn()
}

// RecordUsage adds one call's usage figures to the execution summary.
// Safe for concurrent use from inside the producer.
func (h *Host[T]) RecordUsage(u Usage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.usage.add(u)
}

// Wait blocks until the execution reaches a terminal outcome or ctx
// expires while waiting. A ctx expiry aborts only the wait, never the
// execution itself.
func (h *Host[T]) Wait(ctx context.Context) (Result[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.done:
		res, _ := h.Result()
		return res, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// Result returns the memoized terminal outcome, if any.
func (h *Host[T]) Result() (Result[T], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.status.Terminal() {
		return Result[T]{}, false
	}
	return h.result, true
}

// Run starts the execution and blocks until its terminal outcome.
// Cancellation is cooperative: Run returns once the producer yields.
func (h *Host[T]) Run(ctx context.Context) Result[T] {
	h.Start(ctx)
	<-h.done
	res, _ := h.Result()
	return res
}

// Done is closed once the execution reaches a terminal outcome.
func (h *Host[T]) Done() <-chan struct{} { return h.done }

func (h *Host[T]) run(ctx context.Context) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "execution.run",
		oteltrace.WithAttributes(attribute.String("execution.id", h.id)))

	h.dispatch(func() { h.hooks.start(h.id) })

	start := time.Now()
	value, err := h.safeProduce(ctx)
	end := time.Now()

	status := h.terminalStatus(ctx, err)
	res := Result[T]{Status: status, Summary: h.summarize(start, end)}
	switch status {
	case StatusSucceeded:
		res.Value = value
	case StatusFailed:
		res.Err = err
	}

	span.SetAttributes(
		attribute.String("execution.status", string(status)),
		attribute.Int64("execution.duration_ms", res.Summary.Duration.Milliseconds()),
	)
	if status == StatusFailed {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	// Cleanup hooks run before the terminal status is observable.
	h.Cleanup()

	h.mu.Lock()
	h.status = status
	h.result = res
	h.mu.Unlock()

	h.logger.Debug("execution finished",
		zap.String("status", string(status)),
		zap.Duration("duration", res.Summary.Duration),
	)

	h.dispatch(func() { h.hooks.terminal(h.id, res) })
	close(h.done)
}

// safeProduce invokes the producer, normalizing panics into errors so
// downstream consumers always observe a consistent failure shape.
func (h *Host[T]) safeProduce(ctx context.Context) (value T, err error) {
	if h.produce == nil {
		return value, ErrNilProducer
	}
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(error); ok {
				err = fmt.Errorf("producer panicked: %w", perr)
			} else {
				err = fmt.Errorf("producer panicked: %v", r)
			}
		}
	}()
	return h.produce(ctx)
}

// terminalStatus resolves the single terminal outcome, evaluated once at
// completion. Cancellation takes priority over failure: a cancellation
// requested before completion must never be misreported as a domain
// failure, since callers branch on status to decide whether to retry.
func (h *Host[T]) terminalStatus(ctx context.Context, err error) Status {
	switch {
	case h.canceled.Load(), ctx.Err() != nil, errors.Is(err, context.Canceled):
		return StatusCanceled
	case err != nil:
		return StatusFailed
	default:
		return StatusSucceeded
	}
}

func (h *Host[T]) summarize(start, end time.Time) Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Summary{
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Calls:     h.calls,
		Usage:     h.usage,
	}
}

func (h *Host[T]) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("lifecycle hook panicked", zap.Any("recover", r))
		}
	}()
	fn()
}
