package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStreamConsumed is returned by Stream when the event sequence has
// already been handed out; the sequence is finite and not restartable.
var ErrStreamConsumed = errors.New("execution: stream already consumed")

// EventMetrics timestamps one streamed event relative to the execution.
type EventMetrics struct {
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Delta     time.Duration `json:"delta"`
}

// Event is one ordered item produced during a streaming execution.
type Event[E any] struct {
	Payload E
	Metrics EventMetrics
}

// Emit publishes one event from inside a streaming producer.
type Emit[E any] func(E)

// StreamProducer is a unit of work that emits intermediate events before
// returning its final value.
type StreamProducer[T, E any] func(ctx context.Context, emit Emit[E]) (T, error)

// StreamResult is the terminal outcome of a streaming execution, carrying
// the full captured event sequence alongside the usual result fields.
type StreamResult[T, E any] struct {
	Status  Status
	Value   T
	Err     error
	Summary Summary
	Events  []Event[E]
}

// StreamHost is the streaming variant of Host. Production is driven solely
// by the host's run goroutine; Stream and Wait are two views over the same
// captured sequence and never race to drive the producer. Stream yields
// each event once, in production order, and closes the channel as the
// implicit completion marker; Wait returns the buffered outcome with the
// full event log whether or not the stream was consumed.
type StreamHost[T, E any] struct {
	host     *Host[T]
	streamed atomic.Bool
	emitting atomic.Bool

	mu        sync.RWMutex
	startedAt time.Time
	lastEmit  time.Time
	events    []Event[E]

	notify chan struct{}
}

// NewStreamHost creates a streaming host for the given producer.
// Options apply to the underlying host (hooks, logger, ID).
func NewStreamHost[T, E any](produce StreamProducer[T, E], opts ...HostOption[T]) *StreamHost[T, E] {
	h := &StreamHost[T, E]{notify: make(chan struct{}, 1)}
	var inner Producer[T]
	if produce != nil {
		inner = func(ctx context.Context) (T, error) {
			return produce(ctx, h.emit)
		}
	}
	h.host = NewHost(inner, opts...)
	return h
}

// ID returns the execution identifier.
func (h *StreamHost[T, E]) ID() string { return h.host.ID() }

// Status reports StatusEmitting while an event is being dispatched,
// otherwise the underlying host state.
func (h *StreamHost[T, E]) Status() Status {
	if h.emitting.Load() {
		return StatusEmitting
	}
	return h.host.Status()
}

// Start launches the producer. Subsequent calls are no-ops.
func (h *StreamHost[T, E]) Start(ctx context.Context) {
	h.mu.Lock()
	if h.startedAt.IsZero() {
		h.startedAt = time.Now()
	}
	h.mu.Unlock()
	h.host.Start(ctx)
}

// Cancel requests cooperative cancellation; idempotent.
func (h *StreamHost[T, E]) Cancel() { h.host.Cancel() }

// OnCleanup registers a teardown hook on the underlying host.
func (h *StreamHost[T, E]) OnCleanup(fn func()) { h.host.OnCleanup(fn) }

// Cleanup runs registered teardown hooks exactly once.
func (h *StreamHost[T, E]) Cleanup() { h.host.Cleanup() }

// RecordUsage adds one call's usage figures to the execution summary.
func (h *StreamHost[T, E]) RecordUsage(u Usage) { h.host.RecordUsage(u) }

// Done is closed once the execution reaches a terminal outcome.
func (h *StreamHost[T, E]) Done() <-chan struct{} { return h.host.Done() }

// Stream returns the event sequence, consumable exactly once. The channel
// delivers events in production order and is closed after the last one.
// A second call returns ErrStreamConsumed.
func (h *StreamHost[T, E]) Stream() (<-chan Event[E], error) {
	if !h.streamed.CompareAndSwap(false, true) {
		return nil, ErrStreamConsumed
	}
	out := make(chan Event[E])
	go h.forward(out)
	return out, nil
}

func (h *StreamHost[T, E]) forward(out chan<- Event[E]) {
	defer close(out)
	idx := 0
	for {
		for _, ev := range h.eventsFrom(idx) {
			out <- ev
			idx++
		}
		select {
		case <-h.host.Done():
			for _, ev := range h.eventsFrom(idx) {
				out <- ev
				idx++
			}
			return
		case <-h.notify:
		}
	}
}

func (h *StreamHost[T, E]) eventsFrom(idx int) []Event[E] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if idx >= len(h.events) {
		return nil
	}
	return h.events[idx:]
}

// Wait blocks until the terminal outcome and returns it with the full
// captured event log. A ctx expiry aborts only the wait.
func (h *StreamHost[T, E]) Wait(ctx context.Context) (StreamResult[T, E], error) {
	res, err := h.host.Wait(ctx)
	if err != nil {
		return StreamResult[T, E]{}, err
	}
	return h.buildResult(res), nil
}

// Result returns the memoized terminal outcome, if any.
func (h *StreamHost[T, E]) Result() (StreamResult[T, E], bool) {
	res, ok := h.host.Result()
	if !ok {
		return StreamResult[T, E]{}, false
	}
	return h.buildResult(res), true
}

// Run starts the execution and blocks until its terminal outcome.
func (h *StreamHost[T, E]) Run(ctx context.Context) StreamResult[T, E] {
	h.Start(ctx)
	<-h.host.Done()
	res, _ := h.host.Result()
	return h.buildResult(res)
}

func (h *StreamHost[T, E]) buildResult(res Result[T]) StreamResult[T, E] {
	h.mu.RLock()
	events := make([]Event[E], len(h.events))
	copy(events, h.events)
	h.mu.RUnlock()
	return StreamResult[T, E]{
		Status:  res.Status,
		Value:   res.Value,
		Err:     res.Err,
		Summary: res.Summary,
		Events:  events,
	}
}

func (h *StreamHost[T, E]) emit(payload E) {
	now := time.Now()
	h.emitting.Store(true)
	defer h.emitting.Store(false)

	h.mu.Lock()
	elapsed := now.Sub(h.startedAt)
	delta := elapsed
	if !h.lastEmit.IsZero() {
		delta = now.Sub(h.lastEmit)
	}
	h.lastEmit = now
	h.events = append(h.events, Event[E]{
		Payload: payload,
		Metrics: EventMetrics{Timestamp: now, Elapsed: elapsed, Delta: delta},
	})
	h.mu.Unlock()

	h.host.dispatch(func() { h.host.hooks.emit(h.host.id, payload) })

	select {
	case h.notify <- struct{}{}:
	default:
	}
}
