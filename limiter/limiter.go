// Package limiter bounds the number of simultaneously active operations
// sharing a resource, such as concurrent LLM calls across test cases.
package limiter

import (
	"fmt"
	"sync"
)

// Limiter is a counting gate with FIFO fairness: waiters are granted slots
// in the order they requested them. At most limit acquisitions are
// outstanding without a matching release at any instant. There is no
// built-in timeout or cancellation; callers needing bounded waiting
// compose it externally. Releasing without a matching outstanding acquire
// is caller error and is not detected internally.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiters []chan struct{}
}

// New creates a limiter with the given slot count. A non-positive limit is
// a configuration error and fails fast.
func New(limit int) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limiter: limit must be positive, got %d", limit)
	}
	return &Limiter{limit: limit}, nil
}

// Acquire blocks until a slot is available, then takes it.
func (l *Limiter) Acquire() {
	l.mu.Lock()
	if l.active < l.limit && len(l.waiters) == 0 {
		l.active++
		l.mu.Unlock()
		return
	}
	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.mu.Unlock()
	<-ready
}

// TryAcquire takes a slot if one is immediately available.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active < l.limit && len(l.waiters) == 0 {
		l.active++
		return true
	}
	return false
}

// Release returns a slot to the pool. If waiters are queued, the slot is
// handed directly to the head waiter and the active count is unchanged.
func (l *Limiter) Release() {
	l.mu.Lock()
	if len(l.waiters) > 0 {
		ready := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.mu.Unlock()
		close(ready)
		return
	}
	l.active--
	l.mu.Unlock()
}

// Active returns the number of outstanding acquisitions.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Limit returns the configured slot count.
func (l *Limiter) Limit() int { return l.limit }

// Waiting returns the number of queued waiters.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}
