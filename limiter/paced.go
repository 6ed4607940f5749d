package limiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Paced combines the concurrency gate with request-rate pacing, for
// providers that cap both simultaneous connections and calls per second.
// Unlike the bare Limiter, Acquire is context-aware: the pacing wait is
// the composition point for cancellation.
type Paced struct {
	gate  *Limiter
	pacer *rate.Limiter
}

// NewPaced creates a paced limiter allowing at most limit concurrent
// holders and perSecond calls per second with the given burst.
func NewPaced(limit int, perSecond float64, burst int) (*Paced, error) {
	gate, err := New(limit)
	if err != nil {
		return nil, err
	}
	if perSecond <= 0 {
		return nil, fmt.Errorf("limiter: rate must be positive, got %g", perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Paced{
		gate:  gate,
		pacer: rate.NewLimiter(rate.Limit(perSecond), burst),
	}, nil
}

// Acquire takes a concurrency slot, then waits out the rate pacer. If the
// pacing wait is aborted by ctx, the slot is returned before the error
// surfaces, so slots never leak on cancellation.
func (p *Paced) Acquire(ctx context.Context) error {
	p.gate.Acquire()
	if err := p.pacer.Wait(ctx); err != nil {
		p.gate.Release()
		return err
	}
	return nil
}

// Release returns the concurrency slot.
func (p *Paced) Release() { p.gate.Release() }

// Active returns the number of outstanding acquisitions.
func (p *Paced) Active() int { return p.gate.Active() }
