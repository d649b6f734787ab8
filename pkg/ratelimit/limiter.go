package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for request pacing
type Limiter interface {
	// Wait blocks until the next request may start or ctx is done
	Wait(ctx context.Context) error
	// Done reports that a request finished
	Done()
	// Reset forgets previous reservations
	Reset()
}

// Pacer enforces a minimum gap between consecutive events, measured from the
// later of the previous start and the previous Done. The first event never
// waits. Slots are reserved under a lock, so one Pacer shared by
// several workers spaces their requests globally.
type Pacer struct {
	interval time.Duration
	mu       sync.Mutex
	next     time.Time
	now      func() time.Time
}

// NewPacer creates a pacer with the given minimum interval
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, now: time.Now}
}

// Wait reserves the next slot and sleeps until it starts
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := p.now()
	start := now
	if p.next.After(now) {
		start = p.next
	}
	p.next = start.Add(p.interval)
	p.mu.Unlock()

	return sleep(ctx, start.Sub(now))
}

// Done restarts the interval from now, so a slow request is still followed
// by a full gap. It never moves an existing reservation earlier.
func (p *Pacer) Done() {
	if p.interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if next := p.now().Add(p.interval); next.After(p.next) {
		p.next = next
	}
}

// Reset makes the next Wait return immediately
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = time.Time{}
}

// Unlimited is a Limiter that never waits
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Done()                          {}
func (Unlimited) Reset()                         {}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
