package timer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Handler is the single tick callback. It must call ack before doing its
// work, the way an interrupt handler clears its pending flag first.
type Handler func(ack func())

// Periodic fires a Handler at a fixed rate. Expiries that arrive while the
// handler is still running are coalesced, never queued, so a late tick only
// delays the next one.
type Periodic struct {
	RateHz int

	pending atomic.Bool
	fired   atomic.Uint64
	unacked atomic.Uint64
	ackFunc func()
}

// Period returns the interval between expiries.
func (p *Periodic) Period() time.Duration {
	return time.Second / time.Duration(p.RateHz)
}

// Run invokes h on every expiry until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context, h Handler) error {
	if p.RateHz <= 0 {
		return fmt.Errorf("timer: rate must be > 0 Hz, got %d", p.RateHz)
	}
	if h == nil {
		return fmt.Errorf("timer: no handler registered")
	}
	p.ackFunc = p.Acknowledge

	ticker := time.NewTicker(p.Period())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Fire(h)
		}
	}
}

// Fire raises the pending condition and runs h once. It is what Run does on
// every expiry; tests use it to step the timer by hand.
func (p *Periodic) Fire(h Handler) {
	if p.ackFunc == nil {
		p.ackFunc = p.Acknowledge
	}
	p.pending.Store(true)
	p.fired.Add(1)
	h(p.ackFunc)
	if p.pending.Load() {
		p.unacked.Add(1)
		p.pending.Store(false)
	}
}

// Acknowledge clears the pending condition.
func (p *Periodic) Acknowledge() {
	p.pending.Store(false)
}

// Fired returns the number of expiries serviced.
func (p *Periodic) Fired() uint64 {
	return p.fired.Load()
}

// Unacknowledged returns how many expiries were serviced without an ack.
func (p *Periodic) Unacknowledged() uint64 {
	return p.unacked.Load()
}
