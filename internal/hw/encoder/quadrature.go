package encoder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/cjeanneret/TwinAxis/internal/hw/gpio"
)

// illegal marks a transition where both phases changed at once.
const illegal = 2

// transitions is indexed by prev<<2 | cur, where a state is A<<1 | B.
// Forward sequence: 00 -> 01 -> 11 -> 10 -> 00.
var transitions = [16]int32{
	0, 1, -1, illegal,
	-1, 0, illegal, 1,
	1, illegal, 0, -1,
	illegal, -1, 1, 0,
}

// Quadrature is a software 4x quadrature decoder. Sample is called from a
// single sampling goroutine; the Capture methods may be called concurrently.
type Quadrature struct {
	position    atomic.Uint32
	direction   atomic.Int32
	velocity    atomic.Uint32
	errors      atomic.Uint32
	windowStart atomic.Uint32

	window  uint32 // samples per capture window
	samples uint32
	state   uint8
	primed  bool
}

// NewQuadrature returns a decoder that publishes a velocity every window
// samples.
func NewQuadrature(window uint32) *Quadrature {
	if window == 0 {
		window = 1
	}
	q := &Quadrature{window: window}
	q.direction.Store(1)
	return q
}

// Sample feeds one reading of both phases.
func (q *Quadrature) Sample(a, b gpio.Level) {
	var cur uint8
	if a {
		cur |= 2
	}
	if b {
		cur |= 1
	}
	if !q.primed {
		q.state = cur
		q.primed = true
	} else {
		switch d := transitions[q.state<<2|cur]; d {
		case 0:
		case illegal:
			q.errors.Add(1)
		default:
			q.position.Add(uint32(d))
			q.direction.Store(d)
		}
		q.state = cur
	}

	q.samples++
	if q.samples >= q.window {
		pos := q.position.Load()
		delta := int32(pos - q.windowStart.Load())
		if delta < 0 {
			delta = -delta
		}
		q.velocity.Store(uint32(delta))
		q.windowStart.Store(pos)
		q.samples = 0
	}
}

func (q *Quadrature) Position() uint32 { return q.position.Load() }
func (q *Quadrature) Direction() int32 { return q.direction.Load() }
func (q *Quadrature) VelocityMagnitude() uint32 { return q.velocity.Load() }

// SetPosition loads the counter and restarts the velocity window from it.
func (q *Quadrature) SetPosition(pos uint32) {
	q.position.Store(pos)
	q.windowStart.Store(pos)
}

// Errors returns the number of illegal transitions seen so far.
func (q *Quadrature) Errors() uint32 {
	return q.errors.Load()
}

// Poller samples the two phase pins of an encoder at a fixed rate.
type Poller struct {
	Pins    gpio.Driver
	PinA    int
	PinB    int
	RateHz  int
	Decoder *Quadrature
}

// Run configures the phase pins as inputs and samples until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.RateHz <= 0 {
		return fmt.Errorf("encoder poller: sample rate must be > 0, got %d", p.RateHz)
	}
	if err := p.Pins.SetupPin(p.PinA, gpio.Input); err != nil {
		return fmt.Errorf("setup phase A pin %d: %w", p.PinA, err)
	}
	if err := p.Pins.SetupPin(p.PinB, gpio.Input); err != nil {
		return fmt.Errorf("setup phase B pin %d: %w", p.PinB, err)
	}
	debug.Verbose("Encoder poller on pins A=%d B=%d at %d Hz", p.PinA, p.PinB, p.RateHz)

	ticker := time.NewTicker(time.Second / time.Duration(p.RateHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.sample(); err != nil {
				return err
			}
		}
	}
}

func (p *Poller) sample() error {
	a, err := p.Pins.ReadPin(p.PinA)
	if err != nil {
		return fmt.Errorf("read phase A pin %d: %w", p.PinA, err)
	}
	b, err := p.Pins.ReadPin(p.PinB)
	if err != nil {
		return fmt.Errorf("read phase B pin %d: %w", p.PinB, err)
	}
	p.Decoder.Sample(a, b)
	return nil
}
