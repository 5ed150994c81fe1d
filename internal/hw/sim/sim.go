// Package sim provides a simulated plant so the control loop can run
// without motors or encoders attached.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/TwinAxis/internal/hw/actuator"
)

// DefaultCountsPerSecondPerPercent is the encoder rate of a simulated axis
// per percent of drive.
const DefaultCountsPerSecondPerPercent = 2000

// Motor is an ideal motor with a quadrature encoder on its shaft: the count
// rate is proportional to the drive level, with no inertia. It forwards
// drive levels to an inner output and implements encoder.Capture.
type Motor struct {
	mu     sync.Mutex
	out    actuator.Output
	rate   float64 // counts per second per percent
	window time.Duration
	now    func() time.Time

	last     time.Time
	level    int
	position uint32
	frac     float64
	dir      int32
}

// NewMotor wraps out, which may be nil. window is the velocity capture
// window used to express speed as counts per window.
func NewMotor(out actuator.Output, countsPerSecondPerPercent float64, window time.Duration) *Motor {
	if countsPerSecondPerPercent <= 0 {
		countsPerSecondPerPercent = DefaultCountsPerSecondPerPercent
	}
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	m := &Motor{
		out:    out,
		rate:   countsPerSecondPerPercent,
		window: window,
		now:    time.Now,
		dir:    1,
	}
	m.last = m.now()
	return m
}

// advance integrates the position up to now. Callers hold mu.
func (m *Motor) advance() {
	now := m.now()
	dt := now.Sub(m.last).Seconds()
	m.last = now
	if dt <= 0 || m.level == 0 {
		return
	}
	delta := float64(m.level)*m.rate*dt + m.frac
	whole := math.Trunc(delta)
	m.frac = delta - whole
	m.position += uint32(int64(whole))
}

// Drive applies level from now on.
func (m *Motor) Drive(level int) {
	if level > actuator.MaxLevel {
		level = actuator.MaxLevel
	} else if level < -actuator.MaxLevel {
		level = -actuator.MaxLevel
	}

	m.mu.Lock()
	m.advance()
	m.level = level
	if level > 0 {
		m.dir = 1
	} else if level < 0 {
		m.dir = -1
	}
	m.mu.Unlock()

	if m.out != nil {
		m.out.Drive(level)
	}
}

// Level returns the current simulated drive level.
func (m *Motor) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *Motor) Position() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.position
}

func (m *Motor) Direction() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// VelocityMagnitude returns the count delta over one capture window at the
// current level.
func (m *Motor) VelocityMagnitude() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := float64(m.level) * m.rate * m.window.Seconds()
	return uint32(math.Round(math.Abs(v)))
}

func (m *Motor) SetPosition(pos uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.position = pos
	m.frac = 0
}
