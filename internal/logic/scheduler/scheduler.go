package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/TwinAxis/internal/hw/encoder"
	"github.com/cjeanneret/TwinAxis/internal/logic/control"
	"github.com/cjeanneret/TwinAxis/internal/telemetry"
)

// LevelSource supplies the commanded drive level reported in telemetry.
type LevelSource interface {
	Load() int
}

// Publisher accepts telemetry samples without blocking and reports whether
// the sample was delivered.
type Publisher interface {
	Publish(s telemetry.Sample) bool
}

// Config is the initial control state.
type Config struct {
	Axis1      control.AxisState
	Axis2      control.AxisState
	Trajectory control.Trajectory

	// IndependentSetpoint lets axis 2 hold its own setpoint. By default it
	// tracks the (ramped) setpoint of axis 1.
	IndependentSetpoint bool
}

// Status is a consistent copy of the control state between two ticks.
type Status struct {
	Axes       [control.NumAxes]control.AxisState
	Snapshots  [control.NumAxes]encoder.Snapshot
	Trajectory control.Trajectory
}

// Stats counts scheduler activity.
type Stats struct {
	Ticks     uint64
	Published uint64
	Dropped   uint64
}

// Scheduler is the fixed-rate control tick: trajectory stepper, then encoder
// read and controller update for each axis, then periodic telemetry.
//
// The controller outputs are computed and kept in the axis state but do not
// drive the motors; the motors follow the commanded drive level.
type Scheduler struct {
	mu          sync.Mutex
	axes        [control.NumAxes]control.AxisState
	snaps       [control.NumAxes]encoder.Snapshot
	traj        control.Trajectory
	independent bool

	readers [control.NumAxes]*encoder.Reader
	level   LevelSource
	pub     Publisher

	ticks     atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
}

// New builds a scheduler over one encoder reader per axis. pub may be nil
// to disable telemetry.
func New(cfg Config, axis1, axis2 *encoder.Reader, level LevelSource, pub Publisher) *Scheduler {
	if axis1 == nil || axis2 == nil || level == nil {
		panic("scheduler: missing encoder reader or level source")
	}
	traj := cfg.Trajectory
	if traj.RampEvery == 0 {
		traj.RampEvery = control.DefaultRampEvery
	}
	if traj.TelemetryEvery == 0 {
		traj.TelemetryEvery = control.DefaultTelemetryEvery
	}
	return &Scheduler{
		axes:        [control.NumAxes]control.AxisState{cfg.Axis1, cfg.Axis2},
		traj:        traj,
		independent: cfg.IndependentSetpoint,
		readers:     [control.NumAxes]*encoder.Reader{axis1, axis2},
		level:       level,
		pub:         pub,
	}
}

// Tick services one timer expiry. It never blocks on I/O and does not
// allocate; the only lock it takes is held by readers just long enough to
// copy the state.
func (s *Scheduler) Tick(ack func()) {
	ack()

	s.mu.Lock()
	control.Step(&s.traj, &s.axes[control.Axis1])
	for _, axis := range control.Axes {
		if axis != control.Axis1 && !s.independent {
			s.axes[axis].Setpoint = s.axes[control.Axis1].Setpoint
		}
		snap := s.readers[axis].Read()
		s.snaps[axis] = snap
		control.Update(&s.axes[axis], snap)
	}
	due := s.traj.TelemetryDue()
	sample := telemetry.Sample{
		Tick:  s.traj.Tick,
		P1:    s.snaps[control.Axis1].Position,
		P2:    s.snaps[control.Axis2].Position,
		Level: s.level.Load(),
	}
	s.mu.Unlock()

	s.ticks.Add(1)
	if due && s.pub != nil {
		if s.pub.Publish(sample) {
			s.published.Add(1)
		} else {
			s.dropped.Add(1)
		}
	}
}

// Status returns a copy of the control state taken between ticks.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Axes:       s.axes,
		Snapshots:  s.snaps,
		Trajectory: s.traj,
	}
}

// Stats returns tick and telemetry counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:     s.ticks.Load(),
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
	}
}
