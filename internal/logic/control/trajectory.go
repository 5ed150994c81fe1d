package control

// Default trajectory cadence, in ticks.
const (
	DefaultRampEvery      = 20
	DefaultTelemetryEvery = 2000
)

// Trajectory is the process-wide tick counter and ramp configuration.
type Trajectory struct {
	Tick           uint32 // wraps at 2^32
	RampStep       int32  // added to the axis 1 setpoint every RampEvery ticks
	RampEvery      uint32
	TelemetryEvery uint32
}

// NewTrajectory returns a trajectory at tick 0.
func NewTrajectory(rampStep int32, rampEvery, telemetryEvery uint32) Trajectory {
	if rampEvery == 0 {
		rampEvery = DefaultRampEvery
	}
	if telemetryEvery == 0 {
		telemetryEvery = DefaultTelemetryEvery
	}
	return Trajectory{
		RampStep:       rampStep,
		RampEvery:      rampEvery,
		TelemetryEvery: telemetryEvery,
	}
}

// Step advances the tick counter and, on every RampEvery-th tick, moves the
// setpoint of axis 1 by RampStep with wrapping arithmetic. It reports
// whether the ramp was applied.
func Step(tr *Trajectory, axis1 *AxisState) bool {
	tr.Tick++
	if tr.Tick%tr.RampEvery != 0 {
		return false
	}
	axis1.Setpoint += uint32(tr.RampStep)
	return true
}

// TelemetryDue reports whether the current tick is a telemetry tick.
func (tr *Trajectory) TelemetryDue() bool {
	return tr.Tick%tr.TelemetryEvery == 0
}
