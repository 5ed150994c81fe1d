package control

import "github.com/cjeanneret/TwinAxis/internal/hw/encoder"

// Default control parameters of the rig.
const (
	DefaultSetpoint = 2000000000 // middle of the counter range, room to travel both ways
	DefaultKp       = 0.0020
	DefaultLimit    = 40 // percent
)

// AxisState is the persistent per-axis controller state. It is owned by the
// control tick; other contexts only ever see copies.
type AxisState struct {
	Setpoint   uint32
	Kp         float64
	Limit      int // saturation, percent
	LastError  int32
	LastOutput float64
}

// NewAxisState returns a state holding at setpoint.
func NewAxisState(setpoint uint32, kp float64, limit int) AxisState {
	return AxisState{
		Setpoint: setpoint,
		Kp:       kp,
		Limit:    limit,
	}
}

// Update runs one proportional control step against snap and returns the
// saturated output in percent.
//
// The error is the wrapping difference setpoint-position reinterpreted as
// signed, which is only meaningful while both stay within 2^31 counts of
// each other.
func Update(s *AxisState, snap encoder.Snapshot) float64 {
	posErr := int32(s.Setpoint - snap.Position)
	out := -s.Kp * float64(posErr)

	limit := float64(s.Limit)
	if out > limit {
		out = limit
	} else if out < -limit {
		out = -limit
	}

	s.LastError = posErr
	s.LastOutput = out
	return out
}
