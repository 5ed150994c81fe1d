package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrajectory_Defaults(t *testing.T) {
	tr := NewTrajectory(0, 0, 0)
	assert.Equal(t, uint32(DefaultRampEvery), tr.RampEvery)
	assert.Equal(t, uint32(DefaultTelemetryEvery), tr.TelemetryEvery)
	assert.Zero(t, tr.Tick)
}

func TestStep_RampsEveryTwentiethTick(t *testing.T) {
	tr := NewTrajectory(5, 0, 0)
	axis := NewAxisState(DefaultSetpoint, DefaultKp, DefaultLimit)

	for i := 1; i < DefaultRampEvery; i++ {
		require.False(t, Step(&tr, &axis), "tick %d", i)
		require.Equal(t, uint32(DefaultSetpoint), axis.Setpoint)
	}
	assert.True(t, Step(&tr, &axis))
	assert.Equal(t, uint32(DefaultSetpoint+5), axis.Setpoint)
	assert.Equal(t, uint32(DefaultRampEvery), tr.Tick)
}

func TestStep_FortyTicks(t *testing.T) {
	tr := NewTrajectory(5, 0, 0)
	axis := NewAxisState(DefaultSetpoint, DefaultKp, DefaultLimit)
	for i := 0; i < 40; i++ {
		Step(&tr, &axis)
	}
	assert.Equal(t, uint32(2000000010), axis.Setpoint)
}

func TestStep_ZeroStepHolds(t *testing.T) {
	tr := NewTrajectory(0, 0, 0)
	axis := NewAxisState(DefaultSetpoint, DefaultKp, DefaultLimit)
	for i := 0; i < 1000; i++ {
		Step(&tr, &axis)
	}
	assert.Equal(t, uint32(DefaultSetpoint), axis.Setpoint)
}

func TestStep_NegativeStepWraps(t *testing.T) {
	tr := NewTrajectory(-3, 1, 0)
	axis := NewAxisState(1, DefaultKp, DefaultLimit)
	Step(&tr, &axis)
	assert.Equal(t, uint32(0xFFFFFFFE), axis.Setpoint)
}

func TestTelemetryDue(t *testing.T) {
	tr := NewTrajectory(0, 0, 0)
	axis := NewAxisState(DefaultSetpoint, DefaultKp, DefaultLimit)
	due := 0
	for i := 0; i < 3*DefaultTelemetryEvery; i++ {
		Step(&tr, &axis)
		if tr.TelemetryDue() {
			due++
			assert.Zero(t, tr.Tick%DefaultTelemetryEvery)
		}
	}
	assert.Equal(t, 3, due)
}

func TestAxisID(t *testing.T) {
	assert.Equal(t, "axis1", Axis1.String())
	assert.Equal(t, "axis2", Axis2.String())
	assert.Equal(t, "axis(7)", AxisID(7).String())
	assert.True(t, Axis2.Valid())
	assert.False(t, AxisID(-1).Valid())
	assert.False(t, AxisID(NumAxes).Valid())
}

func TestStep_TickWraps(t *testing.T) {
	tr := NewTrajectory(0, 0, 0)
	tr.Tick = math.MaxUint32
	axis := NewAxisState(DefaultSetpoint, DefaultKp, DefaultLimit)

	Step(&tr, &axis)
	assert.Zero(t, tr.Tick)
	assert.True(t, tr.TelemetryDue())
}
