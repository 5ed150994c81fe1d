package scheduler

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/TwinAxis/internal/hw/encoder"
	"github.com/cjeanneret/TwinAxis/internal/logic/command"
	"github.com/cjeanneret/TwinAxis/internal/logic/control"
	"github.com/cjeanneret/TwinAxis/internal/telemetry"
)

type fakeCapture struct {
	pos uint32
}

func (f *fakeCapture) Position() uint32 { return f.pos }
func (f *fakeCapture) Direction() int32 { return 1 }
func (f *fakeCapture) VelocityMagnitude() uint32 { return 0 }
func (f *fakeCapture) SetPosition(pos uint32) { f.pos = pos }

type fixedLevel int

func (l fixedLevel) Load() int { return int(l) }

// recordingPublisher keeps published samples and accepts up to capacity.
type recordingPublisher struct {
	samples  []telemetry.Sample
	capacity int
}

func (p *recordingPublisher) Publish(s telemetry.Sample) bool {
	if len(p.samples) >= p.capacity {
		return false
	}
	p.samples = append(p.samples, s)
	return true
}

type fixture struct {
	sched  *Scheduler
	axis1  *fakeCapture
	axis2  *fakeCapture
	pub    *recordingPublisher
	ackCnt int
}

func newFixture(t *testing.T, cfg Config, level int) *fixture {
	t.Helper()
	f := &fixture{
		axis1: &fakeCapture{pos: control.DefaultSetpoint},
		axis2: &fakeCapture{pos: control.DefaultSetpoint},
		pub:   &recordingPublisher{capacity: 100},
	}
	f.sched = New(cfg, encoder.NewReader(f.axis1), encoder.NewReader(f.axis2), fixedLevel(level), f.pub)
	return f
}

func (f *fixture) ack() { f.ackCnt++ }

func (f *fixture) run(n int) {
	for i := 0; i < n; i++ {
		f.sched.Tick(f.ack)
	}
}

func defaultConfig() Config {
	axis := control.NewAxisState(control.DefaultSetpoint, control.DefaultKp, control.DefaultLimit)
	return Config{
		Axis1:      axis,
		Axis2:      axis,
		Trajectory: control.NewTrajectory(5, 0, 0),
	}
}

func TestTick_AcknowledgesEveryTick(t *testing.T) {
	f := newFixture(t, defaultConfig(), 0)
	f.run(7)
	assert.Equal(t, 7, f.ackCnt)
	assert.Equal(t, uint64(7), f.sched.Stats().Ticks)
}

func TestTick_RampAndSharedSetpoint(t *testing.T) {
	f := newFixture(t, defaultConfig(), 0)
	f.run(40)

	st := f.sched.Status()
	assert.Equal(t, uint32(2000000010), st.Axes[control.Axis1].Setpoint)
	assert.Equal(t, uint32(2000000010), st.Axes[control.Axis2].Setpoint)
	assert.Equal(t, int32(10), st.Axes[control.Axis1].LastError)
	assert.InDelta(t, -0.02, st.Axes[control.Axis1].LastOutput, 1e-9)
	assert.Equal(t, uint32(40), st.Trajectory.Tick)
}

func TestTick_IndependentSetpoint(t *testing.T) {
	cfg := defaultConfig()
	cfg.IndependentSetpoint = true
	cfg.Axis2.Setpoint = 1000
	f := newFixture(t, cfg, 0)
	f.run(40)

	st := f.sched.Status()
	assert.Equal(t, uint32(2000000010), st.Axes[control.Axis1].Setpoint)
	assert.Equal(t, uint32(1000), st.Axes[control.Axis2].Setpoint)
}

func TestTick_UsesCurrentPositions(t *testing.T) {
	f := newFixture(t, defaultConfig(), 0)
	f.axis1.pos = control.DefaultSetpoint + 100000
	f.axis2.pos = control.DefaultSetpoint - 1000
	f.run(1)

	st := f.sched.Status()
	assert.Equal(t, float64(control.DefaultLimit), st.Axes[control.Axis1].LastOutput)
	assert.InDelta(t, -2, st.Axes[control.Axis2].LastOutput, 1e-9)
	assert.Equal(t, f.axis1.pos, st.Snapshots[control.Axis1].Position)
	assert.Equal(t, f.axis2.pos, st.Snapshots[control.Axis2].Position)
}

func TestTick_TelemetryEveryTwoThousandTicks(t *testing.T) {
	f := newFixture(t, defaultConfig(), -42)
	f.axis2.pos = 7

	f.run(1999)
	assert.Empty(t, f.pub.samples)

	f.run(1)
	require.Len(t, f.pub.samples, 1)
	assert.Equal(t, telemetry.Sample{Tick: 2000, P1: control.DefaultSetpoint, P2: 7, Level: -42}, f.pub.samples[0])

	f.run(4000)
	assert.Len(t, f.pub.samples, 3)
	assert.Equal(t, uint64(3), f.sched.Stats().Published)
}

func TestTick_DropsWhenConsumerIsFull(t *testing.T) {
	f := newFixture(t, defaultConfig(), 0)
	f.pub.capacity = 1

	f.run(3 * control.DefaultTelemetryEvery)

	stats := f.sched.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Equal(t, uint64(3*control.DefaultTelemetryEvery), stats.Ticks)
}

func TestTick_NilPublisher(t *testing.T) {
	sched := New(defaultConfig(),
		encoder.NewReader(&fakeCapture{}), encoder.NewReader(&fakeCapture{}),
		fixedLevel(0), nil)
	for i := 0; i < control.DefaultTelemetryEvery; i++ {
		sched.Tick(func() {})
	}
	assert.Zero(t, sched.Stats().Published)
}

func TestTick_DoesNotAllocate(t *testing.T) {
	sched := New(defaultConfig(),
		encoder.NewReader(&fakeCapture{}), encoder.NewReader(&fakeCapture{}),
		fixedLevel(0), telemetry.NewBroadcaster())
	ack := func() {}
	allocs := testing.AllocsPerRun(5000, func() { sched.Tick(ack) })
	assert.Zero(t, allocs)
}

func TestNew_FillsZeroCadence(t *testing.T) {
	cfg := defaultConfig()
	cfg.Trajectory = control.Trajectory{}
	f := newFixture(t, cfg, 0)
	st := f.sched.Status()
	assert.Equal(t, uint32(control.DefaultRampEvery), st.Trajectory.RampEvery)
	assert.Equal(t, uint32(control.DefaultTelemetryEvery), st.Trajectory.TelemetryEvery)
}

func TestNew_PanicsOnMissingReader(t *testing.T) {
	assert.Panics(t, func() {
		New(defaultConfig(), nil, encoder.NewReader(&fakeCapture{}), fixedLevel(0), nil)
	})
}

// driveRecorder counts Drive calls from the command goroutine.
type driveRecorder struct {
	mu    sync.Mutex
	calls int
}

func (d *driveRecorder) Drive(control.AxisID, int) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
}

func TestTick_ConcurrentCommandsAndStatus(t *testing.T) {
	const ticks = 10 * control.DefaultTelemetryEvery

	reg := &command.Register{}
	act := &driveRecorder{}
	ch := command.NewChannel(reg, act)
	pub := &recordingPublisher{capacity: 100}
	sched := New(defaultConfig(),
		encoder.NewReader(&fakeCapture{pos: control.DefaultSetpoint}),
		encoder.NewReader(&fakeCapture{pos: control.DefaultSetpoint}),
		reg, pub)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := -85; v <= 85; v++ {
			assert.NoError(t, ch.Submit(strconv.Itoa(v)))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < ticks; i++ {
			sched.Tick(func() {})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var last uint32
		for {
			select {
			case <-done:
				return
			default:
			}
			st := sched.Status()
			assert.GreaterOrEqual(t, st.Trajectory.Tick, last)
			assert.Equal(t, st.Axes[control.Axis1].Setpoint, st.Axes[control.Axis2].Setpoint)
			last = st.Trajectory.Tick
		}
	}()

	wg.Wait()

	assert.Equal(t, 85, reg.Load())
	assert.Equal(t, 2*171, act.calls)
	stats := sched.Stats()
	assert.Equal(t, uint64(ticks), stats.Ticks)
	assert.Equal(t, uint64(10), stats.Published)
	assert.Zero(t, stats.Dropped)
	require.Len(t, pub.samples, 10)
	for _, s := range pub.samples {
		assert.GreaterOrEqual(t, s.Level, -85)
		assert.LessOrEqual(t, s.Level, 85)
	}
	assert.Equal(t, uint32(ticks), sched.Status().Trajectory.Tick)
}
