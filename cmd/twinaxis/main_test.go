package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cjeanneret/TwinAxis/internal/config"
	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/cjeanneret/TwinAxis/internal/hw/gpio"
	"github.com/cjeanneret/TwinAxis/internal/hw/sim"
	"github.com/cjeanneret/TwinAxis/internal/hw/timer"
	"github.com/cjeanneret/TwinAxis/internal/logic/command"
	"github.com/cjeanneret/TwinAxis/internal/logic/control"
	"github.com/cjeanneret/TwinAxis/internal/telemetry"
)

// ---------- applyOverrides ----------

func TestApplyOverrides_KeepsConfigByDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Serial.Device = "/dev/serial0"
	cfg.Defaults.DebugLevel = 2
	if err := applyOverrides(cfg, overrides{DebugLevel: -1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Device != "/dev/serial0" {
		t.Errorf("serial device = %q, want /dev/serial0", cfg.Serial.Device)
	}
	if cfg.Defaults.DebugLevel != 2 {
		t.Errorf("debug level = %d, want 2", cfg.Defaults.DebugLevel)
	}
	if cfg.Defaults.MockGPIO {
		t.Error("mock should stay off")
	}
}

func TestApplyOverrides_Applies(t *testing.T) {
	cfg := config.Default()
	if err := applyOverrides(cfg, overrides{Serial: "/dev/ttyUSB0", Mock: true, DebugLevel: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" {
		t.Errorf("serial device = %q, want /dev/ttyUSB0", cfg.Serial.Device)
	}
	if !cfg.Defaults.MockGPIO {
		t.Error("mock should be on")
	}
	if cfg.Defaults.DebugLevel != 0 {
		t.Errorf("debug level = %d, want 0", cfg.Defaults.DebugLevel)
	}
}

func TestApplyOverrides_InvalidDebugLevel(t *testing.T) {
	if err := applyOverrides(config.Default(), overrides{DebugLevel: 5}); err == nil {
		t.Error("expected error for debug level 5, got nil")
	}
}

// ---------- plant wiring ----------

func TestMotorConfig(t *testing.T) {
	cfg := config.Default()
	mc := motorConfig("axis2", cfg.Axis2)
	if mc.Name != "axis2" || mc.PWMPin != 19 || mc.DirPin != 27 || mc.EnablePin != 22 {
		t.Errorf("motor config = %+v", mc)
	}
	if mc.FreqHz != 20000 || mc.Cycle != 100 {
		t.Errorf("pwm = %d Hz / %d, want 20000 / 100", mc.FreqHz, mc.Cycle)
	}
}

func TestNewPlant_Mock(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.MockGPIO = true
	board := gpio.NewMockDriver()

	p, err := newPlant(board, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.pollers) != 0 {
		t.Errorf("mock plant has %d pollers, want 0", len(p.pollers))
	}
	for _, axis := range control.Axes {
		if _, ok := p.outputs[axis].(*sim.Motor); !ok {
			t.Errorf("%s output is %T, want *sim.Motor", axis, p.outputs[axis])
		}
		if got := p.captures[axis].Position(); got < cfg.Control.InitialPosition {
			t.Errorf("%s position = %d, want >= %d", axis, got, cfg.Control.InitialPosition)
		}
	}

	p.outputs[control.Axis1].Drive(40)
	if st := board.PWM(cfg.Axis1.PWMPin); !st.Running || st.Duty != 40 {
		t.Errorf("axis1 pwm = %+v, want running at duty 40", st)
	}
}

func TestNewPlant_Hardware(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.MockGPIO = false

	p, err := newPlant(gpio.NewMockDriver(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.pollers) != 2 {
		t.Fatalf("pollers = %d, want 2", len(p.pollers))
	}
	if p.pollers[1].PinA != cfg.Axis2.EncAPin || p.pollers[1].PinB != cfg.Axis2.EncBPin {
		t.Errorf("axis2 poller pins = %d/%d", p.pollers[1].PinA, p.pollers[1].PinB)
	}
	if got := p.captures[control.Axis1].Position(); got != cfg.Control.InitialPosition {
		t.Errorf("axis1 position = %d, want %d", got, cfg.Control.InitialPosition)
	}
}

// ---------- end to end ----------

// collectPublisher keeps every published sample.
type collectPublisher struct {
	samples []telemetry.Sample
}

func (c *collectPublisher) Publish(s telemetry.Sample) bool {
	c.samples = append(c.samples, s)
	return true
}

func TestScheduler_CommandReachesTelemetry(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.MockGPIO = false
	cfg.Control.RampStep = 5

	p, err := newPlant(gpio.NewMockDriver(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg := &command.Register{}
	ch := command.NewChannel(reg, noopActuators{})
	if err := ch.Submit("-30"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	pub := &collectPublisher{}
	sched := newScheduler(cfg, p, reg, pub)
	for i := 0; i < 2000; i++ {
		sched.Tick(func() {})
	}

	if len(pub.samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(pub.samples))
	}
	s := pub.samples[0]
	if s.Level != -30 || s.P1 != cfg.Control.InitialPosition || s.Tick != 2000 {
		t.Errorf("sample = %+v", s)
	}
	st := sched.Status()
	if want := cfg.Control.InitialPosition + 500; st.Axes[control.Axis2].Setpoint != want {
		t.Errorf("axis2 setpoint = %d, want %d", st.Axes[control.Axis2].Setpoint, want)
	}
}

type noopActuators struct{}

func (noopActuators) Drive(control.AxisID, int) {}

func TestReportShutdown_EncoderErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Defaults.MockGPIO = false
	p, err := newPlant(gpio.NewMockDriver(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// a double transition on axis 2
	dec := p.pollers[control.Axis2].Decoder
	dec.Sample(gpio.Low, gpio.Low)
	dec.Sample(gpio.High, gpio.High)

	sched := newScheduler(cfg, p, &command.Register{}, nil)
	tick := &timer.Periodic{RateHz: cfg.Control.RateHz}
	tick.Fire(sched.Tick)

	debug.Init(debug.LevelInfo)
	defer debug.Init(debug.LevelOff)
	var buf bytes.Buffer
	debug.SetOutput(&buf)

	reportShutdown(sched, tick, p)

	out := buf.String()
	for _, want := range []string{"Ticks = 1", "Timer expiries = 1", "axis1 encoder errors = 0", "axis2 encoder errors = 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("shutdown summary missing %q:\n%s", want, out)
		}
	}
}
