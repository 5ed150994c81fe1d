package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/TwinAxis/internal/config"
	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/cjeanneret/TwinAxis/internal/hw/actuator"
	"github.com/cjeanneret/TwinAxis/internal/hw/encoder"
	"github.com/cjeanneret/TwinAxis/internal/hw/gpio"
	"github.com/cjeanneret/TwinAxis/internal/hw/serial"
	"github.com/cjeanneret/TwinAxis/internal/hw/sim"
	"github.com/cjeanneret/TwinAxis/internal/hw/timer"
	"github.com/cjeanneret/TwinAxis/internal/logic/command"
	"github.com/cjeanneret/TwinAxis/internal/logic/control"
	"github.com/cjeanneret/TwinAxis/internal/logic/scheduler"
	"github.com/cjeanneret/TwinAxis/internal/telemetry"
)

// greeting is written to the console once the loop is running.
const greeting = "Hi!\n"

// overrides are the CLI values that take precedence over the config file.
type overrides struct {
	Serial     string
	Mock       bool
	DebugLevel int // -1 = keep config value
}

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	serialDev := flag.String("serial", "", "serial device for the operator console (empty = config value, then stdin/stdout)")
	mock := flag.Bool("mock", false, "force mock GPIO and the simulated plant")
	debugLevel := flag.Int("debug", -1, "override debug level 0-4")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		debug.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		debug.Fatalf("load config failed: %v", err)
	}
	if err := applyOverrides(cfg, overrides{Serial: *serialDev, Mock: *mock, DebugLevel: *debugLevel}); err != nil {
		debug.Fatalf("invalid CLI override: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	if cfg.Serial.Device == "" {
		// stdout carries the console protocol
		debug.SetOutput(os.Stderr)
	}
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg); err != nil {
		debug.Fatalf("%v", err)
	}
}

// applyOverrides mutates cfg with the CLI values that were set.
func applyOverrides(cfg *config.Config, o overrides) error {
	if o.DebugLevel > 4 {
		return fmt.Errorf("debug level must be between 0 and 4, got %d", o.DebugLevel)
	}
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.Serial != "" {
		cfg.Serial.Device = o.Serial
	}
	if o.Mock {
		cfg.Defaults.MockGPIO = true
	}
	return nil
}

// plant is the hardware seen by the control loop: one output and one
// encoder capture per axis, plus the pollers feeding software decoders.
type plant struct {
	outputs  [control.NumAxes]actuator.Output
	captures [control.NumAxes]encoder.Capture
	pollers  []*encoder.Poller
}

// motorConfig maps the config of one axis onto its motor channel.
func motorConfig(name string, a config.AxisConfig) actuator.Config {
	return actuator.Config{
		Name:            name,
		DirPin:          a.DirPin,
		PWMPin:          a.PWMPin,
		EnablePin:       a.EnablePin,
		EnableActiveLow: a.EnableActiveLow,
		InvertDir:       a.InvertDir,
		FreqHz:          a.PWMFreqHz,
		Cycle:           a.PWMCycle,
	}
}

// newPlant builds the motors on board. With mock GPIO each motor is wrapped
// in a simulated axis that also serves as its encoder; otherwise the encoder
// phases are decoded in software from the configured pins.
func newPlant(board gpio.Board, cfg *config.Config) (*plant, error) {
	p := &plant{}
	axes := [control.NumAxes]config.AxisConfig{cfg.Axis1, cfg.Axis2}
	for _, axis := range control.Axes {
		motor, err := actuator.NewMotor(board, motorConfig(axis.String(), axes[axis]))
		if err != nil {
			return nil, fmt.Errorf("init motor: %w", err)
		}
		if cfg.Defaults.MockGPIO {
			s := sim.NewMotor(motor, cfg.Sim.CountsPerSecondPerPercent, cfg.VelocityWindow())
			p.outputs[axis] = s
			p.captures[axis] = s
		} else {
			q := encoder.NewQuadrature(cfg.Encoder.VelocityWindow)
			p.outputs[axis] = motor
			p.captures[axis] = q
			p.pollers = append(p.pollers, &encoder.Poller{
				Pins:    board,
				PinA:    axes[axis].EncAPin,
				PinB:    axes[axis].EncBPin,
				RateHz:  cfg.Encoder.SampleHz,
				Decoder: q,
			})
		}
		p.captures[axis].SetPosition(cfg.Control.InitialPosition)
		debug.PrintStruct(axis.String()+" config", axes[axis])
	}
	return p, nil
}

// newScheduler builds the control tick from the configuration.
func newScheduler(cfg *config.Config, p *plant, reg *command.Register, pub scheduler.Publisher) *scheduler.Scheduler {
	axis := control.NewAxisState(cfg.Control.InitialPosition, cfg.Control.Kp, cfg.Control.SaturationLimit)
	return scheduler.New(scheduler.Config{
		Axis1:               axis,
		Axis2:               axis,
		Trajectory:          control.NewTrajectory(cfg.Control.RampStep, cfg.Control.RampEvery, cfg.Control.TelemetryEvery),
		IndependentSetpoint: cfg.Control.IndependentSetpoint,
	},
		encoder.NewReader(p.captures[control.Axis1]),
		encoder.NewReader(p.captures[control.Axis2]),
		reg, pub)
}

func openConsole(cfg config.SerialConfig) (serial.Port, error) {
	if cfg.Device == "" {
		debug.Verbose("Console on stdin/stdout")
		return serial.Stdio(), nil
	}
	return serial.Open(&serial.Config{Device: cfg.Device, Baud: cfg.Baud})
}

// run brings the controller up and blocks until ctx is cancelled or a
// goroutine fails. The motors are disabled on the way out.
func run(ctx context.Context, cfg *config.Config) error {
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	board, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO failed: %w", err)
	}
	defer func() {
		if err := board.Close(); err != nil {
			debug.Error(fmt.Errorf("closing GPIO driver failed: %w", err))
		}
	}()

	debug.Step(2, "Initializing motors and encoders")
	p, err := newPlant(board, cfg)
	if err != nil {
		return err
	}
	bank := actuator.NewBank(p.outputs[control.Axis1], p.outputs[control.Axis2])
	defer bank.Disable()

	debug.Step(3, "Opening console")
	port, err := openConsole(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		debug.Error(fmt.Errorf("flush console: %w", err))
	}

	debug.Step(4, "Starting control loop")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	reg := &command.Register{}
	channel := command.NewChannel(reg, bank).WithLimits(cfg.Command.MaxLevel, cfg.Command.MaxLen)
	broadcaster := telemetry.NewBroadcaster()
	sched := newScheduler(cfg, p, reg, broadcaster)

	text, unsubscribe := broadcaster.Subscribe(4)
	defer unsubscribe()
	g.Go(func() error {
		return telemetry.Pump(gctx, text, &telemetry.TextSink{W: port})
	})

	if cfg.CAN.Enabled {
		tx, closer, err := telemetry.DialCAN(gctx, cfg.CAN.Interface)
		if err != nil {
			return err
		}
		defer closer.Close()
		frames, unsubscribe := broadcaster.Subscribe(4)
		defer unsubscribe()
		g.Go(func() error {
			return telemetry.Pump(gctx, frames, &telemetry.CANSink{TX: tx, ID: cfg.CAN.FrameID})
		})
		debug.Info("CAN telemetry on %s, frame id %#x", cfg.CAN.Interface, cfg.CAN.FrameID)
	}

	for _, poller := range p.pollers {
		poller := poller
		g.Go(func() error { return poller.Run(gctx) })
	}

	tick := &timer.Periodic{RateHz: cfg.Control.RateHz}
	g.Go(func() error { return tick.Run(gctx, sched.Tick) })

	g.Go(func() error {
		reportStatus(gctx, sched, bank, time.Second)
		return nil
	})

	if _, err := io.WriteString(port, greeting); err != nil {
		cancel()
		return fmt.Errorf("write greeting: %w", err)
	}

	// The console read blocks outside the group: a stdin read cannot be
	// interrupted, and shutdown must not wait for it.
	go func() {
		if err := channel.Serve(gctx, port, port); err != nil {
			debug.Error(err)
			cancel()
		}
		debug.Verbose("Command channel closed")
	}()

	debug.Info("Control loop running at %d Hz", cfg.Control.RateHz)
	err = g.Wait()

	reportShutdown(sched, tick, p)
	return err
}

// reportShutdown logs the run counters once the loop has stopped.
func reportShutdown(sched *scheduler.Scheduler, tick *timer.Periodic, p *plant) {
	stats := sched.Stats()
	debug.Summary("Shutdown")
	debug.Value("Ticks", stats.Ticks)
	debug.Value("Telemetry published", stats.Published)
	debug.Value("Telemetry dropped", stats.Dropped)
	debug.Value("Timer expiries", tick.Fired())
	debug.Value("Unacknowledged ticks", tick.Unacknowledged())
	for i, poller := range p.pollers {
		debug.Value(control.Axes[i].String()+" encoder errors", poller.Decoder.Errors())
	}
}

// reportStatus logs the control state at period until ctx is done.
func reportStatus(ctx context.Context, sched *scheduler.Scheduler, bank *actuator.Bank, period time.Duration) {
	if !debug.IsEnabled(debug.LevelVerbose) {
		return
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := sched.Status()
			for _, axis := range control.Axes {
				debug.Verbose("%s: setpoint=%d position=%d velocity=%d error=%d output=%.2f drive=%d",
					axis, st.Axes[axis].Setpoint, st.Snapshots[axis].Position,
					st.Snapshots[axis].Velocity, st.Axes[axis].LastError, st.Axes[axis].LastOutput,
					bank.Level(axis))
			}
		}
	}
}
