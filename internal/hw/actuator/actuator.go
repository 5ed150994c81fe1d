package actuator

import (
	"fmt"
	"sync/atomic"

	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/cjeanneret/TwinAxis/internal/hw/gpio"
)

// MaxLevel is the largest drive magnitude in percent of the PWM period.
const MaxLevel = 100

// Default PWM timing: 20 kHz, one clock tick per percent of duty.
const (
	DefaultFreqHz        = 20000
	DefaultCycle  uint32 = 100
)

// Config holds the hardware configuration for one motor channel.
type Config struct {
	Name            string
	DirPin          int
	PWMPin          int
	EnablePin       int  // 0 = not used
	EnableActiveLow bool // driver enable polarity
	InvertDir       bool // swap which level of DirPin means "positive"
	FreqHz          int  // PWM frequency
	Cycle           uint32
}

// Output is anything that accepts a signed drive level in percent.
type Output interface {
	Drive(level int)
	Level() int
}

// Motor drives one DC motor through a direction pin, a PWM channel and an
// optional driver enable pin.
type Motor struct {
	board gpio.Board
	cfg   Config
	level atomic.Int32
}

// NewMotor configures the pins of a motor channel and leaves its output
// stage disabled.
func NewMotor(b gpio.Board, cfg Config) (*Motor, error) {
	if cfg.FreqHz <= 0 {
		cfg.FreqHz = DefaultFreqHz
	}
	if cfg.Cycle == 0 {
		cfg.Cycle = DefaultCycle
	}
	if err := b.SetupPin(cfg.DirPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("%s: setup dir pin %d: %w", cfg.Name, cfg.DirPin, err)
	}
	if err := b.SetupPWM(cfg.PWMPin, cfg.FreqHz, cfg.Cycle); err != nil {
		return nil, fmt.Errorf("%s: setup pwm pin %d: %w", cfg.Name, cfg.PWMPin, err)
	}
	if cfg.EnablePin > 0 {
		if err := b.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
			return nil, fmt.Errorf("%s: setup enable pin %d: %w", cfg.Name, cfg.EnablePin, err)
		}
	}

	m := &Motor{board: b, cfg: cfg}
	if err := m.disable(); err != nil {
		return nil, fmt.Errorf("%s: disable output: %w", cfg.Name, err)
	}
	return m, nil
}

// Drive applies a signed level in percent. Zero disables the output stage
// entirely and leaves the direction pin as it was. Levels beyond ±MaxLevel
// are clamped.
func (m *Motor) Drive(level int) {
	if level > MaxLevel {
		level = MaxLevel
	} else if level < -MaxLevel {
		level = -MaxLevel
	}
	m.level.Store(int32(level))

	var err error
	if level == 0 {
		err = m.disable()
		debug.Drive(m.cfg.Name, 0, "off")
	} else {
		err = m.enable(level)
	}
	if err != nil {
		debug.Error(fmt.Errorf("%s: drive %d: %w", m.cfg.Name, level, err))
	}
}

func (m *Motor) enable(level int) error {
	dirLevel := gpio.High
	direction := "forward"
	if level < 0 {
		dirLevel = gpio.Low
		direction = "backward"
		level = -level
	}
	if m.cfg.InvertDir {
		dirLevel = !dirLevel
	}

	debug.Drive(m.cfg.Name, level, direction)

	if err := m.board.WritePin(m.cfg.DirPin, dirLevel); err != nil {
		return err
	}
	duty := m.cfg.Cycle * uint32(level) / 100
	if err := m.board.SetDuty(m.cfg.PWMPin, duty); err != nil {
		return err
	}
	if m.cfg.EnablePin > 0 {
		return m.board.WritePin(m.cfg.EnablePin, m.enableLevel(true))
	}
	return nil
}

func (m *Motor) disable() error {
	if err := m.board.StopPWM(m.cfg.PWMPin); err != nil {
		return err
	}
	if m.cfg.EnablePin > 0 {
		return m.board.WritePin(m.cfg.EnablePin, m.enableLevel(false))
	}
	return nil
}

func (m *Motor) enableLevel(on bool) gpio.Level {
	if m.cfg.EnableActiveLow {
		return gpio.Level(!on)
	}
	return gpio.Level(on)
}

// Level returns the last level passed to Drive, after clamping.
func (m *Motor) Level() int {
	return int(m.level.Load())
}
