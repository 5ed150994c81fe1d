package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/TwinAxis/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MaxPWMClockHz is the fastest PWM clock derivable from the 19.2 MHz
// oscillator of the BCM2835 family (integer divider of at least 2).
const MaxPWMClockHz = 9600000

// ValidatePWM checks that a PWM period of cycle clock ticks at freqHz needs
// a clock of at most MaxPWMClockHz.
func ValidatePWM(freqHz int, cycle uint32) error {
	if freqHz <= 0 || cycle == 0 {
		return fmt.Errorf("invalid pwm frequency %d Hz / cycle %d", freqHz, cycle)
	}
	if clock := uint64(freqHz) * uint64(cycle); clock > MaxPWMClockHz {
		return fmt.Errorf("pwm clock %d Hz (%d Hz x %d) exceeds %d Hz", clock, freqHz, cycle, MaxPWMClockHz)
	}
	return nil
}

// PWMDriver drives hardware PWM channels. Duty is expressed as a fraction
// duty/cycle of the PWM period.
type PWMDriver interface {
	SetupPWM(pin int, freqHz int, cycle uint32) error
	SetDuty(pin int, duty uint32) error
	StopPWM(pin int) error
}

// Board combines digital GPIO and hardware PWM, which is what a motor
// channel needs.
type Board interface {
	Driver
	PWMDriver
}

// PWMState is the last state applied to a PWM pin of the mock driver.
type PWMState struct {
	FreqHz  int
	Cycle   uint32
	Duty    uint32
	Running bool
}

// MockDriver is a test implementation that logs actions and remembers pin
// state, so reads return what was last written.
// Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	pwm    map[int]PWMState
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Board, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// NewMockDriver returns an empty MockDriver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels: make(map[int]Level),
		pwm:    make(map[int]PWMState),
	}
}

func (m *MockDriver) init() {
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	if m.pwm == nil {
		m.pwm = make(map[int]PWMState)
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

// SetupPWM records the PWM configuration of pin.
func (m *MockDriver) SetupPWM(pin int, freqHz int, cycle uint32) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	if err := ValidatePWM(freqHz, cycle); err != nil {
		return fmt.Errorf("pwm pin %d: %w", pin, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.pwm[pin] = PWMState{FreqHz: freqHz, Cycle: cycle}
	return nil
}

// SetDuty records the duty and marks the channel running.
func (m *MockDriver) SetDuty(pin int, duty uint32) error {
	debug.GPIO("SetDuty", pin, duty)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	st, ok := m.pwm[pin]
	if !ok {
		return fmt.Errorf("pwm pin %d not set up", pin)
	}
	if duty > st.Cycle {
		duty = st.Cycle
	}
	st.Duty = duty
	st.Running = true
	m.pwm[pin] = st
	return nil
}

// StopPWM marks the channel stopped with zero duty.
func (m *MockDriver) StopPWM(pin int) error {
	debug.GPIO("StopPWM", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	st := m.pwm[pin]
	st.Duty = 0
	st.Running = false
	m.pwm[pin] = st
	return nil
}

// PWM returns the recorded state of a PWM pin.
func (m *MockDriver) PWM(pin int) PWMState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pwm[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
