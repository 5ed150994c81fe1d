package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// Pins of the BCM2835 family that can be routed to a hardware PWM channel.
var pwmCapable = map[int]bool{
	12: true,
	13: true,
	18: true,
	19: true,
}

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	mu     sync.Mutex
	pins   map[int]rpio.Pin
	cycles map[int]uint32
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:   make(map[int]rpio.Pin),
		cycles: make(map[int]uint32),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupPin(pin, mode)
}

func (r *RPiDriver) setupPin(pin int, mode PinMode) error {
	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.setupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	r.mu.Lock()
	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.setupPin(pin, Input); err != nil {
			r.mu.Unlock()
			return Low, err
		}
		p = r.pins[pin]
	}
	r.mu.Unlock()

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// SetupPWM routes pin to its hardware PWM channel. The PWM clock is set to
// freqHz*cycle so that one period spans cycle clock ticks.
func (r *RPiDriver) SetupPWM(pin int, freqHz int, cycle uint32) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	if !pwmCapable[pin] {
		return fmt.Errorf("pin %d has no hardware PWM channel", pin)
	}
	if err := ValidatePWM(freqHz, cycle); err != nil {
		return fmt.Errorf("pwm pin %d: %w", pin, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(freqHz * int(cycle))
	p.DutyCycle(0, cycle)
	r.pins[pin] = p
	r.cycles[pin] = cycle
	return nil
}

func (r *RPiDriver) SetDuty(pin int, duty uint32) error {
	debug.GPIO("SetDuty", pin, duty)
	r.mu.Lock()
	defer r.mu.Unlock()

	cycle, ok := r.cycles[pin]
	if !ok {
		return fmt.Errorf("pwm pin %d not set up", pin)
	}
	p := r.pins[pin]
	// A stopped channel is parked as a plain low output; re-route it first.
	p.Mode(rpio.Pwm)
	if duty > cycle {
		duty = cycle
	}
	p.DutyCycle(duty, cycle)
	return nil
}

// StopPWM parks the pin as a low digital output so no residual pulses reach
// the motor driver.
func (r *RPiDriver) StopPWM(pin int) error {
	debug.GPIO("StopPWM", pin, nil)
	r.mu.Lock()
	defer r.mu.Unlock()

	cycle, ok := r.cycles[pin]
	if !ok {
		return fmt.Errorf("pwm pin %d not set up", pin)
	}
	p := r.pins[pin]
	p.DutyCycle(0, cycle)
	p.Output()
	p.Low()
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")
	r.mu.Lock()
	defer r.mu.Unlock()

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
