package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/TwinAxis/internal/hw/gpio"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 64 * 1024

// MaxRateHz bounds the control and sampling rates so their periods stay
// above zero.
const MaxRateHz = 1000000

// ControlConfig holds the control tick, trajectory and controller parameters.
type ControlConfig struct {
	RateHz              int     `yaml:"rate_hz"`              // control tick rate
	RampEvery           uint32  `yaml:"ramp_every"`           // ticks between two setpoint increments
	RampStep            int32   `yaml:"ramp_step"`            // counts added to the axis 1 setpoint per ramp
	TelemetryEvery      uint32  `yaml:"telemetry_every"`      // ticks between two telemetry samples
	SaturationLimit     int     `yaml:"saturation_limit"`     // controller output clamp
	Kp                  float64 `yaml:"kp"`                   // proportional gain
	InitialPosition     uint32  `yaml:"initial_position"`     // encoder counters and setpoints at startup
	IndependentSetpoint bool    `yaml:"independent_setpoint"` // axis 2 keeps its own setpoint
}

// CommandConfig bounds operator commands.
type CommandConfig struct {
	MaxLevel int `yaml:"max_level"` // accepted drive levels are [-max_level, max_level]
	MaxLen   int `yaml:"max_len"`   // longest accepted token
}

// AxisConfig holds the pins of one motor channel and its encoder (BCM numbering).
type AxisConfig struct {
	DirPin          int    `yaml:"dir_pin"`
	PWMPin          int    `yaml:"pwm_pin"`
	EnablePin       int    `yaml:"enable_pin"` // 0 = not used
	EnableActiveLow bool   `yaml:"enable_active_low"`
	EncAPin         int    `yaml:"enc_a_pin"`
	EncBPin         int    `yaml:"enc_b_pin"`
	InvertDir       bool   `yaml:"invert_dir"`
	PWMFreqHz       int    `yaml:"pwm_freq_hz"`
	PWMCycle        uint32 `yaml:"pwm_cycle"` // PWM clock ticks per period
}

// EncoderConfig holds the software quadrature decoder parameters.
type EncoderConfig struct {
	SampleHz       int    `yaml:"sample_hz"`       // phase sampling rate
	VelocityWindow uint32 `yaml:"velocity_window"` // samples per velocity capture window
}

// SerialConfig selects the operator console. An empty device means stdin/stdout.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// CANConfig enables telemetry frames on a SocketCAN interface.
type CANConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface"`
	FrameID   uint32 `yaml:"frame_id"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO and a simulated plant (true=dev/test, false=real Raspberry Pi)
}

// SimConfig describes the simulated plant used with mock GPIO.
type SimConfig struct {
	CountsPerSecondPerPercent float64 `yaml:"counts_per_second_per_percent"`
}

// Config aggregates all application configuration.
type Config struct {
	Control  ControlConfig  `yaml:"control"`
	Command  CommandConfig  `yaml:"command"`
	Axis1    AxisConfig     `yaml:"axis1"`
	Axis2    AxisConfig     `yaml:"axis2"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Serial   SerialConfig   `yaml:"serial"`
	CAN      CANConfig      `yaml:"can"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Sim      SimConfig      `yaml:"sim"`
}

// Default returns the configuration used for every field a file leaves unset.
func Default() *Config {
	cfg := &Config{
		Axis1: AxisConfig{DirPin: 23, PWMPin: 18, EnablePin: 24, EncAPin: 5, EncBPin: 6},
		Axis2: AxisConfig{DirPin: 27, PWMPin: 19, EnablePin: 22, EncAPin: 16, EncBPin: 26},
	}
	cfg.applyDefaults()
	return cfg
}

// ValidateConfigPath accepts only .yaml files located directly in a
// "configs" directory, without any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Control.RateHz == 0 {
		c.Control.RateHz = 10000
	}
	if c.Control.RampEvery == 0 {
		c.Control.RampEvery = 20
	}
	if c.Control.TelemetryEvery == 0 {
		c.Control.TelemetryEvery = 2000
	}
	if c.Control.SaturationLimit == 0 {
		c.Control.SaturationLimit = 40
	}
	if c.Control.Kp == 0 {
		c.Control.Kp = 0.0020
	}
	if c.Control.InitialPosition == 0 {
		c.Control.InitialPosition = 2000000000
	}
	if c.Command.MaxLevel == 0 {
		c.Command.MaxLevel = 85
	}
	if c.Command.MaxLen == 0 {
		c.Command.MaxLen = 7
	}
	for _, a := range []*AxisConfig{&c.Axis1, &c.Axis2} {
		if a.PWMFreqHz == 0 {
			a.PWMFreqHz = 20000
		}
		if a.PWMCycle == 0 {
			a.PWMCycle = 100
		}
	}
	if c.Encoder.SampleHz == 0 {
		c.Encoder.SampleHz = 20000
	}
	if c.Encoder.VelocityWindow == 0 {
		c.Encoder.VelocityWindow = 2000
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.CAN.Interface == "" {
		c.CAN.Interface = "can0"
	}
	if c.CAN.FrameID == 0 {
		c.CAN.FrameID = 0x310
	}
	if c.Sim.CountsPerSecondPerPercent == 0 {
		c.Sim.CountsPerSecondPerPercent = 2000
	}
}

// Validate reports the first out-of-range field.
func (c *Config) Validate() error {
	if c.Control.RateHz < 0 || c.Control.RateHz > MaxRateHz {
		return fmt.Errorf("control.rate_hz must be between 1 and %d, got %d", MaxRateHz, c.Control.RateHz)
	}
	if c.Control.SaturationLimit < 0 {
		return fmt.Errorf("control.saturation_limit must be > 0, got %d", c.Control.SaturationLimit)
	}
	if c.Control.Kp < 0 {
		return fmt.Errorf("control.kp must be >= 0, got %g", c.Control.Kp)
	}
	if c.Command.MaxLevel < 0 || c.Command.MaxLevel > 100 {
		return fmt.Errorf("command.max_level must be between 1 and 100, got %d", c.Command.MaxLevel)
	}
	if c.Command.MaxLen < 0 {
		return fmt.Errorf("command.max_len must be > 0, got %d", c.Command.MaxLen)
	}
	if c.Encoder.SampleHz < 0 || c.Encoder.SampleHz > MaxRateHz {
		return fmt.Errorf("encoder.sample_hz must be between 1 and %d, got %d", MaxRateHz, c.Encoder.SampleHz)
	}
	if err := c.Axis1.validate(); err != nil {
		return fmt.Errorf("axis1: %w", err)
	}
	if err := c.Axis2.validate(); err != nil {
		return fmt.Errorf("axis2: %w", err)
	}
	if c.Axis1.PWMPin == c.Axis2.PWMPin {
		return fmt.Errorf("axis1 and axis2 share pwm_pin %d", c.Axis1.PWMPin)
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be > 0, got %d", c.Serial.Baud)
	}
	if c.CAN.FrameID > 0x7fe {
		return fmt.Errorf("can.frame_id must leave room for two standard IDs, got %#x", c.CAN.FrameID)
	}
	if c.Sim.CountsPerSecondPerPercent < 0 {
		return fmt.Errorf("sim.counts_per_second_per_percent must be > 0, got %g", c.Sim.CountsPerSecondPerPercent)
	}
	return nil
}

func (a AxisConfig) validate() error {
	pins := []struct {
		name string
		pin  int
	}{
		{"dir_pin", a.DirPin},
		{"pwm_pin", a.PWMPin},
		{"enc_a_pin", a.EncAPin},
		{"enc_b_pin", a.EncBPin},
	}
	for _, p := range pins {
		if p.pin <= 0 || p.pin > 27 {
			return fmt.Errorf("%s must be a BCM pin between 1 and 27, got %d", p.name, p.pin)
		}
	}
	if a.EnablePin < 0 || a.EnablePin > 27 {
		return fmt.Errorf("enable_pin must be 0 or a BCM pin up to 27, got %d", a.EnablePin)
	}
	if err := gpio.ValidatePWM(a.PWMFreqHz, a.PWMCycle); err != nil {
		return fmt.Errorf("pwm_freq_hz/pwm_cycle: %w", err)
	}
	return nil
}

// TickPeriod returns the duration between two control ticks.
func (c *Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.Control.RateHz)
}

// VelocityWindow returns the duration of one velocity capture window.
func (c *Config) VelocityWindow() time.Duration {
	return time.Duration(c.Encoder.VelocityWindow) * time.Second / time.Duration(c.Encoder.SampleHz)
}
