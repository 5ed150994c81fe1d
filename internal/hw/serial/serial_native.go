package serial

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
	cfg  *Config
	wmu  sync.Mutex
}

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device is required")
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	debug.Verbose("Serial port %s open at %d baud", cfg.Device, baud)

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.port.Write(b)
}

// Close closes the serial port. A blocked Read returns once the port is
// closed.
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input and unsent output.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
