package serial

import (
	"io"
	"os"
	"sync"
)

// DefaultBaud is the console rate of the controller (8-N-1).
const DefaultBaud = 115200

// Port is the byte stream carrying operator commands in and telemetry out.
// Write must be safe for concurrent use: the command loop and the telemetry
// pump share the port.
type Port interface {
	io.ReadWriteCloser

	// Flush discards stale buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "/dev/serial0")
	Device string

	// Baud rate, DefaultBaud when 0
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the console configuration for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device: device,
		Baud:   DefaultBaud,
	}
}

// stdioPort exposes the process console as a Port.
type stdioPort struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex
}

// Stdio returns a Port reading os.Stdin and writing os.Stdout. Closing it
// leaves the underlying files open.
func Stdio() Port {
	return &stdioPort{in: os.Stdin, out: os.Stdout}
}

func (p *stdioPort) Read(b []byte) (int, error) {
	return p.in.Read(b)
}

func (p *stdioPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *stdioPort) Close() error { return nil }
func (p *stdioPort) Flush() error { return nil }
