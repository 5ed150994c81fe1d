package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cjeanneret/TwinAxis/internal/debug"
	"github.com/cjeanneret/TwinAxis/internal/logic/control"
)

// Limits of the command line protocol.
const (
	DefaultMaxLevel = 85 // percent
	DefaultMaxLen   = 7  // characters, terminator excluded
)

// Rejection reasons.
var (
	ErrTooLong    = errors.New("input too long")
	ErrNotInteger = errors.New("not an integer")
	ErrOutOfRange = errors.New("level out of range")
)

// RejectedInput reports a command that was discarded. The commanded level
// is left unchanged.
type RejectedInput struct {
	Raw    string
	Value  int // parsed value, valid if Parsed
	Parsed bool
	Reason error
}

func (e *RejectedInput) Error() string {
	if e.Parsed {
		return fmt.Sprintf("rejected command %d: %v", e.Value, e.Reason)
	}
	return fmt.Sprintf("rejected command %q: %v", e.Raw, e.Reason)
}

func (e *RejectedInput) Unwrap() error {
	return e.Reason
}

// Actuators is the part of the actuator bank the channel drives.
type Actuators interface {
	Drive(axis control.AxisID, level int)
}

// Channel validates text commands and applies accepted levels to the
// register and to both motors.
type Channel struct {
	reg      *Register
	act      Actuators
	maxLevel int
	maxLen   int
}

// NewChannel creates a channel with the default protocol limits.
func NewChannel(reg *Register, act Actuators) *Channel {
	return &Channel{
		reg:      reg,
		act:      act,
		maxLevel: DefaultMaxLevel,
		maxLen:   DefaultMaxLen,
	}
}

// WithLimits overrides the accepted level magnitude and token length.
// Zero keeps the current value.
func (c *Channel) WithLimits(maxLevel, maxLen int) *Channel {
	if maxLevel > 0 {
		c.maxLevel = maxLevel
	}
	if maxLen > 0 {
		c.maxLen = maxLen
	}
	return c
}

// Parse validates raw and returns the level it commands.
func (c *Channel) Parse(raw string) (int, error) {
	token := strings.TrimSpace(raw)
	if len(token) > c.maxLen {
		return 0, &RejectedInput{Raw: raw, Reason: ErrTooLong}
	}
	v, err := strconv.Atoi(token)
	if err != nil {
		return 0, &RejectedInput{Raw: raw, Reason: ErrNotInteger}
	}
	if v > c.maxLevel || v < -c.maxLevel {
		return 0, &RejectedInput{Raw: raw, Value: v, Parsed: true, Reason: ErrOutOfRange}
	}
	return v, nil
}

// Submit applies one command. On success the register holds the new level
// and both motors have been driven with it, axis 1 first.
func (c *Channel) Submit(raw string) error {
	v, err := c.Parse(raw)
	if err != nil {
		return err
	}
	c.reg.store(v)
	for _, axis := range control.Axes {
		c.act.Drive(axis, v)
	}
	debug.Info("Commanded drive level set to %d%%", v)
	return nil
}

// Serve reads newline-terminated commands from r until EOF or ctx is
// cancelled, and writes a rejection notice to w for every discarded line.
// Cancellation is observed between lines; closing r unblocks a pending read.
func (c *Channel) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		err := c.Submit(line)
		var rejected *RejectedInput
		if errors.As(err, &rejected) {
			debug.Info("%v", rejected)
			if _, werr := io.WriteString(w, RejectionMessage(rejected)); werr != nil {
				return fmt.Errorf("write rejection: %w", werr)
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

// RejectionMessage renders the console notice for a rejected command: the
// requested value, then the invalid-input line.
func RejectionMessage(e *RejectedInput) string {
	requested := strings.TrimSpace(e.Raw)
	if e.Parsed {
		requested = strconv.Itoa(e.Value)
	}
	return fmt.Sprintf("Desired PWM: %s\nINVALID INPUT\n\n", requested)
}
