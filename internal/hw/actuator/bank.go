package actuator

import (
	"sync"

	"github.com/cjeanneret/TwinAxis/internal/logic/control"
)

// Bank addresses the motor of each axis. Once disabled it ignores further
// drive requests, so nothing reaches the pins after shutdown.
type Bank struct {
	mu       sync.Mutex
	outputs  [control.NumAxes]Output
	disabled bool
}

// NewBank builds a bank from the axis 1 and axis 2 outputs.
func NewBank(axis1, axis2 Output) *Bank {
	if axis1 == nil || axis2 == nil {
		panic("actuator: bank needs an output per axis")
	}
	return &Bank{outputs: [control.NumAxes]Output{axis1, axis2}}
}

// Drive applies level to the motor of axis.
func (b *Bank) Drive(axis control.AxisID, level int) {
	if !axis.Valid() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disabled {
		return
	}
	b.outputs[axis].Drive(level)
}

// DriveAll applies the same level to both motors, axis 1 first.
func (b *Bank) DriveAll(level int) {
	for _, axis := range control.Axes {
		b.Drive(axis, level)
	}
}

// Disable turns both output stages off for good. It is safe to call more
// than once.
func (b *Bank) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disabled {
		return
	}
	for _, out := range b.outputs {
		out.Drive(0)
	}
	b.disabled = true
}

// Level returns the last level driven on axis.
func (b *Bank) Level(axis control.AxisID) int {
	if !axis.Valid() {
		return 0
	}
	return b.outputs[axis].Level()
}
