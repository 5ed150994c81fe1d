package encoder

// Capture is the hardware quadrature capture capability of one axis.
// Implementations must be safe to read from the tick context while they
// are being updated elsewhere.
type Capture interface {
	// Position returns the wrapping 32-bit position counter.
	Position() uint32
	// Direction returns +1 or -1, the most recent sense of rotation.
	Direction() int32
	// VelocityMagnitude returns the unsigned count delta of the last
	// completed capture window.
	VelocityMagnitude() uint32
	// SetPosition loads the position counter.
	SetPosition(pos uint32)
}

// Snapshot is the encoder-derived state of one axis at one tick.
type Snapshot struct {
	Position  uint32
	Direction int32
	Velocity  int32 // counts per capture window, signed by Direction
}

// Reader converts a Capture into Snapshots. It is bound to exactly one
// capture at construction.
type Reader struct {
	capture Capture
}

// NewReader binds a Reader to c. A missing capture is a wiring error and
// panics.
func NewReader(c Capture) *Reader {
	if c == nil {
		panic("encoder: reader needs a capture")
	}
	return &Reader{capture: c}
}

// Read latches position, direction and velocity.
func (r *Reader) Read() Snapshot {
	dir := int32(1)
	if r.capture.Direction() < 0 {
		dir = -1
	}
	return Snapshot{
		Position:  r.capture.Position(),
		Direction: dir,
		Velocity:  int32(r.capture.VelocityMagnitude()) * dir,
	}
}
