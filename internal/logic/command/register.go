package command

import "sync/atomic"

// Register holds the commanded drive level shared between the command
// context and the control tick. Only a Channel writes it, and only after
// validation.
type Register struct {
	level atomic.Int32
}

// Load returns the last accepted level, 0 before any command.
func (r *Register) Load() int {
	return int(r.level.Load())
}

func (r *Register) store(level int) {
	r.level.Store(int32(level))
}
