package telemetry

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.einride.tech/can"
)

// DefaultFrameID is the base identifier of the telemetry frames.
const DefaultFrameID = 0x310

// Transmitter sends CAN frames; socketcan.Transmitter satisfies it.
type Transmitter interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

// EncodeFrames packs s into two classic CAN frames:
//
//	id:   P1 (uint32 LE) | P2 (uint32 LE)
//	id+1: level (int8)   | tick (uint32 LE)
func EncodeFrames(s Sample, id uint32) [2]can.Frame {
	var positions can.Frame
	positions.ID = id
	positions.Length = 8
	binary.LittleEndian.PutUint32(positions.Data[0:4], s.P1)
	binary.LittleEndian.PutUint32(positions.Data[4:8], s.P2)

	var command can.Frame
	command.ID = id + 1
	command.Length = 5
	command.Data[0] = byte(int8(s.Level))
	binary.LittleEndian.PutUint32(command.Data[1:5], s.Tick)

	return [2]can.Frame{positions, command}
}

// DecodeFrames is the inverse of EncodeFrames.
func DecodeFrames(positions, command can.Frame) (Sample, error) {
	if positions.Length != 8 || command.Length != 5 || command.ID != positions.ID+1 {
		return Sample{}, fmt.Errorf("telemetry frames 0x%X/0x%X: unexpected layout", positions.ID, command.ID)
	}
	return Sample{
		P1:    binary.LittleEndian.Uint32(positions.Data[0:4]),
		P2:    binary.LittleEndian.Uint32(positions.Data[4:8]),
		Level: int(int8(command.Data[0])),
		Tick:  binary.LittleEndian.Uint32(command.Data[1:5]),
	}, nil
}

// CANSink transmits samples on a CAN bus.
type CANSink struct {
	TX Transmitter
	ID uint32
}

func (c *CANSink) Emit(ctx context.Context, s Sample) error {
	for _, f := range EncodeFrames(s, c.ID) {
		if err := c.TX.TransmitFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit frame 0x%X: %w", f.ID, err)
		}
	}
	return nil
}
