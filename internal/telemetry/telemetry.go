package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/cjeanneret/TwinAxis/internal/debug"
)

// Sample is one telemetry record taken by the control tick.
type Sample struct {
	Tick  uint32
	P1    uint32 // axis 1 position
	P2    uint32 // axis 2 position
	Level int    // last commanded drive level
}

// Format renders s as a console telemetry line.
func Format(s Sample) string {
	return fmt.Sprintf("P1 = %d | P2 = %d | PWM = %d\n", s.P1, s.P2, s.Level)
}

// Sink consumes telemetry samples outside the control tick.
type Sink interface {
	Emit(ctx context.Context, s Sample) error
}

// TextSink writes formatted lines, e.g. to the serial console.
type TextSink struct {
	W io.Writer
}

func (t *TextSink) Emit(_ context.Context, s Sample) error {
	line := Format(s)
	debug.Live("%s", line[:len(line)-1])
	_, err := io.WriteString(t.W, line)
	return err
}

// Pump forwards samples from ch to sink until ctx is done or ch is closed.
// A failing sink is logged and skipped; samples are never redelivered.
func Pump(ctx context.Context, ch <-chan Sample, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			if err := sink.Emit(ctx, s); err != nil {
				debug.Error(fmt.Errorf("telemetry sink: %w", err))
			}
		}
	}
}
