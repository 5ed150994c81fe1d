package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.einride.tech/can/pkg/socketcan"
)

// DialCAN opens a SocketCAN interface (e.g. "can0", "vcan0") for telemetry.
// The returned closer releases the socket.
func DialCAN(ctx context.Context, iface string) (Transmitter, io.Closer, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return socketcan.NewTransmitter(conn), conn, nil
}
