//go:build !linux

package telemetry

import (
	"context"
	"fmt"
	"io"
)

// DialCAN is only available on Linux.
func DialCAN(_ context.Context, iface string) (Transmitter, io.Closer, error) {
	return nil, nil, fmt.Errorf("socketcan %s: not supported on this platform", iface)
}
