//go:build !linux

// Package socketcan delivers frames from a Linux raw CAN socket. On other
// platforms only the replay and slcan sources are available.
package socketcan

import (
	"context"
	"errors"

	"github.com/banshee-data/canwatch/internal/canbus"
)

// ErrUnsupported is returned by Open on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan requires Linux")

// Socket is a stub on non-Linux platforms.
type Socket struct{}

// Open always fails on non-Linux platforms.
func Open(device string, filters []canbus.Filter) (*Socket, error) {
	return nil, ErrUnsupported
}

// Read always fails on non-Linux platforms.
func (s *Socket) Read(ctx context.Context) (canbus.Frame, error) {
	return canbus.Frame{}, ErrUnsupported
}

// Close is a no-op on non-Linux platforms.
func (s *Socket) Close() error { return nil }

// String identifies the stub for diagnostics.
func (s *Socket) String() string { return "can:unsupported" }
