//go:build linux

// Package socketcan delivers frames from a Linux raw CAN socket. Kernel
// acceptance filters are installed at startup, so the process only ever
// wakes for identifiers it was asked to watch.
package socketcan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/banshee-data/canwatch/internal/canbus"
)

// Socket is a raw AF_CAN socket bound to one interface. It implements
// canbus.Source.
type Socket struct {
	fd     int
	device string

	closeOnce sync.Once
	closeErr  error
}

// Open creates a raw CAN socket, installs the acceptance filters and binds
// it to the named interface. An empty name or "any" binds to all CAN
// interfaces. Each failing step is identified in the returned error.
func Open(device string, filters []canbus.Filter) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket PF_CAN: %w", err)
	}

	ifindex := 0
	if device != "" && device != "any" {
		ifi, err := net.InterfaceByName(device)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("device %q not found: %w", device, err)
		}
		ifindex = ifi.Index
	}

	if len(filters) > 0 {
		raw := make([]unix.CanFilter, len(filters))
		for i, f := range filters {
			raw[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
		}
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, raw); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("setsockopt %d filters: %w", len(filters), err)
		}
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifindex}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", device, err)
	}

	return &Socket{fd: fd, device: device}, nil
}

// Read blocks until the next frame arrives. It returns io.EOF on an
// orderly shutdown of the socket and the context error once ctx is done.
// Close unblocks a pending Read.
func (s *Socket) Read(ctx context.Context) (canbus.Frame, error) {
	var buf [frameSize]byte
	for {
		if err := ctx.Err(); err != nil {
			return canbus.Frame{}, err
		}

		n, err := unix.Read(s.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return canbus.Frame{}, ctx.Err()
			}
			return canbus.Frame{}, fmt.Errorf("recv %s: %w", s.device, err)
		}
		if n == 0 {
			return canbus.Frame{}, io.EOF
		}
		if n < frameSize {
			return canbus.Frame{}, fmt.Errorf("recv %s: short CAN frame (%d bytes)", s.device, n)
		}
		return decode(buf, s.device)
	}
}

// Close shuts down the socket, unblocking any pending Read.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = unix.Close(s.fd)
	})
	return s.closeErr
}

// String identifies the socket for diagnostics.
func (s *Socket) String() string {
	if s.device == "" {
		return "can:any"
	}
	return "can:" + s.device
}
