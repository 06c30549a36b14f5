// Package replay delivers frames from a pcap capture of CAN traffic, such
// as candump or tcpdump output on a can interface. Frames are paced by the
// capture timestamps so the cache sees the same cadence the bus did.
package replay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/timeutil"
)

// linkTypeSocketCAN is LINKTYPE_CAN_SOCKETCAN (227): 16-byte records with
// the can_id serialized big-endian, unlike the kernel's host-order socket
// reads.
const linkTypeSocketCAN = layers.LinkType(227)

// maxGap caps inter-packet pacing so a capture with a long quiet stretch
// does not stall the monitor for minutes.
const maxGap = 2 * time.Second

// Reader replays CAN frames from a pcap stream. It implements
// canbus.Source.
type Reader struct {
	name     string
	r        *pcapgo.Reader
	closer   io.Closer
	clock    timeutil.Clock
	realtime bool
	lastTS   time.Time
}

// Open replays the pcap file at path. With realtime set, Read paces frames
// by their capture timestamps; otherwise frames are delivered as fast as
// the caller consumes them.
func Open(path string, realtime bool) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	r, err := NewReader(f, path, realtime, timeutil.RealClock{})
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader replays from an arbitrary stream. Tests drive this with an
// in-memory capture and a mock clock.
func NewReader(src io.Reader, name string, realtime bool, clock timeutil.Clock) (*Reader, error) {
	pr, err := pcapgo.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", name, err)
	}
	if lt := pr.LinkType(); lt != linkTypeSocketCAN {
		return nil, fmt.Errorf("capture %s: link type %v, want CAN (%d)", name, lt, int(linkTypeSocketCAN))
	}
	return &Reader{
		name:     name,
		r:        pr,
		clock:    clock,
		realtime: realtime,
	}, nil
}

// Read returns the next captured frame, sleeping out the capture gap first
// when pacing is enabled. It returns io.EOF at the end of the capture.
func (r *Reader) Read(ctx context.Context) (canbus.Frame, error) {
	if err := ctx.Err(); err != nil {
		return canbus.Frame{}, err
	}

	data, ci, err := r.r.ReadPacketData()
	if errors.Is(err, io.EOF) {
		return canbus.Frame{}, io.EOF
	}
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("read capture %s: %w", r.name, err)
	}

	if r.realtime && !r.lastTS.IsZero() {
		if gap := ci.Timestamp.Sub(r.lastTS); gap > 0 {
			if gap > maxGap {
				gap = maxGap
			}
			r.clock.Sleep(gap)
		}
	}
	r.lastTS = ci.Timestamp

	return decode(data, r.name)
}

// decode unpacks one LINKTYPE_CAN_SOCKETCAN record.
func decode(data []byte, name string) (canbus.Frame, error) {
	if len(data) < 16 {
		return canbus.Frame{}, fmt.Errorf("capture %s: short CAN record (%d bytes)", name, len(data))
	}
	length := data[4]
	if length > canbus.MaxPayload {
		return canbus.Frame{}, fmt.Errorf("capture %s: malformed frame, length %d", name, length)
	}
	f := canbus.Frame{
		ID:     canbus.FromWire(binary.BigEndian.Uint32(data[0:4])),
		Length: length,
	}
	copy(f.Payload[:length], data[8:8+int(length)])
	return f, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// String identifies the capture for diagnostics.
func (r *Reader) String() string {
	return "replay:" + r.name
}
