// Package canbus models CAN frames, identifiers and acceptance filters.
//
// Standard (11-bit) and extended (29-bit) identifiers share one wire field
// but are disjoint address spaces; this package keeps the width as an
// explicit tag on Identifier instead of threading flag bits through every
// comparison.
package canbus

import "context"

// Wire constants from linux/can.h.
const (
	// MaskStandard selects the 11 identifier bits of a standard frame.
	MaskStandard = 0x7FF
	// MaskExtended selects the 29 identifier bits of an extended frame.
	MaskExtended = 0x1FFFFFFF

	flagExtended = 0x80000000
	flagRTR      = 0x40000000
)

// MaxPayload is the payload capacity of a classic CAN frame.
const MaxPayload = 8

// Frame is one message unit on the bus: identifier, payload length and up
// to 8 payload bytes. Bytes past Length are always zero so frames compare
// equal iff identifier, length and payload agree.
type Frame struct {
	ID      Identifier
	Length  uint8
	Payload [MaxPayload]byte
}

// Data returns the valid payload bytes.
func (f Frame) Data() []byte {
	return f.Payload[:f.Length]
}

// Source is a blocking supplier of frames. Read returns the next frame,
// io.EOF when the stream ends, or the context error once ctx is done.
// Frames with a payload length outside 0..8 are rejected inside the source
// and never reach callers.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}
