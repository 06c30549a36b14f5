package canbus

import "fmt"

// Identifier is a CAN identifier tagged with its width. The zero value is
// standard identifier 0. Identifier is comparable and safe to use as a map
// key; both constructors mask their argument to the valid bit width.
type Identifier struct {
	value    uint32
	extended bool
}

// StandardID returns the standard (11-bit) identifier for v.
func StandardID(v uint16) Identifier {
	return Identifier{value: uint32(v) & MaskStandard}
}

// ExtendedID returns the extended (29-bit) identifier for v.
func ExtendedID(v uint32) Identifier {
	return Identifier{value: v & MaskExtended, extended: true}
}

// FromWire decodes a raw SocketCAN can_id field, masking out the frame
// format flag.
func FromWire(raw uint32) Identifier {
	if raw&flagExtended != 0 {
		return ExtendedID(raw & MaskExtended)
	}
	return StandardID(uint16(raw & MaskStandard))
}

// Value returns the masked identifier bits.
func (id Identifier) Value() uint32 { return id.value }

// Extended reports whether the identifier uses the 29-bit format.
func (id Identifier) Extended() bool { return id.extended }

// Wire encodes the identifier as a SocketCAN can_id field.
func (id Identifier) Wire() uint32 {
	if id.extended {
		return id.value | flagExtended
	}
	return id.value
}

// Compare orders identifiers ascending: all standard identifiers before
// all extended ones, numeric within a width. Returns -1, 0 or 1.
func (id Identifier) Compare(other Identifier) int {
	if id.extended != other.extended {
		if other.extended {
			return -1
		}
		return 1
	}
	switch {
	case id.value < other.value:
		return -1
	case id.value > other.value:
		return 1
	}
	return 0
}

// Less reports whether id orders before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// String renders the identifier in hex, 3 digits for standard and 8 for
// extended, matching the column widths of the monitor display.
func (id Identifier) String() string {
	if id.extended {
		return fmt.Sprintf("%08x", id.value)
	}
	return fmt.Sprintf("%03x", id.value)
}
