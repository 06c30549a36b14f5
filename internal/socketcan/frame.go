package socketcan

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/canwatch/internal/canbus"
)

// frameSize is sizeof(struct can_frame): 4-byte id, 1-byte dlc, 3 bytes
// padding, 8 data bytes.
const frameSize = 16

// decode unpacks a struct can_frame. The kernel writes can_id in host
// byte order. Payload bytes past the declared length are zeroed so frame
// comparison is not polluted by whatever the kernel left in the buffer.
func decode(buf [frameSize]byte, device string) (canbus.Frame, error) {
	length := buf[4]
	if length > canbus.MaxPayload {
		return canbus.Frame{}, fmt.Errorf("recv %s: malformed frame, length %d", device, length)
	}
	f := canbus.Frame{
		ID:     canbus.FromWire(binary.NativeEndian.Uint32(buf[0:4])),
		Length: length,
	}
	copy(f.Payload[:length], buf[8:8+length])
	return f, nil
}
