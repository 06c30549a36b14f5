package socketcan

import (
	"encoding/binary"
	"testing"

	"github.com/banshee-data/canwatch/internal/canbus"
)

func rawFrame(id uint32, length byte, data ...byte) [frameSize]byte {
	var buf [frameSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], id)
	buf[4] = length
	copy(buf[8:], data)
	return buf
}

func TestDecodeStandardFrame(t *testing.T) {
	f, err := decode(rawFrame(0x123, 3, 0xAA, 0xBB, 0xCC), "can0")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.ID != canbus.StandardID(0x123) {
		t.Errorf("ID = %v, want 123", f.ID)
	}
	if f.Length != 3 {
		t.Errorf("Length = %d, want 3", f.Length)
	}
	want := [canbus.MaxPayload]byte{0xAA, 0xBB, 0xCC}
	if f.Payload != want {
		t.Errorf("Payload = %x, want %x", f.Payload, want)
	}
}

func TestDecodeExtendedFrame(t *testing.T) {
	f, err := decode(rawFrame(0x80800003, 1, 0x40), "can0")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !f.ID.Extended() || f.ID.Value() != 0x800003 {
		t.Errorf("ID = %v (ext=%v), want extended 00800003", f.ID, f.ID.Extended())
	}
}

func TestDecodeZeroesTrailingBytes(t *testing.T) {
	// The kernel buffer may carry junk past the declared length; decode
	// must not let it reach change detection.
	buf := rawFrame(0x123, 2, 0x01, 0x02, 0xDE, 0xAD, 0xBE, 0xEF)
	f, err := decode(buf, "can0")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := [canbus.MaxPayload]byte{0x01, 0x02}
	if f.Payload != want {
		t.Errorf("Payload = %x, want %x", f.Payload, want)
	}
}

func TestDecodeMalformedLength(t *testing.T) {
	if _, err := decode(rawFrame(0x123, 9), "can0"); err == nil {
		t.Error("decode accepted length 9, want error")
	}
}
