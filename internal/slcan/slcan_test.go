package slcan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/monitoring"
)

// fakeAdapter plays back canned adapter output and records writes.
type fakeAdapter struct {
	io.Reader
	writes bytes.Buffer
	closed bool
}

func newFakeAdapter(output string) *fakeAdapter {
	return &fakeAdapter{Reader: bytes.NewReader([]byte(output))}
}

func (f *fakeAdapter) Write(p []byte) (int, error) {
	return f.writes.Write(p)
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want canbus.Frame
	}{
		{
			name: "standard data frame",
			line: "t1234deadbeef",
			want: canbus.Frame{
				ID:      canbus.StandardID(0x123),
				Length:  4,
				Payload: [8]byte{0xDE, 0xAD, 0xBE, 0xEF},
			},
		},
		{
			name: "extended data frame",
			line: "T0080000321122",
			want: canbus.Frame{
				ID:      canbus.ExtendedID(0x800003),
				Length:  2,
				Payload: [8]byte{0x11, 0x22},
			},
		},
		{
			name: "empty payload",
			line: "t7ff0",
			want: canbus.Frame{ID: canbus.StandardID(0x7FF)},
		},
		{
			name: "standard remote frame",
			line: "r1232",
			want: canbus.Frame{ID: canbus.StandardID(0x123), Length: 2},
		},
		{
			name: "trailing garbage ignored past declared length",
			line: "t12311ffff",
			want: canbus.Frame{
				ID:      canbus.StandardID(0x123),
				Length:  1,
				Payload: [8]byte{0x11},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine(%q): %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLineSkipsStatusLines(t *testing.T) {
	for _, line := range []string{"V1013", "F00", "z", "O", ""} {
		_, err := ParseLine(line)
		if !errors.Is(err, errSkip) {
			t.Errorf("ParseLine(%q) = %v, want skip", line, err)
		}
	}
}

func TestParseLineMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"truncated header", "t12"},
		{"bad identifier hex", "tzzz0"},
		{"standard id out of range", "t8000"},
		{"length beyond 8", "t123912345678901234"},
		{"bad length digit", "t123x"},
		{"truncated payload", "t12342112"},
		{"bad payload hex", "t1231zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			if err == nil || errors.Is(err, errSkip) {
				t.Errorf("ParseLine(%q) = %v, want parse error", tt.line, err)
			}
		})
	}
}

func TestPortReadStream(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	// A realistic session: command echo, two frames, a malformed line
	// that must be skipped, one more frame, then hangup.
	adapter := newFakeAdapter("O\rt1232aabb\rT00800003188\rt12\rt4561cc\r")
	p := New(adapter, "/dev/ttyUSB0")
	ctx := context.Background()

	var got []canbus.Frame
	for {
		f, err := p.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, f)
	}

	wantIDs := []canbus.Identifier{
		canbus.StandardID(0x123),
		canbus.ExtendedID(0x800003),
		canbus.StandardID(0x456),
	}
	if len(got) != len(wantIDs) {
		t.Fatalf("read %d frames, want %d", len(got), len(wantIDs))
	}
	for i, f := range got {
		if f.ID != wantIDs[i] {
			t.Errorf("frame %d ID = %v, want %v", i, f.ID, wantIDs[i])
		}
	}
}

func TestPortReadContextDone(t *testing.T) {
	p := New(newFakeAdapter(""), "/dev/ttyUSB0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Read on cancelled context = %v, want context.Canceled", err)
	}
}

func TestPortCloseClosesChannel(t *testing.T) {
	adapter := newFakeAdapter("")
	p := New(adapter, "/dev/ttyUSB0")
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !adapter.closed {
		t.Error("underlying stream not closed")
	}
	if got := adapter.writes.String(); got != "C\r" {
		t.Errorf("close wrote %q, want %q", got, "C\r")
	}
	// Close is idempotent.
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
