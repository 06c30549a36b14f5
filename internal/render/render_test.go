package render

import (
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/observe"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func obs(id canbus.Identifier, lastSeen time.Time, data ...byte) observe.Observation {
	o := observe.Observation{ID: id, Length: uint8(len(data)), LastSeen: lastSeen}
	copy(o.Payload[:], data)
	return o
}

func TestFormatObservationStandard(t *testing.T) {
	o := obs(canbus.StandardID(0x123), t0, 0xAA, 0xBB)
	o.Period = 500 * time.Millisecond
	o.PeriodKnown = true

	line := FormatObservation(o, t0.Add(250*time.Millisecond))
	for _, want := range []string{"     123:", " aa bb", " -- -- -- -- -- --", "last=-0.250s", "period=0.500s"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestFormatObservationExtended(t *testing.T) {
	o := obs(canbus.ExtendedID(0x800003), t0)
	line := FormatObservation(o, t0)
	if !strings.Contains(line, "00800003:") {
		t.Errorf("line %q missing 8-digit extended identifier", line)
	}
}

func TestFormatObservationUnknownPeriodOmitted(t *testing.T) {
	line := FormatObservation(obs(canbus.StandardID(0x123), t0, 0x01), t0)
	if strings.Contains(line, "period=") {
		t.Errorf("line %q shows a period for an unknown estimate", line)
	}
}

func TestFormatObservationModuleLabel(t *testing.T) {
	// 0x...40 is the CEM address on this network.
	line := FormatObservation(obs(canbus.ExtendedID(0x800040), t0), t0)
	if !strings.Contains(line, "CEM") {
		t.Errorf("line %q missing CEM label", line)
	}

	line = FormatObservation(obs(canbus.StandardID(0x040), t0), t0)
	if strings.Contains(line, "CEM") {
		t.Errorf("standard identifier line %q must not carry a module label", line)
	}
}

func TestDrawOrderingAndAcknowledge(t *testing.T) {
	cache := observe.New(observe.Config{MaxPeriod: 2 * time.Second, DeadTime: 10 * time.Second})
	f := canbus.Frame{ID: canbus.ExtendedID(0x800003), Length: 1, Payload: [8]byte{0x01}}
	cache.Merge(f, t0)
	f = canbus.Frame{ID: canbus.StandardID(0x123), Length: 1, Payload: [8]byte{0x02}}
	cache.Merge(f, t0)

	var out strings.Builder
	r := New(&out, "can0")
	snap := r.Draw(cache, t0.Add(time.Second))

	if len(snap) != 2 {
		t.Fatalf("Draw returned %d observations, want 2", len(snap))
	}
	text := out.String()
	stdIdx := strings.Index(text, "123:")
	extIdx := strings.Index(text, "00800003:")
	if stdIdx < 0 || extIdx < 0 {
		t.Fatalf("output missing rows:\n%s", text)
	}
	if stdIdx > extIdx {
		t.Error("standard identifier rendered after extended identifier")
	}
	if !strings.Contains(text, "canwatch can0: 2 ids") {
		t.Errorf("output missing header:\n%s", text)
	}
	if !strings.Contains(text, clearScreen) {
		t.Error("output does not clear the screen")
	}

	// Draw acknowledges the changes it displayed.
	for _, o := range cache.Snapshot() {
		if o.Changed {
			t.Errorf("observation %v still marked changed after Draw", o.ID)
		}
	}
}
