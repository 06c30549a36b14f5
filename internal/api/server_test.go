package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/observe"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestObservationsEmptyBeforeFirstPublish(t *testing.T) {
	s := NewServer("can0", nil)
	rec := get(t, s.ServeMux(), "/observations")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Device       string            `json:"device"`
		Observations []ObservationView `json:"observations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if payload.Device != "can0" {
		t.Errorf("device = %q, want can0", payload.Device)
	}
	if payload.Observations == nil || len(payload.Observations) != 0 {
		t.Errorf("observations = %v, want empty list", payload.Observations)
	}
}

func TestObservationsServePublishedSnapshot(t *testing.T) {
	s := NewServer("can0", func(obs observe.Observation) string {
		if obs.ID.Extended() {
			return "CEM"
		}
		return ""
	})

	period := 500 * time.Millisecond
	snap := []observe.Observation{
		{
			ID:          canbus.StandardID(0x123),
			Length:      2,
			Payload:     [8]byte{0xAA, 0xBB},
			LastSeen:    t0.Add(-time.Second),
			Period:      period,
			PeriodKnown: true,
			Changed:     true,
		},
		{
			ID:       canbus.ExtendedID(0x800040),
			Length:   0,
			LastSeen: t0,
		},
	}
	s.Publish(snap, t0)

	rec := get(t, s.ServeMux(), "/observations")
	var payload struct {
		Observations []ObservationView `json:"observations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(payload.Observations) != 2 {
		t.Fatalf("got %d observations, want 2", len(payload.Observations))
	}

	first := payload.Observations[0]
	if first.ID != "123" || first.Extended || first.PayloadHex != "aabb" || !first.Changed {
		t.Errorf("first view = %+v", first)
	}
	if first.AgeSecs != 1.0 {
		t.Errorf("AgeSecs = %v, want 1.0", first.AgeSecs)
	}
	if first.PeriodSecs == nil || *first.PeriodSecs != 0.5 {
		t.Errorf("PeriodSecs = %v, want 0.5", first.PeriodSecs)
	}

	second := payload.Observations[1]
	if second.ID != "00800040" || !second.Extended || second.ModuleLabel != "CEM" {
		t.Errorf("second view = %+v", second)
	}
	if second.PeriodSecs != nil {
		t.Errorf("unknown period serialized as %v, want omitted", *second.PeriodSecs)
	}
}

func TestObservationsMethodNotAllowed(t *testing.T) {
	s := NewServer("can0", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/observations", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := NewServer("can0", nil)
	rec := get(t, s.ServeMux(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}
