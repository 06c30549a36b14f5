// Package api exposes the monitor's latest snapshot over HTTP. The
// monitor actor publishes each rendered snapshot here; handlers only ever
// read the published copy, so the cache stays owned by its single actor.
package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/banshee-data/canwatch/internal/httputil"
	"github.com/banshee-data/canwatch/internal/observe"
	"github.com/banshee-data/canwatch/internal/version"
)

// ObservationView is the JSON shape of one cache entry.
type ObservationView struct {
	ID          string   `json:"id"`
	Extended    bool     `json:"extended"`
	Length      uint8    `json:"length"`
	PayloadHex  string   `json:"payload_hex"`
	AgeSecs     float64  `json:"age_secs"`
	PeriodSecs  *float64 `json:"period_secs,omitempty"`
	Changed     bool     `json:"changed"`
	ModuleLabel string   `json:"module_label,omitempty"`
}

// snapshotPayload is what /observations serves.
type snapshotPayload struct {
	Device       string            `json:"device"`
	TakenAt      time.Time         `json:"taken_at"`
	Observations []ObservationView `json:"observations"`
}

// Server serves the published snapshot. Before the first render it serves
// an empty observation list.
type Server struct {
	device   string
	snapshot atomic.Pointer[snapshotPayload]
	labeler  func(observe.Observation) string
}

// NewServer creates a Server for the given device name. labeler, when
// non-nil, supplies the decorative module label per observation.
func NewServer(device string, labeler func(observe.Observation) string) *Server {
	s := &Server{device: device, labeler: labeler}
	s.snapshot.Store(&snapshotPayload{Device: device, Observations: []ObservationView{}})
	return s
}

// Publish replaces the served snapshot. Called by the monitor actor after
// each render pass.
func (s *Server) Publish(snap []observe.Observation, now time.Time) {
	views := make([]ObservationView, len(snap))
	for i, obs := range snap {
		views[i] = s.view(obs, now)
	}
	s.snapshot.Store(&snapshotPayload{
		Device:       s.device,
		TakenAt:      now,
		Observations: views,
	})
}

func (s *Server) view(obs observe.Observation, now time.Time) ObservationView {
	v := ObservationView{
		ID:         obs.ID.String(),
		Extended:   obs.ID.Extended(),
		Length:     obs.Length,
		PayloadHex: hexPayload(obs),
		AgeSecs:    now.Sub(obs.LastSeen).Seconds(),
		Changed:    obs.Changed,
	}
	if obs.PeriodKnown {
		secs := obs.Period.Seconds()
		v.PeriodSecs = &secs
	}
	if s.labeler != nil {
		v.ModuleLabel = s.labeler(obs)
	}
	return v
}

const hexDigits = "0123456789abcdef"

func hexPayload(obs observe.Observation) string {
	out := make([]byte, 0, 2*int(obs.Length))
	for _, b := range obs.Payload[:obs.Length] {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xF])
	}
	return string(out)
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/observations", s.listObservations)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

func (s *Server) listObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.snapshot.Load())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
