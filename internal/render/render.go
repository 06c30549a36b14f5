// Package render draws the observation cache as a terminal display. One
// row per identifier, redrawn in place on every sweep pass; rows whose
// payload changed since the last draw are highlighted.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/canwatch/internal/observe"
)

// Terminal codes for the in-place redraw.
const (
	clearScreen = "\x1b[2J"
	cursorHome  = "\x1b[H"
	attrReset   = "\x1b[0m"
)

var (
	headerStyle  = lipgloss.NewStyle().Faint(true)
	changedStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Faint(true)
)

// Renderer formats cache snapshots for a terminal.
type Renderer struct {
	w      io.Writer
	device string
}

// New creates a renderer writing to w. The device name is shown in the
// header line.
func New(w io.Writer, device string) *Renderer {
	return &Renderer{w: w, device: device}
}

// Draw takes a snapshot of the cache, redraws the display and clears the
// cache's changed flags, so a highlight is shown exactly once per change.
// The snapshot used for the draw is returned for further publication.
func (r *Renderer) Draw(c *observe.Cache, now time.Time) []observe.Observation {
	snap := c.Snapshot()

	var b strings.Builder
	b.WriteString(clearScreen + attrReset + cursorHome)
	b.WriteString(headerStyle.Render(fmt.Sprintf("canwatch %s: %d ids", r.device, len(snap))))
	b.WriteString("\n\n")

	for _, obs := range snap {
		line := FormatObservation(obs, now)
		if obs.Changed {
			line = changedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	// One write per draw keeps the repaint flicker-free.
	io.WriteString(r.w, b.String())

	c.ClearChanged()
	return snap
}

// FormatObservation renders one display row: identifier, payload bytes
// ("--" past the payload length), staleness and, when known, the period
// estimate and module label.
func FormatObservation(obs observe.Observation, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%8s:", obs.ID)
	for i := 0; i < int(obs.Length); i++ {
		fmt.Fprintf(&b, " %02x", obs.Payload[i])
	}
	for i := int(obs.Length); i < len(obs.Payload); i++ {
		b.WriteString(" --")
	}

	fmt.Fprintf(&b, "\tlast=-%.3fs", now.Sub(obs.LastSeen).Seconds())
	if obs.PeriodKnown {
		fmt.Fprintf(&b, "\tperiod=%.3fs", obs.Period.Seconds())
	}
	if name := ModuleName(obs.ID); name != "" {
		b.WriteString("\t" + labelStyle.Render(name))
	}

	return b.String()
}
