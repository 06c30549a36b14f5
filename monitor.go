package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/banshee-data/canwatch/internal/api"
	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/framelog"
	"github.com/banshee-data/canwatch/internal/monitoring"
	"github.com/banshee-data/canwatch/internal/observe"
	"github.com/banshee-data/canwatch/internal/render"
	"github.com/banshee-data/canwatch/internal/timeutil"
)

// monitor is the single actor owning the observation cache. It reads
// frames, merges them, and every sweepInterval at most runs one
// sweep-and-redraw pass. Sweeping is driven by frame arrival, so an idle
// bus leaves the display untouched.
type monitor struct {
	cache         *observe.Cache
	renderer      *render.Renderer
	server        *api.Server // nil when --listen is off
	flog          *framelog.Log
	clock         timeutil.Clock
	sweepInterval time.Duration
	verbose       bool
}

func (m *monitor) run(ctx context.Context, src canbus.Source) error {
	var lastPass time.Time
	for {
		f, err := src.Read(ctx)
		if err != nil {
			// EOF is the normal end of a replay; a closed source
			// during shutdown surfaces as EOF or the context error.
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		now := m.clock.Now()
		kind := m.cache.Merge(f, now)

		if m.verbose && kind != observe.UpdatedSame {
			monitoring.Logf("%s %s len=%d", kind, f.ID, f.Length)
		}
		if m.flog != nil && kind != observe.UpdatedSame {
			if err := m.flog.Record(f, kind, now); err != nil {
				monitoring.Logf("frame log: %v", err)
			}
		}

		if now.Sub(lastPass) < m.sweepInterval {
			continue
		}
		m.cache.Sweep(now)
		snap := m.renderer.Draw(m.cache, now)
		if m.server != nil {
			m.server.Publish(snap, now)
		}
		lastPass = now
	}
}
