// Package observe maintains the live observation cache: the most recent
// frame seen per CAN identifier, annotated with an inter-arrival period
// estimate and staleness. The cache owns its entries exclusively; callers
// only ever see value copies through Snapshot.
package observe

import (
	"sort"
	"time"

	"github.com/banshee-data/canwatch/internal/canbus"
)

// ChangeKind describes the effect of merging one frame into the cache.
type ChangeKind int

const (
	// Inserted means the frame's identifier had not been seen before.
	Inserted ChangeKind = iota
	// UpdatedSame means an existing entry was refreshed with an
	// identical length and payload.
	UpdatedSame
	// UpdatedChanged means an existing entry was refreshed and the
	// length or at least one payload byte differed.
	UpdatedChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case UpdatedSame:
		return "updated"
	case UpdatedChanged:
		return "changed"
	}
	return "unknown"
}

// Observation is the cached state for one identifier. Period is only
// meaningful when PeriodKnown is true; a cleared flag is the "unknown"
// sentinel, so a real zero-length period can never be confused with the
// absence of an estimate.
type Observation struct {
	ID          canbus.Identifier
	Length      uint8
	Payload     [canbus.MaxPayload]byte
	LastSeen    time.Time
	Period      time.Duration
	PeriodKnown bool
	Changed     bool
}

// Config carries the cache tuning thresholds. It is passed explicitly to
// New so tests can run isolated caches with distinct thresholds.
type Config struct {
	// MaxPeriod is the longest inter-arrival gap still trusted as a
	// periodic cadence. Larger gaps discard the estimate.
	MaxPeriod time.Duration
	// DeadTime is the staleness after which Sweep evicts an entry.
	DeadTime time.Duration
}

// Cache holds exactly one Observation per distinct identifier.
//
// All methods must be called from a single goroutine; the monitor loop is
// the sole owner by construction, so the cache carries no locks.
type Cache struct {
	cfg     Config
	entries map[canbus.Identifier]*Observation
}

// New returns an empty cache with the given thresholds.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:     cfg,
		entries: make(map[canbus.Identifier]*Observation),
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Merge folds one frame into the cache at time now and reports what
// happened. Timestamps are assigned here, never read from the frame, so
// LastSeen is monotonically non-decreasing per entry.
//
// A first sighting always counts as changed and has no period estimate.
// On an update the period becomes the gap since the previous frame, unless
// that gap exceeds MaxPeriod: then the previous cadence can no longer be
// trusted and the estimate is discarded rather than averaged.
func (c *Cache) Merge(f canbus.Frame, now time.Time) ChangeKind {
	obs, ok := c.entries[f.ID]
	if !ok {
		c.entries[f.ID] = &Observation{
			ID:       f.ID,
			Length:   f.Length,
			Payload:  f.Payload,
			LastSeen: now,
			Changed:  true,
		}
		return Inserted
	}

	delta := now.Sub(obs.LastSeen)
	if delta <= c.cfg.MaxPeriod {
		obs.Period = delta
		obs.PeriodKnown = true
	} else {
		obs.Period = 0
		obs.PeriodKnown = false
	}

	changed := obs.Length != f.Length || obs.Payload != f.Payload
	obs.Length = f.Length
	obs.Payload = f.Payload
	obs.LastSeen = now

	if changed {
		obs.Changed = true
		return UpdatedChanged
	}
	return UpdatedSame
}

// Sweep evicts entries not seen for longer than DeadTime and clears the
// period estimate of survivors whose silence exceeds twice their period:
// one missed beat is jitter, more than two full intervals means the
// cadence is no longer a meaningful prediction. Eviction is permanent.
// Sweep performs no I/O and is idempotent per call.
func (c *Cache) Sweep(now time.Time) int {
	removed := 0
	for id, obs := range c.entries {
		age := now.Sub(obs.LastSeen)
		if age > c.cfg.DeadTime {
			delete(c.entries, id)
			removed++
			continue
		}
		if obs.PeriodKnown && age > 2*obs.Period {
			obs.Period = 0
			obs.PeriodKnown = false
		}
	}
	return removed
}

// Snapshot returns read-only copies of all entries ordered by identifier
// ascending (standard before extended). Mutating the returned slice has no
// effect on the cache.
func (c *Cache) Snapshot() []Observation {
	out := make([]Observation, 0, len(c.entries))
	for _, obs := range c.entries {
		out = append(out, *obs)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Less(out[j].ID)
	})
	return out
}

// ClearChanged resets the changed flag on every entry. The presentation
// layer calls this after a draw so the flag means "payload differed since
// the last render that observed it".
func (c *Cache) ClearChanged() {
	for _, obs := range c.entries {
		obs.Changed = false
	}
}
