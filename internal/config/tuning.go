// Package config holds the explicit tuning record for the monitor. The
// thresholds are passed into constructors rather than held as process-wide
// state so tests can run isolated instances with distinct values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default tuning values, matching the command-line defaults.
const (
	DefaultMaxPeriodSecs = 2.0
	DefaultDeadTimeSecs  = 10.0
	DefaultSweepInterval = 250 * time.Millisecond
)

// Tuning represents the monitor tuning parameters. Fields are pointers so
// a partial JSON file only overrides what it names; the Get* methods fall
// back to the defaults for unset fields.
type Tuning struct {
	// MaxPeriodSecs is the longest inter-arrival gap, in seconds, still
	// trusted as a periodic cadence. Slower rates are treated as
	// multiple one-time sightings.
	MaxPeriodSecs *float64 `json:"max_period_secs,omitempty"`

	// DeadTimeSecs is the staleness, in seconds, after which an
	// identifier is evicted from the display.
	DeadTimeSecs *float64 `json:"dead_time_secs,omitempty"`

	// SweepInterval gates the sweep-and-redraw pass, as a duration
	// string like "250ms".
	SweepInterval *string `json:"sweep_interval,omitempty"`

	// Verbose enables per-frame diagnostics.
	Verbose *bool `json:"verbose,omitempty"`
}

// EmptyTuning returns a Tuning with all fields unset.
func EmptyTuning() *Tuning {
	return &Tuning{}
}

// LoadTuning loads a Tuning from a JSON file. The file must have a .json
// extension and stay under the max file size. Fields omitted from the JSON
// retain their defaults, so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable. The dead time
// must be at least the sweep interval: eviction is only evaluated during
// sweeps, so a shorter dead time could never take effect.
func (c *Tuning) Validate() error {
	if c.MaxPeriodSecs != nil && *c.MaxPeriodSecs <= 0 {
		return fmt.Errorf("max_period_secs must be positive, got %g", *c.MaxPeriodSecs)
	}
	if c.DeadTimeSecs != nil && *c.DeadTimeSecs <= 0 {
		return fmt.Errorf("dead_time_secs must be positive, got %g", *c.DeadTimeSecs)
	}

	if c.SweepInterval != nil && *c.SweepInterval != "" {
		if _, err := time.ParseDuration(*c.SweepInterval); err != nil {
			return fmt.Errorf("invalid sweep_interval '%s': %w", *c.SweepInterval, err)
		}
	}

	if c.GetDeadTime() < c.GetSweepInterval() {
		return fmt.Errorf("dead time %v is shorter than sweep interval %v",
			c.GetDeadTime(), c.GetSweepInterval())
	}

	return nil
}

// GetMaxPeriod returns the max period as a duration.
func (c *Tuning) GetMaxPeriod() time.Duration {
	secs := DefaultMaxPeriodSecs
	if c.MaxPeriodSecs != nil {
		secs = *c.MaxPeriodSecs
	}
	return time.Duration(secs * float64(time.Second))
}

// GetDeadTime returns the dead time as a duration.
func (c *Tuning) GetDeadTime() time.Duration {
	secs := DefaultDeadTimeSecs
	if c.DeadTimeSecs != nil {
		secs = *c.DeadTimeSecs
	}
	return time.Duration(secs * float64(time.Second))
}

// GetSweepInterval parses and returns the sweep interval.
func (c *Tuning) GetSweepInterval() time.Duration {
	if c.SweepInterval == nil || *c.SweepInterval == "" {
		return DefaultSweepInterval
	}
	d, err := time.ParseDuration(*c.SweepInterval)
	if err != nil {
		return DefaultSweepInterval
	}
	return d
}

// GetVerbose returns the verbose flag or the default.
func (c *Tuning) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// SetMaxPeriodSecs overrides the max period, for flag handling.
func (c *Tuning) SetMaxPeriodSecs(v float64) { c.MaxPeriodSecs = &v }

// SetDeadTimeSecs overrides the dead time, for flag handling.
func (c *Tuning) SetDeadTimeSecs(v float64) { c.DeadTimeSecs = &v }

// SetVerbose overrides the verbose flag, for flag handling.
func (c *Tuning) SetVerbose(v bool) { c.Verbose = &v }
