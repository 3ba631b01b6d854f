// Package status provides a thread-safe status tracker for the ambient-theme daemon.
// It is written by the run loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ambient-theme/internal/light"
)

// Config contains daemon configuration for display.
type Config struct {
	Sensor         string // provider kind: iio, gpio, mqtt, simulated, none
	Source         string // human-readable source (device path, topic, ...)
	HTTPAddr       string
	RefreshSeconds int // page auto-refresh, 0 disables
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State       light.State
	Theme       light.ThemeName
	Counts      light.Counts
	LastReading time.Time // zero until the first reading
	StartTime   time.Time
	Now         time.Time
	Config      Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Palette returns the colors of the active theme.
func (s Snapshot) Palette() light.Palette {
	return s.Theme.Palette()
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker in the initial state: unknown reading,
// unknown status, light theme.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     light.NewState(),
			Theme:     light.ThemeLight,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the subscription state and derived theme.
// Called from the run loop on every subscription update.
func (t *Tracker) Update(state light.State, theme light.ThemeName, counts light.Counts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Theme = theme
	t.snap.Counts = counts
	t.mu.Unlock()
}

// MarkReading records when the last reading arrived.
func (t *Tracker) MarkReading(at time.Time) {
	t.mu.Lock()
	t.snap.LastReading = at
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
