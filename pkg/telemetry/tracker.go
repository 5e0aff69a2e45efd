// Package telemetry tracks per-run timing for the vzen loop and exports
// process counters to Prometheus.
//
// The Tracker answers two questions the overlay asks on every frame: how
// long has this run been going, and how fast is it moving. Elapsed time is
// meaningful from the very first frame; the frame rate needs a nonzero
// elapsed interval before it means anything, so Snapshot carries an
// explicit validity flag instead of a garbage division result.
package telemetry

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Snapshot is a point-in-time view of a run's counters, taken on every
// tick and consumed by the overlay and the dashboard.
type Snapshot struct {
	// Frames is how many frames have been processed so far.
	Frames uint64

	// Elapsed is the wall time since Start.
	Elapsed time.Duration

	// FPS is Frames divided by Elapsed in seconds. Meaningful only when
	// FPSValid is true.
	FPS float64

	// FPSValid stays false until the first nonzero Elapsed measurement.
	// Renderers show a pending marker instead of the number before then.
	FPSValid bool
}

// Tracker measures elapsed time and throughput for one tracking run.
// It is created for a run and discarded with it; Start resets everything.
type Tracker struct {
	clk clock.Clock

	mu      sync.Mutex
	started time.Time
	frames  uint64
	running bool
}

// NewTracker creates a tracker on the wall clock.
func NewTracker() *Tracker {
	return NewTrackerWithClock(clock.New())
}

// NewTrackerWithClock creates a tracker on the given clock. Tests inject
// clock.Mock to make the rate math deterministic.
func NewTrackerWithClock(clk clock.Clock) *Tracker {
	return &Tracker{clk: clk}
}

// Start marks the beginning of a run and zeroes the frame counter.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = t.clk.Now()
	t.frames = 0
	t.running = true
}

// Tick records one processed frame and returns the snapshot after it.
// Exactly one tick happens per frame, whatever the detection outcome.
func (t *Tracker) Tick() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames++
	return t.snapshotLocked()
}

// Snapshot returns the current counters without recording a frame.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{Frames: t.frames}
	if !t.running {
		return s
	}
	s.Elapsed = t.clk.Since(t.started)
	if s.Elapsed > 0 {
		s.FPS = float64(s.Frames) / s.Elapsed.Seconds()
		s.FPSValid = true
	}
	return s
}
