// Package follow runs the vzen tracking loop.
//
// The loop owns the frame pipeline for one run: it pulls frames from a
// vision.FrameSource, runs the configured detect.Detector over each one,
// stamps results through the telemetry tracker, renders the overlay and
// hands the annotated frame to every attached Sink. Frames leave the loop
// in the order they were captured.
//
// Lifecycle is strictly Starting, Running, Stopping, Stopped and never
// moves backwards; a Loop runs once and is discarded. Per-frame detection
// failures are reported and skipped, they never end a run. Losing the
// source does.
package follow

import (
	"github.com/vzenlabs/vzen/pkg/telemetry"
	"github.com/vzenlabs/vzen/pkg/vision"
)

// State is a phase of the loop lifecycle.
type State int32

const (
	// StateStarting covers construction through source acquisition.
	StateStarting State = iota
	// StateRunning is the per-frame processing phase.
	StateRunning
	// StateStopping covers teardown of the source and detector.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Sink receives annotated frames from the loop.
//
// Present is fire-and-forget: implementations must return promptly and
// drop frames rather than stall the loop. The loop never closes sinks;
// whoever attached one closes it after Run returns.
type Sink interface {
	Present(frame *vision.Frame)
	Close() error
}

// StateUpdater receives loop progress for a dashboard.
// Calls happen on the loop goroutine, so implementations must be quick.
type StateUpdater interface {
	UpdateLoopState(state State)
	UpdateStats(snap telemetry.Snapshot, faces int)
}
