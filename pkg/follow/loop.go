package follow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/notify"
	"github.com/vzenlabs/vzen/pkg/overlay"
	"github.com/vzenlabs/vzen/pkg/telemetry"
	"github.com/vzenlabs/vzen/pkg/vision"
	"github.com/vzenlabs/vzen/pkg/vision/detect"
)

// ErrInvalidConfig is returned by New when the configuration fails
// validation. The message lists every problem found.
var ErrInvalidConfig = errors.New("follow: invalid config")

// Notification messages for loop lifecycle events.
const (
	msgStarted = "vzen service started."
	msgStopped = "vzen service stopped."
	msgBroken  = "vzen service broken."
)

// Loop drives one tracking run from source to sinks.
//
// Configure it with the Set and Add methods before calling Run; the loop
// reads those fields without locking once it is running. Stop requests
// take effect between frames, never in the middle of one. A Loop runs
// once and is discarded.
type Loop struct {
	config  Config
	session string

	source   vision.FrameSource
	detector detect.Detector
	renderer *overlay.Renderer
	tracker  *telemetry.Tracker
	metrics  *telemetry.Metrics
	notifier notify.Notifier
	updater  StateUpdater
	sinks    []Sink

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a loop for the given configuration.
// Environment overrides are applied first; validation problems are fatal
// and surface here, before anything is acquired.
func New(cfg Config) (*Loop, error) {
	cfg.LoadEnv()

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	l := &Loop{
		config:   cfg,
		session:  uuid.NewString(),
		renderer: overlay.New(cfg.Overlay),
		tracker:  telemetry.NewTracker(),
		stop:     make(chan struct{}),
	}
	l.state.Store(int32(StateStarting))
	return l, nil
}

// SetNotifier sets the event notifier. Without one, events are dropped.
func (l *Loop) SetNotifier(n notify.Notifier) {
	l.notifier = n
}

// SetMetrics attaches process counters.
func (l *Loop) SetMetrics(m *telemetry.Metrics) {
	l.metrics = m
}

// SetStateUpdater sets the dashboard state updater.
func (l *Loop) SetStateUpdater(u StateUpdater) {
	l.updater = u
}

// AddSink attaches an output for annotated frames.
func (l *Loop) AddSink(s Sink) {
	l.sinks = append(l.sinks, s)
}

// Session returns the unique ID of this run.
func (l *Loop) Session() string {
	return l.session
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Snapshot returns the run's counters so far.
func (l *Loop) Snapshot() telemetry.Snapshot {
	return l.tracker.Snapshot()
}

// Stop requests a stop. The loop finishes the frame in flight and shuts
// down before pulling another. Safe to call from any goroutine, any
// number of times.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Run executes the full lifecycle and blocks until the loop reaches
// Stopped. The returned error is non-nil only for startup failures;
// once frames are flowing, problems are reported as events instead.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.start(ctx); err != nil {
		l.setState(StateStopped)
		return err
	}

	reason := l.process(ctx)
	l.shutdown(reason)
	return nil
}

// start builds the detector and acquires the source, then announces the
// run. Components injected before Run (tests, custom wiring) are kept.
func (l *Loop) start(ctx context.Context) error {
	if l.detector == nil {
		d, err := detect.New(l.config.Detector)
		if err != nil {
			return fmt.Errorf("follow: detector: %w", err)
		}
		l.detector = d
	}

	if l.source == nil {
		src, err := openSource(l.config.Source)
		if err != nil {
			l.detector.Close()
			return fmt.Errorf("follow: source: %w", err)
		}
		l.source = src
	}

	l.tracker.Start()
	l.notify(notify.KindLoopStarted, msgStarted)
	l.setState(StateRunning)

	log.Info("tracking loop started",
		"session", l.session,
		"variant", string(l.config.Detector.Variant),
		"device", l.config.Source.Device,
		"path", l.config.Source.Path)
	return nil
}

// process pulls and handles frames until a stop trigger fires.
// It returns the reason the run ended, for the shutdown log line.
func (l *Loop) process(ctx context.Context) string {
	for {
		// Stop triggers are honored here and only here, so an
		// in-flight frame always reaches the sinks first.
		select {
		case <-ctx.Done():
			return "context cancelled"
		case <-l.stop:
			return "stop requested"
		default:
		}

		snap := l.tracker.Snapshot()
		if l.config.MaxFrames > 0 && snap.Frames >= l.config.MaxFrames {
			return "frame limit reached"
		}
		if l.config.MaxDuration > 0 && snap.Elapsed >= l.config.MaxDuration {
			return "duration limit reached"
		}

		frame, err := l.source.Next(ctx)
		if err != nil {
			// A cancelled context can surface through the source as a
			// read error; that is still a clean stop, not a lost source.
			if ctx.Err() != nil {
				return "context cancelled"
			}
			if errors.Is(err, vision.ErrExhausted) {
				return "source exhausted"
			}
			// Unavailable and anything unexpected both mean the source
			// is gone mid run.
			l.notify(notify.KindSourceLost, msgBroken)
			return "source lost"
		}

		l.handleFrame(frame)
	}
}

// handleFrame runs detection, telemetry, rendering and presentation for
// one frame. A detection failure downgrades the frame to stats-only
// output; it never stops the run.
func (l *Loop) handleFrame(frame *vision.Frame) {
	dets, err := l.detector.Detect(frame)
	if err != nil {
		l.notify(notify.KindDetectionError, fmt.Sprintf("detection error: %v", err))
		if l.metrics != nil {
			l.metrics.DetectionErrors.Add(1)
		}
		log.Warn("detection failed", "session", l.session, "frame", frame.Seq, "error", err)
		dets = nil
	}

	snap := l.tracker.Tick()
	if l.metrics != nil {
		l.metrics.ObserveSnapshot(snap)
		l.metrics.FacesDetected.Add(uint64(len(dets)))
	}

	out, err := l.renderer.Render(frame, dets, snap)
	if err != nil {
		log.Warn("render failed", "session", l.session, "frame", frame.Seq, "error", err)
		return
	}

	annotated := &vision.Frame{
		Image:     out,
		Width:     out.Bounds().Dx(),
		Height:    out.Bounds().Dy(),
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
	}
	for _, s := range l.sinks {
		s.Present(annotated)
	}
	if l.metrics != nil {
		l.metrics.FramesPresented.Add(1)
	}

	if l.updater != nil {
		l.updater.UpdateStats(snap, len(dets))
	}

	log.Debug("frame processed",
		"session", l.session,
		"frame", frame.Seq,
		"faces", len(dets),
		"fps", snap.FPS)
}

// shutdown releases the source and detector and announces the end of
// the run.
func (l *Loop) shutdown(reason string) {
	l.setState(StateStopping)
	log.Info("tracking loop stopping", "session", l.session, "reason", reason)

	if l.source != nil {
		if err := l.source.Close(); err != nil {
			log.Warn("source close failed", "session", l.session, "error", err)
		}
	}
	if l.detector != nil {
		if err := l.detector.Close(); err != nil {
			log.Warn("detector close failed", "session", l.session, "error", err)
		}
	}

	l.notify(notify.KindLoopStopped, msgStopped)
	l.setState(StateStopped)
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	if l.metrics != nil {
		l.metrics.LoopState.Store(uint64(s))
	}
	if l.updater != nil {
		l.updater.UpdateLoopState(s)
	}
}

func (l *Loop) notify(kind notify.Kind, message string) {
	if l.notifier == nil {
		return
	}
	l.notifier.Notify(notify.NewEvent(kind, message))
}

// openSource picks the source implementation for the configured input.
// HTTP URLs stream as MJPEG; everything else goes through OpenCV, which
// handles devices, files and the protocols ffmpeg knows.
func openSource(cfg vision.CaptureConfig) (vision.FrameSource, error) {
	if strings.HasPrefix(cfg.Path, "http://") || strings.HasPrefix(cfg.Path, "https://") {
		return vision.OpenMJPEG(cfg.Path)
	}
	return vision.OpenCapture(cfg)
}
