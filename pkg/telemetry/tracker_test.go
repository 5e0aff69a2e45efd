package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestTracker_CountsTicks(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTrackerWithClock(clk)
	tr.Start()

	var last Snapshot
	for i := 0; i < 5; i++ {
		clk.Add(100 * time.Millisecond)
		last = tr.Tick()
	}

	if last.Frames != 5 {
		t.Errorf("Frames: got %d, want 5", last.Frames)
	}
}

func TestTracker_FPSSentinelBeforeElapsed(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTrackerWithClock(clk)
	tr.Start()

	// First tick lands before any time has passed.
	s := tr.Tick()
	if s.Frames != 1 {
		t.Errorf("Frames: got %d, want 1", s.Frames)
	}
	if s.FPSValid {
		t.Error("FPSValid: expected false at zero elapsed")
	}
	if s.FPS != 0 {
		t.Errorf("FPS: got %f, want 0 while invalid", s.FPS)
	}

	// Once the clock moves the rate becomes measurable.
	clk.Add(500 * time.Millisecond)
	s = tr.Tick()
	if !s.FPSValid {
		t.Fatal("FPSValid: expected true after elapsed > 0")
	}
	if s.FPS != 4.0 {
		t.Errorf("FPS: got %f, want 4.0 (2 frames / 0.5s)", s.FPS)
	}
}

func TestTracker_ElapsedVisibleFromFirstFrame(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTrackerWithClock(clk)
	tr.Start()

	clk.Add(1 * time.Second)
	s := tr.Tick()

	if s.Elapsed != 1*time.Second {
		t.Errorf("Elapsed: got %v, want 1s on the first frame", s.Elapsed)
	}
	if !s.FPSValid || s.FPS != 1.0 {
		t.Errorf("FPS: got %f (valid=%v), want 1.0 valid", s.FPS, s.FPSValid)
	}
}

func TestTracker_StartResets(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTrackerWithClock(clk)
	tr.Start()

	clk.Add(time.Second)
	tr.Tick()
	tr.Tick()

	tr.Start()
	s := tr.Snapshot()
	if s.Frames != 0 {
		t.Errorf("Frames after restart: got %d, want 0", s.Frames)
	}
	if s.Elapsed != 0 {
		t.Errorf("Elapsed after restart: got %v, want 0", s.Elapsed)
	}
}

func TestTracker_SnapshotDoesNotCount(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTrackerWithClock(clk)
	tr.Start()

	tr.Tick()
	tr.Snapshot()
	tr.Snapshot()
	s := tr.Snapshot()

	if s.Frames != 1 {
		t.Errorf("Frames: got %d, want 1 after a single tick", s.Frames)
	}
}

func TestMetrics_ObserveSnapshot(t *testing.T) {
	m := NewMetrics()

	m.ObserveSnapshot(Snapshot{Frames: 42, FPS: 12.5, FPSValid: true})
	if got := m.FramesProcessed.Load(); got != 42 {
		t.Errorf("FramesProcessed: got %d, want 42", got)
	}
	if got := m.FPSMilli.Load(); got != 12500 {
		t.Errorf("FPSMilli: got %d, want 12500", got)
	}

	// Invalid rate zeroes the gauge rather than freezing a stale value.
	m.ObserveSnapshot(Snapshot{Frames: 43})
	if got := m.FPSMilli.Load(); got != 0 {
		t.Errorf("FPSMilli: got %d, want 0 while invalid", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.DetectionErrors.Add(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("metrics endpoint: got status %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "vzen_detection_errors_total 3") {
		t.Errorf("metrics body missing detection error counter:\n%s", body)
	}
}
