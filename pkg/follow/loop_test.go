package follow

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vzenlabs/vzen/pkg/notify"
	"github.com/vzenlabs/vzen/pkg/telemetry"
	"github.com/vzenlabs/vzen/pkg/vision"
	"github.com/vzenlabs/vzen/pkg/vision/detect"
)

func TestLoop_ProcessesFramesInOrder(t *testing.T) {
	l := newLoop(t)

	// More frames than we consume, so only the explicit stop can end
	// the run.
	first := testFrame(1)
	src := vision.NewMock(
		first, testFrame(2), testFrame(3), testFrame(4), testFrame(5),
	)
	det := detect.NewMock()
	det.Enqueue()
	det.Enqueue(oneFace())
	det.Enqueue()

	notifier := &notify.MockNotifier{}
	sink := NewMockSink()
	sink.PresentFunc = func(*vision.Frame) {
		if len(sink.Seqs()) == 3 {
			l.Stop()
		}
	}

	l.source = src
	l.detector = det
	l.SetNotifier(notifier)
	l.AddSink(sink)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantSeqs := []uint64{1, 2, 3}
	gotSeqs := sink.Seqs()
	if len(gotSeqs) != len(wantSeqs) {
		t.Fatalf("presented %d frames, want %d", len(gotSeqs), len(wantSeqs))
	}
	for i, want := range wantSeqs {
		if gotSeqs[i] != want {
			t.Errorf("present[%d] seq = %d, want %d", i, gotSeqs[i], want)
		}
	}

	// The stop arrived during frame 3; frame 4 must never be pulled.
	if calls := src.NextCalls(); calls != 3 {
		t.Errorf("source pulls = %d, want 3", calls)
	}

	if frames := l.Snapshot().Frames; frames != 3 {
		t.Errorf("frame counter = %d, want 3", frames)
	}

	wantKinds := []notify.Kind{notify.KindLoopStarted, notify.KindLoopStopped}
	assertKinds(t, notifier.Kinds(), wantKinds)

	if got := l.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if !src.Closed() {
		t.Error("source not closed after run")
	}
	if !det.Closed() {
		t.Error("detector not closed after run")
	}

	// Sinks receive annotated copies, never the captured frame itself.
	if sink.Frames()[0].Image == first.Image {
		t.Error("sink received the captured frame, want an annotated copy")
	}
}

func TestLoop_SourceLostStopsRun(t *testing.T) {
	l := newLoop(t)

	src := vision.NewMock(testFrame(1))
	src.EnqueueError(vision.ErrUnavailable)

	notifier := &notify.MockNotifier{}
	sink := NewMockSink()

	l.source = src
	l.detector = detect.NewMock()
	l.SetNotifier(notifier)
	l.AddSink(sink)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.Seqs(); len(got) != 1 || got[0] != 1 {
		t.Errorf("presented seqs = %v, want [1]", got)
	}

	wantKinds := []notify.Kind{
		notify.KindLoopStarted,
		notify.KindSourceLost,
		notify.KindLoopStopped,
	}
	assertKinds(t, notifier.Kinds(), wantKinds)

	if got := l.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if !src.Closed() {
		t.Error("source not closed after lost source")
	}
}

func TestLoop_DetectionErrorKeepsRunning(t *testing.T) {
	l := newLoop(t)

	src := vision.NewMock(testFrame(1), testFrame(2), testFrame(3))
	det := detect.NewMock()
	det.Enqueue(oneFace())
	det.EnqueueError(errors.New("inference failed"))
	det.Enqueue(oneFace())

	notifier := &notify.MockNotifier{}
	metrics := telemetry.NewMetrics()
	sink := NewMockSink()

	l.source = src
	l.detector = det
	l.SetNotifier(notifier)
	l.SetMetrics(metrics)
	l.AddSink(sink)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The failed frame still reaches the sinks as stats-only output.
	if got := sink.Seqs(); len(got) != 3 {
		t.Fatalf("presented %d frames, want 3", len(got))
	}
	if frames := l.Snapshot().Frames; frames != 3 {
		t.Errorf("frame counter = %d, want 3", frames)
	}

	wantKinds := []notify.Kind{
		notify.KindLoopStarted,
		notify.KindDetectionError,
		notify.KindLoopStopped,
	}
	assertKinds(t, notifier.Kinds(), wantKinds)

	if got := metrics.DetectionErrors.Load(); got != 1 {
		t.Errorf("detection errors = %d, want 1", got)
	}
	if got := metrics.FramesPresented.Load(); got != 3 {
		t.Errorf("frames presented = %d, want 3", got)
	}
	if got := metrics.FacesDetected.Load(); got != 2 {
		t.Errorf("faces detected = %d, want 2", got)
	}
}

func TestLoop_FrameLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrames = 2
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := vision.NewMock(
		testFrame(1), testFrame(2), testFrame(3), testFrame(4), testFrame(5),
	)
	sink := NewMockSink()

	l.source = src
	l.detector = detect.NewMock()
	l.AddSink(sink)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sink.Seqs(); len(got) != 2 {
		t.Errorf("presented %d frames, want 2", len(got))
	}
	if calls := src.NextCalls(); calls != 2 {
		t.Errorf("source pulls = %d, want 2", calls)
	}
}

func TestLoop_DurationLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDuration = time.Second
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clk := clock.NewMock()
	l.tracker = telemetry.NewTrackerWithClock(clk)

	src := vision.NewMock(
		testFrame(1), testFrame(2), testFrame(3), testFrame(4),
	)
	sink := NewMockSink()
	sink.PresentFunc = func(*vision.Frame) {
		clk.Add(600 * time.Millisecond)
	}

	l.source = src
	l.detector = detect.NewMock()
	l.AddSink(sink)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 600ms per frame crosses the one second limit after two frames.
	if got := sink.Seqs(); len(got) != 2 {
		t.Errorf("presented %d frames, want 2", len(got))
	}
}

func TestLoop_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.Variant = "imaginary"

	l, err := New(cfg)
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
	if l != nil {
		t.Error("expected nil loop on invalid config")
	}
}

func TestLoop_StartFailureEmitsNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.ModelPath = "testdata/missing.caffemodel"
	cfg.Detector.ConfigPath = "testdata/missing.prototxt"

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := vision.NewMock(testFrame(1))
	notifier := &notify.MockNotifier{}
	l.source = src
	l.SetNotifier(notifier)

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing model files")
	}

	if events := notifier.Events(); len(events) != 0 {
		t.Errorf("got %d events before a successful start, want 0", len(events))
	}
	if calls := src.NextCalls(); calls != 0 {
		t.Errorf("source pulls = %d, want 0", calls)
	}
	if got := l.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
}

func TestLoop_StopBeforeRun(t *testing.T) {
	l := newLoop(t)

	src := vision.NewMock(testFrame(1), testFrame(2))
	notifier := &notify.MockNotifier{}

	l.source = src
	l.detector = detect.NewMock()
	l.SetNotifier(notifier)

	l.Stop()
	l.Stop() // idempotent

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if calls := src.NextCalls(); calls != 0 {
		t.Errorf("source pulls = %d, want 0", calls)
	}
	assertKinds(t, notifier.Kinds(),
		[]notify.Kind{notify.KindLoopStarted, notify.KindLoopStopped})
}

func TestLoop_CancelDuringBlockedRead(t *testing.T) {
	l := newLoop(t)

	src := &vision.Mock{}
	src.NextFunc = func(ctx context.Context) (*vision.Frame, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	notifier := &notify.MockNotifier{}
	l.source = src
	l.detector = detect.NewMock()
	l.SetNotifier(notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// A cancel is a clean stop, not a lost source.
	assertKinds(t, notifier.Kinds(),
		[]notify.Kind{notify.KindLoopStarted, notify.KindLoopStopped})
}

func TestLoop_PublishesStateUpdates(t *testing.T) {
	l := newLoop(t)

	src := vision.NewMock(testFrame(1), testFrame(2))
	det := detect.NewMock()
	det.Enqueue(oneFace())
	det.Enqueue()

	updater := &fakeUpdater{}
	l.source = src
	l.detector = det
	l.SetStateUpdater(updater)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantStates := []State{StateRunning, StateStopping, StateStopped}
	gotStates := updater.States()
	if len(gotStates) != len(wantStates) {
		t.Fatalf("state updates = %v, want %v", gotStates, wantStates)
	}
	for i, want := range wantStates {
		if gotStates[i] != want {
			t.Errorf("state update[%d] = %v, want %v", i, gotStates[i], want)
		}
	}

	gotFaces := updater.Faces()
	if len(gotFaces) != 2 || gotFaces[0] != 1 || gotFaces[1] != 0 {
		t.Errorf("face counts = %v, want [1 0]", gotFaces)
	}
}

// Helper functions

func newLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func testFrame(seq uint64) *vision.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	return &vision.Frame{
		Image:     img,
		Width:     64,
		Height:    48,
		Seq:       seq,
		Timestamp: time.Unix(int64(seq), 0),
	}
}

func oneFace() detect.Detection {
	return detect.Detection{Left: 10, Top: 8, Right: 40, Bottom: 36, Confidence: 0.92}
}

func assertKinds(t *testing.T, got, want []notify.Kind) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

type fakeUpdater struct {
	mu     sync.Mutex
	states []State
	faces  []int
}

func (u *fakeUpdater) UpdateLoopState(s State) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.states = append(u.states, s)
}

func (u *fakeUpdater) UpdateStats(snap telemetry.Snapshot, faces int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.faces = append(u.faces, faces)
}

func (u *fakeUpdater) States() []State {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]State, len(u.states))
	copy(out, u.states)
	return out
}

func (u *fakeUpdater) Faces() []int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]int, len(u.faces))
	copy(out, u.faces)
	return out
}
