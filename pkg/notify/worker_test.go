package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/vzenlabs/vzen/pkg/telemetry"
)

type testSink struct {
	deliverHook func()

	mu        sync.Mutex
	delivered []Event
	closed    bool
}

func (s *testSink) Deliver(_ context.Context, ev Event) error {
	if s.deliverHook != nil {
		s.deliverHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, ev)
	return nil
}

func (s *testSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *testSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.delivered))
	copy(out, s.delivered)
	return out
}

func TestWorker_DeliversInOrder(t *testing.T) {
	sink := &testSink{}
	w := NewWorker(nil, sink)

	w.Notify(NewEvent(KindLoopStarted, "a"))
	w.Notify(NewEvent(KindDetectionError, "b"))
	w.Notify(NewEvent(KindLoopStopped, "c"))
	w.Close()

	got := sink.events()
	if len(got) != 3 {
		t.Fatalf("delivered: got %d events, want 3", len(got))
	}
	wantKinds := []Kind{KindLoopStarted, KindDetectionError, KindLoopStopped}
	for i, ev := range got {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d: got kind %s, want %s", i, ev.Kind, wantKinds[i])
		}
	}

	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if !closed {
		t.Error("Close: expected sink to be closed")
	}
}

func TestWorker_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	sink := &testSink{deliverHook: func() {
		once.Do(func() { close(started) })
		<-block
	}}

	w := NewWorker(nil, sink)

	// Park the worker inside the first delivery, then fill the queue.
	w.Notify(NewEvent(KindLoopStarted, "first"))
	<-started
	for i := 0; i < queueSize; i++ {
		w.Notify(NewEvent(KindDetectionError, "fill"))
	}

	// The queue is full and the worker is busy: this one must drop.
	w.Notify(NewEvent(KindDetectionError, "overflow"))
	if got := w.Dropped(); got != 1 {
		t.Errorf("Dropped: got %d, want 1", got)
	}

	close(block)
	w.Close()

	if got := len(sink.events()); got != queueSize+1 {
		t.Errorf("delivered: got %d events, want %d", got, queueSize+1)
	}
}

func TestWorker_NotifyAfterClose(t *testing.T) {
	sink := &testSink{}
	w := NewWorker(nil, sink)
	w.Close()

	// Must not panic, must count the drop.
	w.Notify(NewEvent(KindLoopStopped, "late"))
	if got := w.Dropped(); got != 1 {
		t.Errorf("Dropped: got %d, want 1", got)
	}

	// Close twice is fine.
	w.Close()
}

func TestWorker_MetricsCounters(t *testing.T) {
	m := telemetry.NewMetrics()
	sink := &testSink{}
	w := NewWorker(m, sink)

	w.Notify(NewEvent(KindLoopStarted, "a"))
	w.Notify(NewEvent(KindLoopStopped, "b"))
	w.Close()
	w.Notify(NewEvent(KindLoopStopped, "dropped"))

	if got := m.EventsSent.Load(); got != 2 {
		t.Errorf("EventsSent: got %d, want 2", got)
	}
	if got := m.EventsDropped.Load(); got != 1 {
		t.Errorf("EventsDropped: got %d, want 1", got)
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(KindSourceLost, "camera gone")

	if ev.ID == "" {
		t.Error("NewEvent: expected non-empty ID")
	}
	if ev.Service != ServiceName {
		t.Errorf("Service: got %q, want %q", ev.Service, ServiceName)
	}
	if ev.Kind != KindSourceLost {
		t.Errorf("Kind: got %s, want %s", ev.Kind, KindSourceLost)
	}
	if ev.Message != "camera gone" {
		t.Errorf("Message: got %q", ev.Message)
	}
	if ev.Time.IsZero() {
		t.Error("Time: expected a timestamp")
	}

	if NewEvent(KindSourceLost, "again").ID == ev.ID {
		t.Error("NewEvent: expected unique IDs")
	}
}

func TestMockNotifier_RecordsKinds(t *testing.T) {
	m := &MockNotifier{}
	m.Notify(NewEvent(KindLoopStarted, "a"))
	m.Notify(NewEvent(KindLoopStopped, "b"))

	kinds := m.Kinds()
	if len(kinds) != 2 || kinds[0] != KindLoopStarted || kinds[1] != KindLoopStopped {
		t.Errorf("Kinds: got %v", kinds)
	}
}
