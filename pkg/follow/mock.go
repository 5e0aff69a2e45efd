package follow

import (
	"sync"

	"github.com/vzenlabs/vzen/pkg/vision"
)

// MockSink implements Sink for testing.
// Presented frames are recorded; hooks can layer extra behavior.
type MockSink struct {
	// PresentFunc runs after each frame is recorded.
	PresentFunc func(frame *vision.Frame)

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu     sync.Mutex
	frames []*vision.Frame
	closed bool
}

// NewMockSink creates an empty recording sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Present records the frame and then runs PresentFunc.
func (m *MockSink) Present(frame *vision.Frame) {
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()

	if m.PresentFunc != nil {
		m.PresentFunc(frame)
	}
}

// Close calls CloseFunc and records that the sink was closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Frames returns every presented frame in order.
func (m *MockSink) Frames() []*vision.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*vision.Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

// Seqs returns the sequence numbers of presented frames, in order.
func (m *MockSink) Seqs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	seqs := make([]uint64, len(m.frames))
	for i, f := range m.frames {
		seqs[i] = f.Seq
	}
	return seqs
}

// Closed reports whether Close was called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify MockSink implements Sink at compile time.
var _ Sink = (*MockSink)(nil)
