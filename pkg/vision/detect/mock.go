package detect

import (
	"sync"

	"github.com/vzenlabs/vzen/pkg/vision"
)

// Mock implements Detector for testing.
// All methods can be customized via function fields.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, queued results are returned in order; once the queue is
	// empty, Detect reports no faces.
	DetectFunc func(frame *vision.Frame) ([]Detection, error)

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu          sync.Mutex
	queue       []mockDetect
	detectCalls int
	seen        []uint64
	closed      bool
}

type mockDetect struct {
	dets []Detection
	err  error
}

// NewMock creates a mock detector that reports no faces.
func NewMock() *Mock {
	return &Mock{}
}

// Enqueue appends a per-frame result to the scripted sequence.
func (m *Mock) Enqueue(dets ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockDetect{dets: dets})
}

// EnqueueError appends a backend failure to the scripted sequence.
func (m *Mock) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockDetect{err: err})
}

// Detect records the frame and returns the next scripted result.
func (m *Mock) Detect(frame *vision.Frame) ([]Detection, error) {
	m.mu.Lock()
	m.detectCalls++
	if frame != nil {
		m.seen = append(m.seen, frame.Seq)
	}
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(frame)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil
	}
	r := m.queue[0]
	m.queue = m.queue[1:]
	return r.dets, r.err
}

// Close calls CloseFunc and records that the detector was closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// DetectCalls returns how many times Detect was invoked.
func (m *Mock) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detectCalls
}

// Seen returns the sequence numbers of every frame passed to Detect,
// in order.
func (m *Mock) Seen() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, len(m.seen))
	copy(out, m.seen)
	return out
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
