package vision

import (
	"context"
	"sync"
)

// Mock implements FrameSource for testing.
// All methods can be customized via function fields.
type Mock struct {
	// NextFunc is called when Next is invoked.
	// If nil, queued results are returned in order, then ErrExhausted.
	NextFunc func(ctx context.Context) (*Frame, error)

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu        sync.Mutex
	queue     []mockResult
	nextCalls int
	closed    bool
}

type mockResult struct {
	frame *Frame
	err   error
}

// NewMock creates a mock source that yields the given frames in order and
// then reports ErrExhausted.
func NewMock(frames ...*Frame) *Mock {
	m := &Mock{}
	for _, f := range frames {
		m.Enqueue(f)
	}
	return m
}

// Enqueue appends a frame to the scripted sequence.
func (m *Mock) Enqueue(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{frame: f})
}

// EnqueueError appends an error to the scripted sequence.
func (m *Mock) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{err: err})
}

// Next calls NextFunc if set, otherwise pops the next scripted result.
func (m *Mock) Next(ctx context.Context) (*Frame, error) {
	m.mu.Lock()
	m.nextCalls++
	m.mu.Unlock()

	if m.NextFunc != nil {
		return m.NextFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, ErrExhausted
	}
	r := m.queue[0]
	m.queue = m.queue[1:]
	return r.frame, r.err
}

// Close calls CloseFunc and records that the source was closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// NextCalls returns how many times Next was invoked.
func (m *Mock) NextCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextCalls
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements FrameSource at compile time.
var _ FrameSource = (*Mock)(nil)
