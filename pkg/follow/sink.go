package follow

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/hub"
	"github.com/vzenlabs/vzen/pkg/vision"
)

// jpegQuality is used for every JPEG this package encodes.
const jpegQuality = 80

// HubSink encodes annotated frames as JPEG and broadcasts them to
// dashboard clients through a hub. The broadcast drops when the hub
// backs up, so a slow dashboard never stalls the loop.
type HubSink struct {
	hub *hub.Hub
}

// NewHubSink wraps a broadcast hub as a frame sink.
func NewHubSink(h *hub.Hub) *HubSink {
	return &HubSink{hub: h}
}

// Present encodes and broadcasts the frame.
// Encoding is skipped entirely while nobody is connected.
func (s *HubSink) Present(frame *vision.Frame) {
	if s.hub.ClientCount() == 0 {
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Warn("frame encode failed", "frame", frame.Seq, "error", err)
		return
	}
	s.hub.BroadcastBinary(buf.Bytes())
}

// Close is a no-op; the hub outlives the loop.
func (s *HubSink) Close() error {
	return nil
}

// snapshotQueue bounds how many frames can wait for the disk.
const snapshotQueue = 8

// SnapshotSink writes annotated frames into a directory as numbered JPEG
// files. Writes happen on a background goroutine behind a bounded queue;
// frames are dropped when the disk cannot keep up.
type SnapshotSink struct {
	dir  string
	ch   chan *vision.Frame
	done chan struct{}

	// Protects closed and dropped
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewSnapshotSink creates the directory if needed and starts the writer.
func NewSnapshotSink(dir string) (*SnapshotSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("follow: snapshot dir: %w", err)
	}

	s := &SnapshotSink{
		dir:  dir,
		ch:   make(chan *vision.Frame, snapshotQueue),
		done: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Present queues the frame for writing, dropping it when the queue is
// full or the sink is closed.
func (s *SnapshotSink) Present(frame *vision.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- frame:
	default:
		s.dropped++
		log.Debug("snapshot queue full, dropping frame", "frame", frame.Seq)
	}
}

// Dropped returns how many frames were discarded.
func (s *SnapshotSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close drains queued frames to disk and stops the writer. Safe to call
// more than once.
func (s *SnapshotSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.ch)
	<-s.done
	return nil
}

func (s *SnapshotSink) run() {
	defer close(s.done)
	for frame := range s.ch {
		if err := s.write(frame); err != nil {
			log.Warn("snapshot write failed", "frame", frame.Seq, "error", err)
		}
	}
}

func (s *SnapshotSink) write(frame *vision.Frame) error {
	name := fmt.Sprintf("vzen_%06d.jpg", frame.Seq)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Verify sink implementations at compile time.
var (
	_ Sink = (*HubSink)(nil)
	_ Sink = (*SnapshotSink)(nil)
)
