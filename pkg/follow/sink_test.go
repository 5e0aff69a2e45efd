package follow

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotSink_WritesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	s, err := NewSnapshotSink(dir)
	if err != nil {
		t.Fatalf("NewSnapshotSink: %v", err)
	}

	s.Present(testFrame(1))
	s.Present(testFrame(2))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"vzen_000001.jpg", "vzen_000002.jpg"} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		img, err := jpeg.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
			t.Errorf("%s decoded as %dx%d, want 64x48", name, b.Dx(), b.Dy())
		}
	}
}

func TestSnapshotSink_PresentAfterClose(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSnapshotSink(dir)
	if err != nil {
		t.Fatalf("NewSnapshotSink: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s.Present(testFrame(9))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d files after closed present, want 0", len(entries))
	}

	// Second close is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSnapshotSink_DropsWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSnapshotSink(dir)
	if err != nil {
		t.Fatalf("NewSnapshotSink: %v", err)
	}
	defer s.Close()

	// Flood far beyond the queue; the writer cannot keep up with a
	// tight loop, so at least one frame must be dropped rather than
	// blocking Present.
	for i := 1; i <= snapshotQueue*50; i++ {
		s.Present(testFrame(uint64(i)))
	}

	if s.Dropped() == 0 {
		t.Error("expected drops when flooding the snapshot queue")
	}
}
