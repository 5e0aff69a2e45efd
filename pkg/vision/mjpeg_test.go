package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMJPEGSource_ReadsFrames(t *testing.T) {
	frame := encodeJPEG(t, 32, 24, color.RGBA{40, 40, 40, 255})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for i := 0; i < 3; i++ {
			w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n"))
			w.Write(frame)
			w.Write([]byte("\r\n"))
		}
	}))
	defer srv.Close()

	src, err := OpenMJPEG(srv.URL)
	if err != nil {
		t.Fatalf("OpenMJPEG failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		f, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if f.Seq != uint64(i) {
			t.Errorf("Next %d: got seq %d, want %d", i, f.Seq, i)
		}
		if f.Width != 32 || f.Height != 24 {
			t.Errorf("Next %d: got %dx%d, want 32x24", i, f.Width, f.Height)
		}
	}

	_, err = src.Next(ctx)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Next after stream end: got %v, want ErrExhausted", err)
	}
}

func TestMJPEGSource_RecoversFromNoise(t *testing.T) {
	frame := encodeJPEG(t, 32, 24, color.RGBA{90, 90, 90, 255})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		// Junk before the first marker, sloppy part framing after.
		w.Write(bytes.Repeat([]byte{0x00, 0xff, 0x01}, 64))
		w.Write(frame)
		w.Write([]byte("garbage between frames"))
		w.Write(frame)
	}))
	defer srv.Close()

	src, err := OpenMJPEG(srv.URL)
	if err != nil {
		t.Fatalf("OpenMJPEG failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		f, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if f.Width != 32 {
			t.Errorf("Next %d: got width %d, want 32", i, f.Width)
		}
	}
}

func TestMJPEGSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := OpenMJPEG(srv.URL); err == nil {
		t.Error("OpenMJPEG: expected error for non-200 response")
	}
}

func TestMJPEGSource_ClosedReturnsUnavailable(t *testing.T) {
	frame := encodeJPEG(t, 32, 24, color.RGBA{10, 10, 10, 255})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(frame)
	}))
	defer srv.Close()

	src, err := OpenMJPEG(srv.URL)
	if err != nil {
		t.Fatalf("OpenMJPEG failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close twice is fine.
	if err := src.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	_, err = src.Next(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Next after Close: got %v, want ErrUnavailable", err)
	}
}

// Helper functions

func encodeJPEG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}
