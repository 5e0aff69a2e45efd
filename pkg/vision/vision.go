// Package vision provides frame acquisition for the vzen pipeline.
//
// A FrameSource hands out frames one at a time, in capture order, with a
// monotonically increasing sequence number. Sources wrap a local camera or
// video file (Capture, via OpenCV) or a network MJPEG stream (MJPEGSource).
// Tests use the scripted Mock.
//
// Sources distinguish two terminal conditions: ErrExhausted means a finite
// source delivered its last frame and the run should wind down normally;
// ErrUnavailable means the source broke mid run.
package vision

import (
	"context"
	"errors"
	"image"
	"time"
)

// Sentinel errors for terminal source conditions.
var (
	// ErrExhausted reports that a finite source delivered its last frame.
	// It signals normal end of stream, not a failure.
	ErrExhausted = errors.New("vision: source exhausted")

	// ErrUnavailable reports that the source can no longer deliver frames,
	// for example a camera unplugged mid run.
	ErrUnavailable = errors.New("vision: source unavailable")
)

// Frame is one captured image moving through the pipeline.
//
// A frame belongs to the loop iteration that pulled it. Anything that draws
// on a frame works on a copy; Image is never mutated in place.
type Frame struct {
	// Image holds the decoded pixels.
	Image image.Image

	// Width and Height are the pixel dimensions of Image.
	Width  int
	Height int

	// Seq increases by one for every frame the source hands out,
	// starting at 1.
	Seq uint64

	// Timestamp is the capture instant.
	Timestamp time.Time
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// FrameSource hands out frames in capture order.
//
// Next blocks until a frame is available or the source reaches a terminal
// condition. After Next returns ErrExhausted or ErrUnavailable, every later
// call returns the same class of error. Close releases the underlying device
// or stream and is safe to call more than once.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}
