package vision

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// CaptureConfig selects what a Capture reads from.
type CaptureConfig struct {
	Device int    // camera index, used when Path is empty
	Path   string // video file or stream URL, takes precedence over Device
	Width  int    // requested capture width (0 keeps the device default)
	Height int    // requested capture height (0 keeps the device default)
}

// Capture reads frames from a local camera or video file through OpenCV.
type Capture struct {
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	finite bool

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// OpenCapture opens the configured device or path.
func OpenCapture(cfg CaptureConfig) (*Capture, error) {
	var (
		cap *gocv.VideoCapture
		err error
	)
	if cfg.Path != "" {
		cap, err = gocv.OpenVideoCapture(cfg.Path)
	} else {
		cap, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("vision: open capture: %w", err)
	}
	if cfg.Width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	// A local file runs out of frames eventually; a device or network
	// stream that stops reading is treated as gone instead.
	finite := cfg.Path != "" && !strings.Contains(cfg.Path, "://")

	return &Capture{
		cap:    cap,
		mat:    gocv.NewMat(),
		finite: finite,
	}, nil
}

// Next reads one frame from the device.
func (c *Capture) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrUnavailable
	}

	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		if c.finite {
			return nil, ErrExhausted
		}
		return nil, ErrUnavailable
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("vision: decode frame: %w", err)
	}

	c.seq++
	b := img.Bounds()
	return &Frame{
		Image:     img,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Seq:       c.seq,
		Timestamp: time.Now(),
	}, nil
}

// Close releases the capture device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.mat.Close()
	return c.cap.Close()
}

// Verify Capture implements FrameSource at compile time.
var _ FrameSource = (*Capture)(nil)
