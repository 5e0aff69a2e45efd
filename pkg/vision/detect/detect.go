// Package detect provides face detection backends for the vzen pipeline.
//
// Three OpenCV-backed variants are supported: a Caffe SSD localizer
// (res10 300x300), YuNet (ONNX, with landmarks) and a Haar cascade.
// The backend is chosen by Config.Variant once at construction time;
// an unknown variant is a configuration error, never a silent default.
package detect

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/vzenlabs/vzen/pkg/vision"
)

// ErrUnknownVariant is returned by New for a variant it does not support.
var ErrUnknownVariant = errors.New("detect: unknown variant")

// Detection is one face found in a frame.
//
// Coordinates are pixels in the frame's coordinate space with the origin at
// the top left. A canonical detection has Left <= Right and Top <= Bottom;
// Canon normalizes anything a backend hands back inverted. Detections are
// built fresh for every frame and never persisted across frames.
type Detection struct {
	Left   int
	Top    int
	Right  int
	Bottom int

	// Confidence is the backend's score, nominally in [0, 1].
	Confidence float64

	// Label overrides the tag the overlay draws for this face.
	// Left empty, the overlay derives one from the confidence.
	Label string

	// Landmarks holds backend keypoints in pixels. YuNet emits five:
	// right eye, left eye, nose tip, right mouth corner, left mouth
	// corner. Other backends leave this nil.
	Landmarks []image.Point
}

// Rect returns the bounding box as a canonical image.Rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.Left, d.Top, d.Right, d.Bottom)
}

// Canon returns the detection with coordinates swapped into canonical order.
func (d Detection) Canon() Detection {
	if d.Left > d.Right {
		d.Left, d.Right = d.Right, d.Left
	}
	if d.Top > d.Bottom {
		d.Top, d.Bottom = d.Bottom, d.Top
	}
	return d
}

// Width returns the box width in pixels.
func (d Detection) Width() int {
	if d.Right < d.Left {
		return d.Left - d.Right
	}
	return d.Right - d.Left
}

// Height returns the box height in pixels.
func (d Detection) Height() int {
	if d.Bottom < d.Top {
		return d.Top - d.Bottom
	}
	return d.Bottom - d.Top
}

// Area returns the box area in square pixels.
func (d Detection) Area() int {
	return d.Width() * d.Height()
}

// Center returns the box midpoint.
func (d Detection) Center() image.Point {
	r := d.Rect()
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// Detector finds faces in a frame.
//
// Detect returns an empty slice when nothing is found; an error means the
// backend itself failed on this frame, which callers treat as a per-frame
// condition rather than a reason to stop. Implementations are safe for
// concurrent use.
type Detector interface {
	Detect(frame *vision.Frame) ([]Detection, error)
	Close() error
}

// Variant names a detection backend.
type Variant string

// Supported backends.
const (
	VariantCaffe   Variant = "caffe"
	VariantYuNet   Variant = "yunet"
	VariantCascade Variant = "cascade"
)

// Config holds backend configuration.
type Config struct {
	// Variant selects the backend. Checked once at construction and
	// never reassigned mid run.
	Variant Variant

	// ModelPath points at the weights: the .caffemodel for caffe, the
	// .onnx model for yunet, the cascade XML for cascade.
	ModelPath string

	// ConfigPath is the caffe prototxt. Unused by other variants.
	ConfigPath string

	// ConfidenceThresh drops detections scoring below it.
	ConfidenceThresh float64

	// InputWidth and InputHeight are the network input size.
	InputWidth  int
	InputHeight int
}

// DefaultConfig returns production defaults for the caffe SSD backend.
func DefaultConfig() Config {
	return Config{
		Variant:          VariantCaffe,
		ModelPath:        "models/res10_300x300_ssd_iter_140000.caffemodel",
		ConfigPath:       "models/deploy.prototxt.txt",
		ConfidenceThresh: 0.5,
		InputWidth:       300,
		InputHeight:      300,
	}
}

// DefaultYuNetConfig returns production defaults for the yunet backend.
func DefaultYuNetConfig() Config {
	return Config{
		Variant:          VariantYuNet,
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// DefaultCascadeConfig returns production defaults for the cascade backend.
func DefaultCascadeConfig() Config {
	return Config{
		Variant:          VariantCascade,
		ModelPath:        "models/haarcascade_frontalface_default.xml",
		ConfidenceThresh: 0.5,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Variant {
	case VariantCaffe:
		if c.ModelPath == "" {
			errors = append(errors, "caffe variant requires model_path")
		}
		if c.ConfigPath == "" {
			errors = append(errors, "caffe variant requires config_path (prototxt)")
		}
	case VariantYuNet:
		if c.ModelPath == "" {
			errors = append(errors, "yunet variant requires model_path")
		}
	case VariantCascade:
		if c.ModelPath == "" {
			errors = append(errors, "cascade variant requires model_path (cascade xml)")
		}
	default:
		errors = append(errors, fmt.Sprintf("unknown variant %q", c.Variant))
	}

	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		errors = append(errors, "confidence_thresh must be between 0 and 1")
	}
	if c.InputWidth < 0 || c.InputHeight < 0 {
		errors = append(errors, "input size must not be negative")
	}

	return errors
}

// New builds the backend selected by cfg.Variant.
func New(cfg Config) (Detector, error) {
	switch cfg.Variant {
	case VariantCaffe:
		return NewCaffe(cfg)
	case VariantYuNet:
		return NewYuNet(cfg)
	case VariantCascade:
		return NewCascade(cfg)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownVariant, cfg.Variant)
	}
}

// RollAngle estimates head roll in degrees from a landmark set that leads
// with the two eyes, as the yunet backend emits. The second return is false
// when the landmarks do not include a usable eye pair.
func RollAngle(landmarks []image.Point) (float64, bool) {
	if len(landmarks) < 2 {
		return 0, false
	}
	re, le := landmarks[0], landmarks[1]
	if re == le {
		return 0, false
	}
	return math.Atan2(float64(le.Y-re.Y), float64(le.X-re.X)) * 180 / math.Pi, true
}
