package follow

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/vzenlabs/vzen/internal/config"
	"github.com/vzenlabs/vzen/pkg/overlay"
	"github.com/vzenlabs/vzen/pkg/vision"
	"github.com/vzenlabs/vzen/pkg/vision/detect"
)

// Config holds all configuration for a tracking run.
// Flag parsing is done in cmd/vzen/main.go; this struct is data only.
type Config struct {
	// Source selects where frames come from.
	Source vision.CaptureConfig

	// Detector selects and configures the detection backend.
	Detector detect.Config

	// Overlay configures the frame annotations.
	Overlay overlay.Config

	// MaxFrames stops the run after this many processed frames.
	// Zero means no frame limit.
	MaxFrames uint64

	// MaxDuration stops the run after this much elapsed time.
	// Zero means no duration limit.
	MaxDuration time.Duration
}

// DefaultConfig returns production defaults: first camera, caffe backend,
// standard overlay, no stop limits.
func DefaultConfig() Config {
	return Config{
		Source:   vision.CaptureConfig{Device: 0},
		Detector: detect.DefaultConfig(),
		Overlay:  overlay.DefaultConfig(),
	}
}

// LoadEnv applies environment overrides.
// Call this after flag parsing; env vars win over flags.
func (c *Config) LoadEnv() {
	if src := config.Str(config.EnvSource, ""); src != "" {
		if dev, err := strconv.Atoi(src); err == nil {
			c.Source.Device = dev
			c.Source.Path = ""
		} else {
			c.Source.Path = src
		}
	}

	if backend := config.Str(config.EnvBackend, ""); backend != "" {
		switch v := detect.Variant(backend); v {
		case detect.VariantCaffe:
			c.Detector = detect.DefaultConfig()
		case detect.VariantYuNet:
			c.Detector = detect.DefaultYuNetConfig()
		case detect.VariantCascade:
			c.Detector = detect.DefaultCascadeConfig()
		default:
			// Unknown variants surface through Validate
			c.Detector.Variant = v
		}
	}

	if dir := config.Str(config.EnvModelDir, ""); dir != "" {
		c.Detector.ModelPath = filepath.Join(dir, filepath.Base(c.Detector.ModelPath))
		if c.Detector.ConfigPath != "" {
			c.Detector.ConfigPath = filepath.Join(dir, filepath.Base(c.Detector.ConfigPath))
		}
	}

	c.Detector.ConfidenceThresh = config.Float(config.EnvConfidence, c.Detector.ConfidenceThresh)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	errors = append(errors, c.Detector.Validate()...)

	if c.Source.Device < 0 {
		errors = append(errors, "source device must not be negative")
	}
	if c.Source.Width < 0 || c.Source.Height < 0 {
		errors = append(errors, "source size must not be negative")
	}
	if c.MaxDuration < 0 {
		errors = append(errors, "max duration must not be negative")
	}

	return errors
}
