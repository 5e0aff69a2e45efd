package detect

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/vzenlabs/vzen/pkg/vision"
)

// CascadeDetector wraps a Haar cascade classifier. It is the fastest
// backend and the least precise; cascades report hits without a score, so
// every detection carries confidence 1.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	config     Config
	mu         sync.Mutex // Protects inference
}

// NewCascade loads the cascade XML named by cfg.
func NewCascade(cfg Config) (*CascadeDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("cascade file not found: %s", cfg.ModelPath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade from %s", cfg.ModelPath)
	}

	return &CascadeDetector{
		classifier: classifier,
		config:     cfg,
	}, nil
}

// Detect finds faces in the frame.
func (d *CascadeDetector) Detect(frame *vision.Frame) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := matFromFrame(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	rects := d.classifier.DetectMultiScale(img)

	var detections []Detection
	for _, r := range rects {
		detections = append(detections, Detection{
			Left:       r.Min.X,
			Top:        r.Min.Y,
			Right:      r.Max.X,
			Bottom:     r.Max.Y,
			Confidence: 1.0,
		})
	}

	return detections, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// Verify CascadeDetector implements Detector at compile time.
var _ Detector = (*CascadeDetector)(nil)
