package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/vision"
)

// YuNetDetector uses OpenCV's FaceDetectorYN. It is lighter than the caffe
// SSD and the only backend that reports facial landmarks.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet detector from the ONNX model named by cfg.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	if cfg.InputWidth == 0 {
		cfg.InputWidth = 320
	}
	if cfg.InputHeight == 0 {
		cfg.InputHeight = 320
	}

	// Input size is updated per frame; the constructor size is a seed.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh), // Score threshold
		0.3,                           // NMS threshold
		5000,                          // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the frame.
func (d *YuNetDetector) Detect(frame *vision.Frame) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := matFromFrame(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	// YuNet output rows have 15 columns:
	// 0-3: x, y, w, h (bounding box in pixels)
	// 4-13: five facial landmarks as x,y pairs
	// 14: face score
	var detections []Detection
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		landmarks := make([]image.Point, 0, 5)
		for l := 0; l < 5; l++ {
			landmarks = append(landmarks, image.Pt(
				int(faces.GetFloatAt(r, 4+l*2)),
				int(faces.GetFloatAt(r, 5+l*2)),
			))
		}

		detections = append(detections, Detection{
			Left:       x,
			Top:        y,
			Right:      x + w,
			Bottom:     y + h,
			Confidence: score,
			Landmarks:  landmarks,
		})
	}

	if len(detections) > 0 {
		log.Debug("yunet detections", "count", len(detections), "frame", frame.Seq)
	}

	return detections, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

// Verify YuNetDetector implements Detector at compile time.
var _ Detector = (*YuNetDetector)(nil)
