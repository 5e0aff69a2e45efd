package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/vzenlabs/vzen/pkg/vision"
)

// CaffeDetector runs the res10 SSD face localizer through OpenCV's DNN
// module. It is the most accurate of the bundled backends on frontal faces
// and needs no GPU.
type CaffeDetector struct {
	net       gocv.Net
	config    Config
	inputSize image.Point
	mu        sync.Mutex // Protects inference
}

// Mean subtraction values the res10 network was trained with.
var caffeMean = gocv.NewScalar(104.0, 177.0, 123.0, 0)

// NewCaffe loads the prototxt and caffemodel named by cfg.
func NewCaffe(cfg Config) (*CaffeDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("prototxt file not found: %s", cfg.ConfigPath)
	}

	net := gocv.ReadNetFromCaffe(cfg.ConfigPath, cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load caffe model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if cfg.InputWidth == 0 {
		cfg.InputWidth = 300
	}
	if cfg.InputHeight == 0 {
		cfg.InputHeight = 300
	}

	return &CaffeDetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds faces in the frame.
func (d *CaffeDetector) Detect(frame *vision.Frame) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := matFromFrame(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	// The net was trained on BGR input with per-channel mean subtraction,
	// so no channel swap here.
	blob := gocv.BlobFromImage(img, 1.0, d.inputSize, caffeMean, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output tensor is [1, 1, N, 7]; each row is
	// [imageID, classID, confidence, left, top, right, bottom] with the
	// box normalized to 0-1.
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}

	var detections []Detection
	for i := 0; i+7 <= len(data); i += 7 {
		confidence := float64(data[i+2])
		if confidence < d.config.ConfidenceThresh {
			continue
		}
		detections = append(detections, Detection{
			Left:       int(float64(data[i+3]) * imgW),
			Top:        int(float64(data[i+4]) * imgH),
			Right:      int(float64(data[i+5]) * imgW),
			Bottom:     int(float64(data[i+6]) * imgH),
			Confidence: confidence,
		})
	}

	return detections, nil
}

// Close releases the network.
func (d *CaffeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// Verify CaffeDetector implements Detector at compile time.
var _ Detector = (*CaffeDetector)(nil)
