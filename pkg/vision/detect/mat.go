package detect

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/vzenlabs/vzen/pkg/vision"
)

// matFromFrame converts a frame into a 3-channel BGR Mat, the layout every
// OpenCV backend here expects. The caller owns the returned Mat.
func matFromFrame(f *vision.Frame) (gocv.Mat, error) {
	if f == nil || f.Image == nil {
		return gocv.Mat{}, errors.New("detect: nil frame")
	}
	mat, err := gocv.ImageToMatRGB(f.Image)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("detect: convert frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("detect: empty frame")
	}
	return mat, nil
}
