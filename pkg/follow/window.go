package follow

import (
	"gocv.io/x/gocv"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/vision"
)

// escKey is the keycode WaitKey reports for Escape.
const escKey = 27

// WindowSink shows annotated frames in an OpenCV window.
//
// highgui is not thread safe: Present must run on the goroutine that
// created the window, which the loop guarantees when the sink is
// attached before Run.
type WindowSink struct {
	window *gocv.Window
	stop   func()
}

// NewWindowSink opens a named window. stop runs when the user presses
// Escape; pass the loop's Stop method.
func NewWindowSink(title string, stop func()) *WindowSink {
	return &WindowSink{
		window: gocv.NewWindow(title),
		stop:   stop,
	}
}

// Present shows the frame and polls the keyboard.
func (w *WindowSink) Present(frame *vision.Frame) {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		log.Warn("window convert failed", "frame", frame.Seq, "error", err)
		return
	}
	defer mat.Close()
	if mat.Empty() {
		return
	}

	w.window.IMShow(mat)
	if w.window.WaitKey(1) == escKey && w.stop != nil {
		w.stop()
	}
}

// Close destroys the window.
func (w *WindowSink) Close() error {
	return w.window.Close()
}

// Verify WindowSink implements Sink at compile time.
var _ Sink = (*WindowSink)(nil)
