// Package overlay renders detection boxes and run statistics onto frames.
//
// The renderer is a pure function of its inputs: the same frame, detections
// and snapshot always produce the same pixels. It never mutates the frame it
// is given; every call draws into a fresh RGBA copy. Degenerate geometry is
// clamped to a visible box rather than rejected, so a bad detection can
// never take down a run.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/vzenlabs/vzen/pkg/telemetry"
	"github.com/vzenlabs/vzen/pkg/vision"
	"github.com/vzenlabs/vzen/pkg/vision/detect"
)

var ttf *truetype.Font

// init sets up the font used for labels and statistics.
func init() {
	var err error
	ttf, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// palette rotates per detection, first face first color.
var palette = []color.NRGBA{
	{R: 255, G: 59, B: 48, A: 255},  // red
	{R: 0, G: 122, B: 255, A: 255},  // blue
	{R: 76, G: 217, B: 100, A: 255}, // green
	{R: 255, G: 204, B: 0, A: 255},  // yellow
	{R: 255, G: 149, B: 0, A: 255},  // orange
	{R: 90, G: 200, B: 250, A: 255}, // teal
	{R: 88, G: 86, B: 214, A: 255},  // purple
	{R: 255, G: 45, B: 85, A: 255},  // pink
}

// fpsPending is shown until the tracker has a measurable rate.
const fpsPending = "--"

// landmarkRadius is the dot size for facial keypoints.
const landmarkRadius = 2

// Config holds renderer settings.
type Config struct {
	// LineWidth is the box outline stroke width in pixels.
	LineWidth float64

	// FontSize is the label and statistics text size in points.
	FontSize float64

	// DrawLandmarks enables keypoint dots for backends that emit them.
	DrawLandmarks bool

	// Banner is drawn in the top right corner when non-empty.
	Banner string
}

// DefaultConfig returns the standard HUD settings.
func DefaultConfig() Config {
	return Config{
		LineWidth: 2,
		FontSize:  13,
	}
}

// Renderer draws the vzen HUD onto frames.
type Renderer struct {
	cfg  Config
	face font.Face
}

// New creates a renderer with the given settings.
func New(cfg Config) *Renderer {
	if cfg.LineWidth <= 0 {
		cfg.LineWidth = 2
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = 13
	}
	return &Renderer{
		cfg:  cfg,
		face: truetype.NewFace(ttf, &truetype.Options{Size: cfg.FontSize}),
	}
}

// Render draws the detections and the statistics panel onto a copy of the
// frame. The input frame is left untouched.
func (r *Renderer) Render(frame *vision.Frame, dets []detect.Detection, snap telemetry.Snapshot) (*image.RGBA, error) {
	if frame == nil || frame.Image == nil {
		return nil, errors.New("overlay: nil frame")
	}
	bounds := frame.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("overlay: degenerate frame %dx%d", bounds.Dx(), bounds.Dy())
	}

	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame.Image, frame.Image.Bounds().Min, draw.Src)

	dc := gg.NewContextForRGBA(out)
	dc.SetFontFace(r.face)

	for i, det := range dets {
		r.drawDetection(dc, bounds, i, det)
	}

	r.drawStats(dc, bounds, snap)

	if r.cfg.Banner != "" {
		dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 230})
		dc.DrawStringAnchored(r.cfg.Banner, float64(bounds.Max.X-8), 8+r.cfg.FontSize/2, 1, 0.5)
	}

	return out, nil
}

// drawDetection draws one face box with its label and landmarks.
func (r *Renderer) drawDetection(dc *gg.Context, bounds image.Rectangle, idx int, det detect.Detection) {
	c := palette[idx%len(palette)]
	box := clampBox(det, bounds)

	dc.SetColor(c)
	dc.SetLineWidth(r.cfg.LineWidth)
	dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
	dc.Stroke()

	label := det.Label
	if label == "" {
		label = fmt.Sprintf("#%03d %.1f%%", idx+1, det.Confidence*100)
	}
	if r.cfg.DrawLandmarks {
		if roll, ok := detect.RollAngle(det.Landmarks); ok {
			label = fmt.Sprintf("%s %+.0f°", label, roll)
		}
	}

	labelW, labelH := dc.MeasureString(label)
	pad := 3.0

	// Label strip sits above the box unless that leaves the frame, then it
	// tucks inside the top edge.
	ly := float64(box.Min.Y) - labelH - 2*pad
	if ly < float64(bounds.Min.Y) {
		ly = float64(box.Min.Y)
	}
	lx := float64(box.Min.X)
	if over := lx + labelW + 2*pad - float64(bounds.Max.X); over > 0 {
		lx -= over
	}
	if lx < float64(bounds.Min.X) {
		lx = float64(bounds.Min.X)
	}

	dc.SetColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 200})
	dc.DrawRectangle(lx, ly, labelW+2*pad, labelH+2*pad)
	dc.Fill()

	dc.SetColor(color.NRGBA{A: 255})
	dc.DrawStringAnchored(label, lx+pad, ly+pad+labelH/2, 0, 0.5)

	if r.cfg.DrawLandmarks {
		dc.SetColor(c)
		for _, p := range det.Landmarks {
			dc.DrawCircle(float64(p.X), float64(p.Y), landmarkRadius)
			dc.Fill()
		}
	}
}

// drawStats draws the elapsed/FPS panel in the bottom left corner. It is
// drawn on every frame, detections or not.
func (r *Renderer) drawStats(dc *gg.Context, bounds image.Rectangle, snap telemetry.Snapshot) {
	text := statsLine(snap)
	w, h := dc.MeasureString(text)
	pad := 4.0

	x := float64(bounds.Min.X) + 6
	y := float64(bounds.Max.Y) - h - 2*pad - 6

	dc.SetColor(color.NRGBA{A: 160})
	dc.DrawRectangle(x, y, w+2*pad, h+2*pad)
	dc.Fill()

	dc.SetColor(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	dc.DrawStringAnchored(text, x+pad, y+pad+h/2, 0, 0.5)
}

// statsLine formats the panel text, keeping the rate pending until the
// tracker reports a measurable one.
func statsLine(snap telemetry.Snapshot) string {
	if !snap.FPSValid {
		return fmt.Sprintf("%s : %s FPS", formatElapsed(snap.Elapsed), fpsPending)
	}
	return fmt.Sprintf("%s : %.1f FPS", formatElapsed(snap.Elapsed), snap.FPS)
}

// formatElapsed renders a duration as H:MM:SS, truncating subseconds.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// clampBox canonicalizes the detection and clamps it into bounds, keeping
// at least one pixel each way so a degenerate box still draws.
func clampBox(det detect.Detection, bounds image.Rectangle) image.Rectangle {
	d := det.Canon()
	x0 := clamp(d.Left, bounds.Min.X, bounds.Max.X-1)
	y0 := clamp(d.Top, bounds.Min.Y, bounds.Max.Y-1)
	x1 := clamp(d.Right, x0+1, bounds.Max.X)
	y1 := clamp(d.Bottom, y0+1, bounds.Max.Y)
	return image.Rect(x0, y0, x1, y1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
