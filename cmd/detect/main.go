// vzen-detect - one-shot face detection over a single image.
// Runs a detection backend on an image file, prints the results and
// writes an annotated copy.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/overlay"
	"github.com/vzenlabs/vzen/pkg/telemetry"
	"github.com/vzenlabs/vzen/pkg/vision"
	"github.com/vzenlabs/vzen/pkg/vision/detect"
)

func main() {
	backend := flag.String("backend", string(detect.VariantCaffe), "detection backend: caffe, yunet or cascade")
	model := flag.String("model", "", "model weights path (overrides the backend default)")
	modelConfig := flag.String("model-config", "", "caffe prototxt path (overrides the backend default)")
	confidence := flag.Float64("confidence", 0, "minimum detection confidence (0 keeps the backend default)")
	out := flag.String("out", "", "annotated output path (default <image>_vzen.jpg)")
	landmarks := flag.Bool("landmarks", false, "draw landmark dots for backends that emit them")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vzen-detect [flags] <image>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := backendConfig(*backend)
	if *model != "" {
		cfg.ModelPath = *model
	}
	if *modelConfig != "" {
		cfg.ConfigPath = *modelConfig
	}
	if *confidence > 0 {
		cfg.ConfidenceThresh = *confidence
	}

	if err := run(path, *out, cfg, *landmarks); err != nil {
		fmt.Fprintf(os.Stderr, "vzen-detect: %v\n", err)
		os.Exit(1)
	}
}

func run(path, outPath string, cfg detect.Config, landmarks bool) error {
	frame, err := loadFrame(path)
	if err != nil {
		return err
	}

	detector, err := detect.New(cfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	started := time.Now()
	dets, err := detector.Detect(frame)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	took := time.Since(started)

	fmt.Printf("%s: %d face(s) in %s\n", filepath.Base(path), len(dets), took.Round(time.Millisecond))
	for i, d := range dets {
		fmt.Printf("  #%03d  (%d,%d)-(%d,%d)  %.1f%%\n",
			i+1, d.Left, d.Top, d.Right, d.Bottom, d.Confidence*100)
	}

	renderer := overlay.New(overlay.Config{DrawLandmarks: landmarks})
	annotated, err := renderer.Render(frame, dets, telemetry.Snapshot{Frames: 1, Elapsed: took})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if outPath == "" {
		ext := filepath.Ext(path)
		outPath = strings.TrimSuffix(path, ext) + "_vzen.jpg"
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, annotated, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", outPath)
	return nil
}

// loadFrame decodes an image file into a single-frame pipeline frame.
func loadFrame(path string) (*vision.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	b := img.Bounds()
	return &vision.Frame{
		Image:     img,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Seq:       1,
		Timestamp: time.Now(),
	}, nil
}

// backendConfig maps a variant name onto its default configuration.
// Unknown names pass through and fail in detect.New with a clear error.
func backendConfig(backend string) detect.Config {
	switch v := detect.Variant(backend); v {
	case detect.VariantYuNet:
		return detect.DefaultYuNetConfig()
	case detect.VariantCascade:
		return detect.DefaultCascadeConfig()
	case detect.VariantCaffe:
		return detect.DefaultConfig()
	default:
		cfg := detect.DefaultConfig()
		cfg.Variant = v
		return cfg
	}
}
