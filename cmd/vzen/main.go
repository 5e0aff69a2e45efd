// vzen - real-time face tracking service.
// Follows faces in a camera, file or network stream, draws the tracking
// overlay and serves a live dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vzenlabs/vzen/internal/config"
	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/follow"
	"github.com/vzenlabs/vzen/pkg/notify"
	"github.com/vzenlabs/vzen/pkg/telemetry"
	"github.com/vzenlabs/vzen/pkg/vision/detect"
	"github.com/vzenlabs/vzen/pkg/web"
)

// version is stamped at build time via -ldflags.
var version = "dev"

type options struct {
	cfg          follow.Config
	listenAddr   string
	notifyURL    string
	window       bool
	snapshots    string
	restart      bool
	restartDelay time.Duration
	logLevel     string
}

func main() {
	opts := parseFlags()
	log.Init(opts.logLevel)

	fmt.Printf("👁  vzen %s - face tracking service\n", version)
	fmt.Printf("🌐 Dashboard: http://localhost%s\n", displayAddr(opts.listenAddr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics()

	server := web.NewServer(opts.listenAddr, version, metrics)
	server.StartAsync()
	defer server.Shutdown()

	sinks := []notify.Sink{notify.LogSink{}, server}
	if opts.notifyURL != "" {
		sinks = append(sinks, notifySink(opts.notifyURL))
	}
	worker := notify.NewWorker(metrics, sinks...)
	defer worker.Close()

	for {
		err := runOnce(ctx, opts, metrics, worker, server)
		if err != nil {
			log.Error("tracking run failed", "error", err)
		}

		if !opts.restart || ctx.Err() != nil {
			if err != nil {
				os.Exit(1)
			}
			return
		}

		log.Info("restarting tracking loop", "delay", opts.restartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(opts.restartDelay):
		}
	}
}

// runOnce drives a single loop lifecycle. Each run gets a fresh Loop and
// fresh sinks; the dashboard, metrics and notify worker persist across
// restarts.
func runOnce(ctx context.Context, opts options, metrics *telemetry.Metrics, notifier notify.Notifier, server *web.Server) error {
	loop, err := follow.New(opts.cfg)
	if err != nil {
		return err
	}

	server.SetSession(loop.Session())
	loop.SetMetrics(metrics)
	loop.SetNotifier(notifier)
	loop.SetStateUpdater(server)

	var sinks []follow.Sink
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				log.Warn("sink close failed", "error", err)
			}
		}
	}()

	hubSink := follow.NewHubSink(server.CameraHub())
	loop.AddSink(hubSink)
	sinks = append(sinks, hubSink)

	if opts.window {
		w := follow.NewWindowSink("vzen", loop.Stop)
		loop.AddSink(w)
		sinks = append(sinks, w)
	}
	if opts.snapshots != "" {
		snap, err := follow.NewSnapshotSink(opts.snapshots)
		if err != nil {
			return err
		}
		loop.AddSink(snap)
		sinks = append(sinks, snap)
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}

	stats := loop.Snapshot()
	fmt.Printf("📷 Processed %d frames in %s\n",
		stats.Frames, stats.Elapsed.Round(time.Millisecond))
	return nil
}

// parseFlags parses command line flags and returns run options.
func parseFlags() options {
	cfg := follow.DefaultConfig()

	source := flag.String("source", "", "video source: camera index, file path or stream URL (default camera 0)")
	backend := flag.String("backend", string(cfg.Detector.Variant), "detection backend: caffe, yunet or cascade")
	model := flag.String("model", "", "model weights path (overrides the backend default)")
	modelConfig := flag.String("model-config", "", "caffe prototxt path (overrides the backend default)")
	confidence := flag.Float64("confidence", cfg.Detector.ConfidenceThresh, "minimum detection confidence (0-1)")
	width := flag.Int("width", 0, "requested capture width (0 keeps the device default)")
	height := flag.Int("height", 0, "requested capture height (0 keeps the device default)")
	maxFrames := flag.Uint64("max-frames", 0, "stop after this many frames (0 = no limit)")
	maxDuration := flag.Duration("max-duration", 0, "stop after this much time (0 = no limit)")
	landmarks := flag.Bool("landmarks", false, "draw landmark dots for backends that emit them")
	banner := flag.Bool("banner", true, "draw the version tag on frames")
	window := flag.Bool("window", false, "show annotated frames in an OpenCV window (Esc stops)")
	snapshots := flag.String("snapshots", "", "write annotated JPEGs into this directory")
	listen := flag.String("listen", ":8181", "dashboard listen address")
	notifyURL := flag.String("notify-url", "", "event delivery URL: http(s):// webhook or ws(s):// socket")
	restart := flag.Bool("restart", false, "restart the loop after it ends")
	restartDelay := flag.Duration("restart-delay", 30*time.Second, "wait between restarts")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")

	flag.Parse()

	applySource(&cfg, *source)
	applyBackend(&cfg, *backend, *model, *modelConfig)
	cfg.Detector.ConfidenceThresh = *confidence
	cfg.Source.Width = *width
	cfg.Source.Height = *height
	cfg.MaxFrames = *maxFrames
	cfg.MaxDuration = *maxDuration
	cfg.Overlay.DrawLandmarks = *landmarks
	if *banner {
		cfg.Overlay.Banner = "vzen " + version
	}

	return options{
		cfg:          cfg,
		listenAddr:   config.Str(config.EnvListenAddr, *listen),
		notifyURL:    config.Str(config.EnvNotifyURL, *notifyURL),
		window:       *window,
		snapshots:    *snapshots,
		restart:      *restart,
		restartDelay: *restartDelay,
		logLevel:     config.Str(config.EnvLogLevel, *logLevel),
	}
}

// applySource maps the -source flag onto the capture config. A bare
// number selects a camera device; anything else is a path or URL.
func applySource(cfg *follow.Config, source string) {
	if source == "" {
		return
	}
	if dev, err := strconv.Atoi(source); err == nil {
		cfg.Source.Device = dev
		cfg.Source.Path = ""
		return
	}
	cfg.Source.Path = source
}

// applyBackend selects the detector variant with its default model
// paths, then applies explicit path overrides.
func applyBackend(cfg *follow.Config, backend, model, modelConfig string) {
	switch v := detect.Variant(backend); v {
	case detect.VariantCaffe:
		cfg.Detector = detect.DefaultConfig()
	case detect.VariantYuNet:
		cfg.Detector = detect.DefaultYuNetConfig()
	case detect.VariantCascade:
		cfg.Detector = detect.DefaultCascadeConfig()
	default:
		// Unknown variants fail validation with a clear message
		cfg.Detector.Variant = v
	}

	if model != "" {
		cfg.Detector.ModelPath = model
	}
	if modelConfig != "" {
		cfg.Detector.ConfigPath = modelConfig
	}
}

// notifySink picks the sink implementation for the -notify-url scheme.
func notifySink(url string) notify.Sink {
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return notify.NewSocket(url)
	}
	return notify.NewWebhook(url)
}

// displayAddr makes a bare ":8181" listen address printable.
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}
