// Package web provides the vzen dashboard: loop status, service events
// and the live annotated frame stream over HTTP and websockets.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/vzenlabs/vzen/internal/log"
	"github.com/vzenlabs/vzen/pkg/follow"
	"github.com/vzenlabs/vzen/pkg/hub"
	"github.com/vzenlabs/vzen/pkg/notify"
	"github.com/vzenlabs/vzen/pkg/telemetry"
)

// maxEvents bounds the replay buffer for /api/events.
const maxEvents = 100

// Status is the dashboard view of the tracking loop.
type Status struct {
	Service        string  `json:"service"`
	Version        string  `json:"version"`
	Session        string  `json:"session"`
	LoopState      string  `json:"loop_state"`
	Frames         uint64  `json:"frames"`
	FPS            float64 `json:"fps"`
	FPSValid       bool    `json:"fps_valid"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Faces          int     `json:"faces"`
	CameraClients  int     `json:"camera_clients"`
}

// wsEnvelope wraps the two payload kinds /ws/events carries.
type wsEnvelope struct {
	Type   string        `json:"type"` // "status" or "event"
	Status *Status       `json:"status,omitempty"`
	Event  *notify.Event `json:"event,omitempty"`
}

// Server is the dashboard server.
//
// It consumes the loop from two directions: as a follow.StateUpdater for
// status, and as a notify.Sink for events. Annotated frames arrive through
// the camera hub, fed by a follow.HubSink.
type Server struct {
	app  *fiber.App
	addr string

	// State
	mu     sync.RWMutex
	status Status

	// Event buffer (last maxEvents entries)
	events   []notify.Event
	eventsMu sync.RWMutex

	// Hubs for websocket broadcast
	eventsHub *hub.Hub
	cameraHub *hub.Hub

	cancel context.CancelFunc
}

// NewServer creates the dashboard server. metrics may be nil, which
// disables the /metrics endpoint.
func NewServer(addr, version string, metrics *telemetry.Metrics) *Server {
	s := &Server{
		addr:      addr,
		events:    make([]notify.Event, 0, maxEvents),
		eventsHub: hub.New("events"),
		cameraHub: hub.New("camera"),
		status: Status{
			Service:   notify.ServiceName,
			Version:   version,
			LoopState: follow.StateStarting.String(),
		},
	}

	app := fiber.New(fiber.Config{
		AppName:               "vzen dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)

	if metrics != nil {
		prom := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			prom(c.Context())
			return nil
		})
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start runs the hubs and serves until Shutdown. Blocks.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.eventsHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	log.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync runs Start in a goroutine and logs any listen failure.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server failed", "error", err)
		}
	}()
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.app.Shutdown()
}

// CameraHub returns the hub annotated frames are broadcast through.
// Attach it to the loop with follow.NewHubSink.
func (s *Server) CameraHub() *hub.Hub {
	return s.cameraHub
}

// SetSession records the loop session shown in /api/status.
func (s *Server) SetSession(id string) {
	s.mu.Lock()
	s.status.Session = id
	s.mu.Unlock()
}

// UpdateLoopState implements follow.StateUpdater.
func (s *Server) UpdateLoopState(state follow.State) {
	s.mu.Lock()
	s.status.LoopState = state.String()
	st := s.status
	s.mu.Unlock()

	s.eventsHub.BroadcastJSON(wsEnvelope{Type: "status", Status: &st})
}

// UpdateStats implements follow.StateUpdater.
func (s *Server) UpdateStats(snap telemetry.Snapshot, faces int) {
	s.mu.Lock()
	s.status.Frames = snap.Frames
	s.status.FPS = snap.FPS
	s.status.FPSValid = snap.FPSValid
	s.status.ElapsedSeconds = snap.Elapsed.Seconds()
	s.status.Faces = faces
	st := s.status
	s.mu.Unlock()

	s.eventsHub.BroadcastJSON(wsEnvelope{Type: "status", Status: &st})
}

// Deliver implements notify.Sink: events land in the replay buffer and
// fan out to websocket clients.
func (s *Server) Deliver(_ context.Context, ev notify.Event) error {
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	return s.eventsHub.BroadcastJSON(wsEnvelope{Type: "event", Event: &ev})
}

// Close implements notify.Sink. The hubs are owned by Start/Shutdown, so
// there is nothing to release here.
func (s *Server) Close() error {
	return nil
}

func (s *Server) currentStatus() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	st.CameraClients = s.cameraHub.ClientCount()
	return st
}

func (s *Server) recentEvents() []notify.Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	out := make([]notify.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Interface conformance for the loop wiring.
var (
	_ follow.StateUpdater = (*Server)(nil)
	_ notify.Sink         = (*Server)(nil)
)
