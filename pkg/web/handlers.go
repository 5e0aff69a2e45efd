package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/vzenlabs/vzen/pkg/hub"
)

// handleIndex serves the embedded dashboard page.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(indexHTML)
}

// handleStatus returns the loop's current state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.currentStatus())
}

// handleEvents returns recent service events, oldest first.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	return c.JSON(s.recentEvents())
}

// handleEventsWS replays the current status and buffered events, then
// follows the live stream until the client disconnects.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	st := s.currentStatus()
	c.WriteJSON(wsEnvelope{Type: "status", Status: &st})
	for _, ev := range s.recentEvents() {
		c.WriteJSON(wsEnvelope{Type: "event", Event: &ev})
	}

	hub.NewClient(s.eventsHub, c).Run()
}

// handleCameraWS streams annotated JPEG frames as binary messages.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
