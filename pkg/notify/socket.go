package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const socketWriteWait = 10 * time.Second

// SocketSink pushes events over a websocket, the contract the desktop
// toast bridge listens on. The connection is dialed lazily on the first
// event and redialed after a write failure.
type SocketSink struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSocket creates a websocket sink for the given ws:// or wss:// URL.
func NewSocket(url string) *SocketSink {
	return &SocketSink{url: url}
}

// Deliver writes the event as one JSON message.
func (s *SocketSink) Deliver(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		conn, _, err := dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			return fmt.Errorf("notify: dial %s: %w", s.url, err)
		}
		s.conn = conn
	}

	s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := s.conn.WriteJSON(ev); err != nil {
		// Drop the connection; the next event redials.
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("notify: write event: %w", err)
	}
	return nil
}

// Close sends a close frame and tears the connection down.
func (s *SocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Verify SocketSink implements Sink at compile time.
var _ Sink = (*SocketSink)(nil)
