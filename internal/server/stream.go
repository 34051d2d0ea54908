package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// streamEvents upgrades to a WebSocket and forwards bus events as JSON
// text frames. ?source= limits the stream to one source.
func (s *Server) streamEvents(c *fiber.Ctx) error {
	if s.deps.Events == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "event stream not configured")
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	filter := c.Query("source")
	return websocket.New(func(conn *websocket.Conn) {
		s.serveStream(conn, filter)
	})(c)
}

func (s *Server) serveStream(conn *websocket.Conn, filter string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()

	evs, err := s.deps.Events.Subscribe(ctx)
	if err != nil {
		s.log.Warn("event subscribe failed", zap.Error(err))
		return
	}

	// The read side only exists to notice the peer going away.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			if filter != "" && ev.Source != filter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("event stream closed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
