package handlers

import (
	"errors"
	"log"

	"pong-platform/game"
	"pong-platform/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SetupWebsocketRoutes mounts the realtime channel: one bidirectional
// connection per seat per session, JSON text frames tagged by type.
func SetupWebsocketRoutes(app *fiber.App, registry *game.Registry) {
	app.Use("/sessions/:id/ws", middleware.PrincipalMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/sessions/:id/ws", websocket.New(func(c *websocket.Conn) {
		serveSession(registry, c)
	}))
}

// serveSession owns one connection: it binds a seat, runs the receive
// loop inline and drains the seat's send queue on a write pump. The
// pump is the sole writer on the socket.
func serveSession(registry *game.Registry, c *websocket.Conn) {
	defer c.Close()

	sessionID := c.Params("id")
	s, ok := registry.Get(sessionID)
	if !ok {
		c.WriteMessage(websocket.TextMessage,
			game.Encode(game.ServerMessage{Type: game.MsgError, Message: "session not found"}))
		return
	}

	principal, _ := c.Locals(middleware.PrincipalKey).(middleware.Principal)

	seat, err := s.Bind(principal.ID)
	if errors.Is(err, game.ErrSessionFull) {
		// Rejecting the third connection must not disturb the two
		// bound seats.
		c.WriteMessage(websocket.TextMessage,
			game.Encode(game.ServerMessage{Type: game.MsgError, Message: "session full"}))
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(game.CloseSessionFull, "session full"))
		return
	}

	send(seat, game.ServerMessage{Type: game.MsgConnected, Seat: seat.Side})
	snap := s.Snapshot()
	send(seat, game.ServerMessage{Type: game.MsgState, State: &snap})

	go writePump(c, seat)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			break
		}
		handleFrame(s, seat, data)
	}

	// Disconnect path: free the seat, and make sure no tick schedule
	// survives a session with zero live connections.
	s.Unbind(seat)
	if s.SeatCount() == 0 && s.Mode != game.ModeTournament {
		registry.Delete(sessionID)
	}
	log.Printf("connection closed: session=%s seat=%s user=%d", sessionID, seat.Side, principal.ID)
}

// handleFrame dispatches one inbound frame. A malformed frame is
// answered with an error frame on the same connection; it never
// terminates the session.
func handleFrame(s *game.Session, seat *game.Seat, data []byte) {
	msg, err := game.ParseClientMessage(data)
	if err != nil {
		send(seat, game.ServerMessage{Type: game.MsgError, Message: err.Error()})
		return
	}

	switch msg.Type {
	case game.MsgPaddle:
		side := seat.Side
		if s.Mode == game.ModeLocal && msg.Side != "" {
			side = msg.Side
		}
		s.ApplyIntent(side, msg.Direction)
	case game.MsgStart:
		if err := s.Start(); err != nil {
			send(seat, game.ServerMessage{Type: game.MsgError, Message: err.Error()})
		}
	case game.MsgStop:
		s.Stop()
	case game.MsgPing:
		send(seat, game.ServerMessage{Type: game.MsgPong})
	}
}

// send queues an outbound frame, dropping it if the seat's queue is
// full — outbound I/O never blocks gameplay.
func send(seat *game.Seat, msg game.ServerMessage) {
	select {
	case seat.Send <- game.Encode(msg):
	default:
	}
}

// writePump drains the seat queue onto the socket until the seat is
// released by Unbind or registry teardown, then closes the socket so
// the read loop unblocks.
func writePump(c *websocket.Conn, seat *game.Seat) {
	defer c.Close()
	for {
		select {
		case <-seat.Done():
			return
		case frame := <-seat.Send:
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}
