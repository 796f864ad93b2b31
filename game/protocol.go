package game

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged over the realtime channel. Both directions are
// asynchronous JSON text frames tagged by "type"; there is no
// request/response pairing beyond the tag.
const (
	// client → server
	MsgPaddle = "paddle"
	MsgStart  = "start"
	MsgStop   = "stop"
	MsgPing   = "ping"

	// server → client
	MsgConnected = "connected"
	MsgState     = "state"
	MsgGameOver  = "gameOver"
	MsgError     = "error"
	MsgPong      = "pong"
)

// CloseSessionFull is the close code sent to a third connection
// attempting to bind an already full session.
const CloseSessionFull = 4009

// ClientMessage is the closed set of inbound frames. Side is honored
// only for local sessions, where one connection drives both paddles;
// remote connections always steer their own seat.
type ClientMessage struct {
	Type      string    `json:"type"`
	Direction Direction `json:"direction,omitempty"`
	Side      Side      `json:"side,omitempty"`
}

// ServerMessage is the closed set of outbound frames.
type ServerMessage struct {
	Type    string    `json:"type"`
	Seat    Side      `json:"seat,omitempty"`
	State   *Snapshot `json:"state,omitempty"`
	Message string    `json:"message,omitempty"`
}

// ParseClientMessage decodes an inbound frame and rejects unknown tags
// and malformed paddle intents before they reach the simulation.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("malformed frame: %w", err)
	}
	switch msg.Type {
	case MsgPaddle:
		switch msg.Direction {
		case DirUp, DirDown, DirStop:
		default:
			return msg, fmt.Errorf("unknown paddle direction %q", msg.Direction)
		}
		switch msg.Side {
		case "", SideLeft, SideRight:
		default:
			return msg, fmt.Errorf("unknown side %q", msg.Side)
		}
	case MsgStart, MsgStop, MsgPing:
	default:
		return msg, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}

// Encode marshals an outbound frame. Marshal errors cannot happen for
// these value types, so the byte slice is returned directly.
func Encode(msg ServerMessage) []byte {
	frame, _ := json.Marshal(msg)
	return frame
}
