package protocol

import (
	"math"
	"unicode/utf8"
)

// Client to server
const (
	EventPlayerMove  = "playerMove"
	EventPlayerShoot = "playerShoot"
	EventChatMessage = "chatMessage"
	EventPing        = "ping"
)

// Server to client
const (
	EventPlayerID  = "playerId"
	EventGameState = "gameState"
	EventPong      = "pong"
	// chatMessage is relayed under the same name it arrives with
)

// MovePayload is the data of a playerMove event.
type MovePayload struct {
	Rotation *float64 `json:"rotation"`
}

// Valid reports whether the payload carries a usable heading.
func (m MovePayload) Valid() bool {
	return m.Rotation != nil && !math.IsNaN(*m.Rotation) && !math.IsInf(*m.Rotation, 0)
}

// ChatRelay is broadcast to every client when someone chats.
type ChatRelay struct {
	PlayerID string `json:"playerId"`
	Message  any    `json:"message"`
}

// TrimChat cuts a text message to at most limit runes. limit <= 0 disables it.
func TrimChat(msg string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	n := 0
	for i := range msg {
		if n == limit {
			return msg[:i]
		}
		n++
	}
	return msg
}
