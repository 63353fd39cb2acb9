package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with world counters
	EventTypePlayerJoin
	EventTypePlayerLeave
	EventTypeFire
	EventTypeObstacleDestroyed
	EventTypeRespawn
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is one line of the audit log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // assigned by EventLog
	TickNum   uint64          `json:"tickNum"`
	PlayerID  string          `json:"playerId,omitempty"` // source player, drives per-player rate limiting
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypePlayerJoin:
		return "player_join"
	case EventTypePlayerLeave:
		return "player_leave"
	case EventTypeFire:
		return "fire"
	case EventTypeObstacleDestroyed:
		return "obstacle_destroyed"
	case EventTypeRespawn:
		return "respawn"
	default:
		return "unknown"
	}
}

// MarshalText lets events carry their readable type name in JSON.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TickPayload summarizes a tick for replay and debugging
type TickPayload struct {
	Players     int `json:"players"`
	Projectiles int `json:"projectiles"`
	Obstacles   int `json:"obstacles"`
	Expired     int `json:"expired"`
	Impacts     int `json:"impacts"`
}

// PlayerJoinPayload contains player join details
type PlayerJoinPayload struct {
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	SpawnX   float64 `json:"spawnX"`
	SpawnY   float64 `json:"spawnY"`
}

// PlayerLeavePayload contains the final standing of a leaving player
type PlayerLeavePayload struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// FirePayload contains the launch state of a projectile
type FirePayload struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// ObstacleDestroyedPayload contains hit details
type ObstacleDestroyedPayload struct {
	ObstacleID   uint64  `json:"obstacleId"`
	ProjectileID uint64  `json:"projectileId"`
	OwnerID      string  `json:"ownerId"`
	Credited     bool    `json:"credited"`
	Replacement  uint64  `json:"replacement,omitempty"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// RespawnPayload contains respawn details
type RespawnPayload struct {
	PlayerID string  `json:"playerId"`
	SpawnX   float64 `json:"spawnX"`
	SpawnY   float64 `json:"spawnY"`
	Score    int     `json:"score"`
}

// NewEvent creates a new event with the current timestamp.
// A payload that fails to marshal is dropped, the event itself is kept.
func NewEvent(eventType EventType, tickNum uint64, playerID string, payload interface{}) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		PlayerID:  playerID,
		Payload:   data,
	}
}
