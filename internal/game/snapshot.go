package game

// Vector is a 2D value used on the wire.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerState is an immutable copy of a ship for broadcast.
type PlayerState struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Velocity Vector  `json:"velocity"`
	Health   int     `json:"health"`
	Score    int     `json:"score"`
	Color    string  `json:"color"`
	Name     string  `json:"name"`
}

// ProjectileState is an immutable copy of a bullet.
type ProjectileState struct {
	ID       uint64  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Velocity Vector  `json:"velocity"`
	PlayerID string  `json:"playerId"`
	TTL      int     `json:"ttl"`
}

// ObstacleState is an immutable copy of an asteroid.
type ObstacleState struct {
	ID            uint64  `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Velocity      Vector  `json:"velocity"`
	Size          float64 `json:"size"`
	Rotation      float64 `json:"rotation"`
	RotationSpeed float64 `json:"rotationSpeed"`
}

// WorldState is the full, unfiltered world every client receives.
// It shares no memory with the Simulation.
type WorldState struct {
	Tick       uint64                 `json:"tick"`
	Players    map[string]PlayerState `json:"players"`
	Bullets    []ProjectileState      `json:"bullets"`
	Asteroids  []ObstacleState        `json:"asteroids"`
	GameWidth  float64                `json:"gameWidth"`
	GameHeight float64                `json:"gameHeight"`
}

// Snapshot copies the whole world. Collections are never nil, so an empty
// arena still encodes as {} and [].
func (s *Simulation) Snapshot() WorldState {
	ws := WorldState{
		Tick:       s.tick,
		Players:    make(map[string]PlayerState, len(s.players)),
		Bullets:    make([]ProjectileState, 0, len(s.projectiles)),
		Asteroids:  make([]ObstacleState, 0, len(s.obstacles)),
		GameWidth:  s.rules.Width,
		GameHeight: s.rules.Height,
	}
	for id, p := range s.players {
		ws.Players[id] = p.toState()
	}
	for _, p := range s.projectiles {
		ws.Bullets = append(ws.Bullets, p.toState())
	}
	for _, o := range s.obstacles {
		ws.Asteroids = append(ws.Asteroids, o.toState())
	}
	return ws
}
