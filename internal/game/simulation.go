package game

import (
	"math/rand"
	"slices"
	"sort"
	"time"
)

// Simulation is the authoritative world: players, projectiles and obstacles.
//
// It is a plain single-threaded state machine. It never blocks, never logs and
// holds no locks; callers must serialize every method call (Engine does).
// All randomness comes from the injected rng so a seeded Simulation replays
// identically.
type Simulation struct {
	rules Rules
	rng   *rand.Rand

	players     map[string]*Player
	projectiles []*Projectile
	obstacles   []*Obstacle // insertion order is the collision tie-break

	tick   uint64
	nextID uint64

	// reused each tick to walk players in a stable order
	order []string
}

// NewSimulation builds a world with rules.InitialObstacles asteroids.
// A nil rng is replaced by a time-seeded one.
func NewSimulation(rules Rules, rng *rand.Rand) (*Simulation, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Simulation{
		rules:       rules,
		rng:         rng,
		players:     make(map[string]*Player),
		projectiles: make([]*Projectile, 0, 64),
		obstacles:   make([]*Obstacle, 0, rules.ObstacleCap),
	}
	for i := 0; i < rules.InitialObstacles; i++ {
		s.spawnObstacle()
	}
	return s, nil
}

// Rules returns the rules the world was built with.
func (s *Simulation) Rules() Rules {
	return s.rules
}

// Join adds a ship for id at a random point of the arena.
// An id that is already playing is left untouched and Join returns false,
// as does a join past MaxPlayers.
func (s *Simulation) Join(id string) bool {
	if _, exists := s.players[id]; exists {
		return false
	}
	if s.rules.MaxPlayers > 0 && len(s.players) >= s.rules.MaxPlayers {
		return false
	}

	x, y := s.randomPoint()
	hue := s.rng.Float64() * 360
	s.players[id] = newPlayer(id, len(s.players)+1, x, y, hue, s.rules.MaxHealth)
	return true
}

// Leave removes id's ship. Unknown ids are ignored. Projectiles already fired
// by the ship keep flying.
func (s *Simulation) Leave(id string) bool {
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

// SetInput points id's ship at rotation and advances that ship by one motion
// step. Every input message moves the ship exactly once, independent of Tick.
// Unknown ids and non-finite rotations are dropped.
func (s *Simulation) SetInput(id string, rotation float64) bool {
	p, ok := s.players[id]
	if !ok || !finite(rotation) {
		return false
	}
	p.steer(rotation, &s.rules)
	return true
}

// Fire launches a projectile from id's ship along its current rotation.
func (s *Simulation) Fire(id string) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	if s.rules.MaxProjectiles > 0 && len(s.projectiles) >= s.rules.MaxProjectiles {
		return false
	}
	s.projectiles = append(s.projectiles, newProjectile(s.newID(), p, &s.rules))
	return true
}

// Tick advances the world by one fixed step: projectiles, then obstacles,
// then collisions on the moved positions.
func (s *Simulation) Tick() TickReport {
	s.tick++
	report := TickReport{Tick: s.tick}

	n := 0
	for _, p := range s.projectiles {
		if p.advance(s.rules.Width, s.rules.Height) {
			s.projectiles[n] = p
			n++
			continue
		}
		report.Expired++
	}
	clear(s.projectiles[n:])
	s.projectiles = s.projectiles[:n]

	for _, o := range s.obstacles {
		o.advance(s.rules.Width, s.rules.Height)
	}

	s.resolveCollisions(&report)
	return report
}

// TickCount returns the number of completed ticks.
func (s *Simulation) TickCount() uint64 {
	return s.tick
}

// PlayerCount returns the number of ships in the arena.
func (s *Simulation) PlayerCount() int {
	return len(s.players)
}

// ObstacleCount returns the number of live obstacles.
func (s *Simulation) ObstacleCount() int {
	return len(s.obstacles)
}

// ProjectileCount returns the number of projectiles in flight.
func (s *Simulation) ProjectileCount() int {
	return len(s.projectiles)
}

// spawnObstacle appends a random asteroid. The draw order (position, velocity,
// radius, spin) is part of the replay contract.
func (s *Simulation) spawnObstacle() *Obstacle {
	x, y := s.randomPoint()
	o := &Obstacle{
		ID:     s.newID(),
		X:      x,
		Y:      y,
		VX:     s.symmetric(s.rules.ObstacleMaxSpeed),
		VY:     s.symmetric(s.rules.ObstacleMaxSpeed),
		Radius: s.rules.ObstacleMinRadius + s.rng.Float64()*(s.rules.ObstacleMaxRadius-s.rules.ObstacleMinRadius),
		Spin:   s.symmetric(s.rules.ObstacleMaxSpin),
	}
	s.obstacles = append(s.obstacles, o)
	return o
}

func (s *Simulation) removeObstacle(i int) *Obstacle {
	o := s.obstacles[i]
	s.obstacles = slices.Delete(s.obstacles, i, i+1)
	return o
}

func (s *Simulation) randomPoint() (x, y float64) {
	x = s.rng.Float64() * s.rules.Width
	y = s.rng.Float64() * s.rules.Height
	return x, y
}

// symmetric draws uniformly from [-limit, limit).
func (s *Simulation) symmetric(limit float64) float64 {
	return (s.rng.Float64() - 0.5) * 2 * limit
}

func (s *Simulation) newID() uint64 {
	s.nextID++
	return s.nextID
}

// sortedPlayerIDs returns player ids in ascending order so per-player passes
// consume random draws deterministically.
func (s *Simulation) sortedPlayerIDs() []string {
	s.order = s.order[:0]
	for id := range s.players {
		s.order = append(s.order, id)
	}
	sort.Strings(s.order)
	return s.order
}
