package game

// TickReport describes what a single Tick changed beyond plain motion.
// The Engine turns it into event-log records and metrics.
type TickReport struct {
	Tick     uint64
	Expired  int // projectiles that ran out of lifetime
	Hits     []ObstacleHit
	Impacts  int // player-obstacle overlaps that dealt damage
	Respawns []Respawn
}

// ObstacleHit records a projectile destroying an obstacle.
type ObstacleHit struct {
	ProjectileID uint64
	ObstacleID   uint64
	OwnerID      string
	Credited     bool   // owner was still playing and received the reward
	Replacement  uint64 // id of the spawned replacement, 0 if the cap was reached
	X, Y         float64
	Radius       float64
}

// Respawn records a ship destroyed by obstacle contact and put back in play.
type Respawn struct {
	PlayerID string
	X, Y     float64
	Score    int // score after the penalty
}

// resolveCollisions runs projectile-obstacle hits first, then player-obstacle
// contact, both on post-motion positions.
func (s *Simulation) resolveCollisions(report *TickReport) {
	s.resolveProjectileHits(report)
	s.resolvePlayerContacts(report)
}

// resolveProjectileHits lets each projectile destroy at most one obstacle.
// Obstacles are tested in insertion order and the first overlap wins. A
// replacement spawned here is appended and can be hit by later projectiles in
// the same pass.
func (s *Simulation) resolveProjectileHits(report *TickReport) {
	n := 0
	for _, p := range s.projectiles {
		idx := s.firstObstacleAt(p.X, p.Y)
		if idx < 0 {
			s.projectiles[n] = p
			n++
			continue
		}

		o := s.removeObstacle(idx)
		hit := ObstacleHit{
			ProjectileID: p.ID,
			ObstacleID:   o.ID,
			OwnerID:      p.OwnerID,
			X:            o.X,
			Y:            o.Y,
			Radius:       o.Radius,
		}
		if owner, ok := s.players[p.OwnerID]; ok {
			owner.Score += s.rules.HitReward
			hit.Credited = true
		}
		if len(s.obstacles) < s.rules.ObstacleCap {
			hit.Replacement = s.spawnObstacle().ID
		}
		report.Hits = append(report.Hits, hit)
	}
	clear(s.projectiles[n:])
	s.projectiles = s.projectiles[:n]
}

func (s *Simulation) firstObstacleAt(x, y float64) int {
	for i, o := range s.obstacles {
		if o.overlaps(x, y, 0) {
			return i
		}
	}
	return -1
}

// resolvePlayerContacts applies damage once per overlapping obstacle, with no
// early exit. The destroyed check runs after every damage step, so a ship is
// respawned the moment its health reaches zero and any remaining overlaps are
// tested against its new position.
func (s *Simulation) resolvePlayerContacts(report *TickReport) {
	for _, id := range s.sortedPlayerIDs() {
		p := s.players[id]
		for _, o := range s.obstacles {
			if !o.overlaps(p.X, p.Y, s.rules.PlayerRadius) {
				continue
			}
			report.Impacts++
			if !p.takeDamage(s.rules.CollisionDamage) {
				continue
			}
			x, y := s.randomPoint()
			p.respawn(x, y, &s.rules)
			report.Respawns = append(report.Respawns, Respawn{
				PlayerID: p.ID,
				X:        p.X,
				Y:        p.Y,
				Score:    p.Score,
			})
		}
	}
}
