package game

import "testing"

// placePlayer joins id and pins the ship at (x, y) with zero velocity.
func placePlayer(t *testing.T, s *Simulation, id string, x, y float64) *Player {
	t.Helper()
	if !s.Join(id) {
		t.Fatalf("Join(%s) failed", id)
	}
	p := s.players[id]
	p.X, p.Y = x, y
	return p
}

// TestProjectileDestroysObstacle is the basic hit scenario
func TestProjectileDestroysObstacle(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	shooter := placePlayer(t, sim, "p1", 700, 550)

	target := &Obstacle{ID: 900, X: 100, Y: 100, Radius: 30}
	sim.obstacles = []*Obstacle{target}
	sim.projectiles = []*Projectile{{ID: 901, OwnerID: "p1", X: 105, Y: 100, TTL: 10}}

	var report TickReport
	sim.resolveCollisions(&report)

	if shooter.Score != 10 {
		t.Errorf("Expected shooter score 10, got %d", shooter.Score)
	}
	if sim.ProjectileCount() != 0 {
		t.Errorf("Expected projectile to be consumed, got %d", sim.ProjectileCount())
	}
	for _, o := range sim.obstacles {
		if o.ID == 900 {
			t.Error("Destroyed obstacle is still in the world")
		}
	}
	if sim.ObstacleCount() != 1 {
		t.Errorf("Expected one replacement obstacle, got %d", sim.ObstacleCount())
	}
	if len(report.Hits) != 1 {
		t.Fatalf("Expected 1 hit in report, got %d", len(report.Hits))
	}
	hit := report.Hits[0]
	if hit.ObstacleID != 900 || hit.ProjectileID != 901 || !hit.Credited || hit.Replacement == 0 {
		t.Errorf("Unexpected hit record %+v", hit)
	}
}

// TestProjectileHitIsStrictOverlap verifies that grazing the rim misses
func TestProjectileHitIsStrictOverlap(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	sim.obstacles = []*Obstacle{{ID: 1, X: 100, Y: 100, Radius: 30}}
	sim.projectiles = []*Projectile{{ID: 2, X: 130, Y: 100, TTL: 10}}

	var report TickReport
	sim.resolveCollisions(&report)

	if len(report.Hits) != 0 || sim.ProjectileCount() != 1 {
		t.Error("Projectile on the rim should not count as a hit")
	}
}

// TestProjectileHitsFirstObstacleInInsertionOrder checks the tie-break
func TestProjectileHitsFirstObstacleInInsertionOrder(t *testing.T) {
	sim := newTestSimulation(t, func(r *Rules) {
		r.InitialObstacles = 0
		r.ObstacleCap = 0
	})
	sim.obstacles = []*Obstacle{
		{ID: 1, X: 100, Y: 100, Radius: 40},
		{ID: 2, X: 110, Y: 100, Radius: 40},
	}
	sim.projectiles = []*Projectile{{ID: 3, X: 105, Y: 100, TTL: 10}}

	var report TickReport
	sim.resolveCollisions(&report)

	if sim.ObstacleCount() != 1 || sim.obstacles[0].ID != 2 {
		t.Fatalf("Expected only obstacle 2 to survive, got %+v", sim.obstacles)
	}
	if len(report.Hits) != 1 || report.Hits[0].ObstacleID != 1 {
		t.Errorf("Expected obstacle 1 to be hit, got %+v", report.Hits)
	}
}

// TestEachProjectileHitsOnce verifies two projectiles on one obstacle
func TestEachProjectileHitsOnce(t *testing.T) {
	sim := newTestSimulation(t, func(r *Rules) {
		r.InitialObstacles = 0
		r.ObstacleCap = 0
	})
	sim.obstacles = []*Obstacle{
		{ID: 1, X: 100, Y: 100, Radius: 40},
		{ID: 2, X: 400, Y: 100, Radius: 40},
	}
	sim.projectiles = []*Projectile{
		{ID: 10, X: 100, Y: 100, TTL: 10},
		{ID: 11, X: 101, Y: 100, TTL: 10},
	}

	var report TickReport
	sim.resolveCollisions(&report)

	if len(report.Hits) != 1 {
		t.Fatalf("Expected a single hit, got %d", len(report.Hits))
	}
	if sim.ProjectileCount() != 1 || sim.projectiles[0].ID != 11 {
		t.Errorf("Second projectile should survive, got %+v", sim.projectiles)
	}
	if sim.ObstacleCount() != 1 || sim.obstacles[0].ID != 2 {
		t.Errorf("Unrelated obstacle should survive, got %+v", sim.obstacles)
	}
}

// TestOrphanProjectileCreditsNobody verifies hits from departed owners
func TestOrphanProjectileCreditsNobody(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	stayer := placePlayer(t, sim, "stayer", 700, 550)

	sim.obstacles = []*Obstacle{{ID: 1, X: 100, Y: 100, Radius: 30}}
	sim.projectiles = []*Projectile{{ID: 2, OwnerID: "gone", X: 100, Y: 100, TTL: 10}}

	var report TickReport
	sim.resolveCollisions(&report)

	if len(report.Hits) != 1 {
		t.Fatalf("Expected the orphan projectile to destroy the obstacle")
	}
	if report.Hits[0].Credited {
		t.Error("Nobody should be credited for an orphan hit")
	}
	if stayer.Score != 0 {
		t.Errorf("Unrelated player was credited: score %d", stayer.Score)
	}
}

// TestReplacementStopsAtCap verifies the field only refills below the cap
func TestReplacementStopsAtCap(t *testing.T) {
	sim := newTestSimulation(t, func(r *Rules) {
		r.InitialObstacles = 0
		r.ObstacleCap = 2
	})
	sim.obstacles = []*Obstacle{
		{ID: 1, X: 100, Y: 100, Radius: 30},
		{ID: 2, X: 300, Y: 300, Radius: 30},
		{ID: 3, X: 500, Y: 500, Radius: 30},
	}
	sim.projectiles = []*Projectile{{ID: 4, X: 100, Y: 100, TTL: 10}}

	var report TickReport
	sim.resolveCollisions(&report)

	if sim.ObstacleCount() != 2 {
		t.Errorf("Expected 2 obstacles, got %d", sim.ObstacleCount())
	}
	if report.Hits[0].Replacement != 0 {
		t.Error("No replacement should spawn at the cap")
	}
}

// TestReplenishKeepsFieldAtCap shoots down the field repeatedly
func TestReplenishKeepsFieldAtCap(t *testing.T) {
	sim := newTestSimulation(t, nil)

	for round := 0; round < 50; round++ {
		o := sim.obstacles[0]
		sim.projectiles = append(sim.projectiles, &Projectile{ID: sim.newID(), X: o.X, Y: o.Y, TTL: 10})

		var report TickReport
		sim.resolveProjectileHits(&report)

		if sim.ObstacleCount() != 5 {
			t.Fatalf("Round %d: expected 5 obstacles, got %d", round, sim.ObstacleCount())
		}
	}
}

// TestPlayerContactDealsDamage verifies a single overlap
func TestPlayerContactDealsDamage(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	p := placePlayer(t, sim, "a", 100, 100)
	sim.obstacles = []*Obstacle{{ID: 1, X: 140, Y: 100, Radius: 30}}

	var report TickReport
	sim.resolveCollisions(&report)

	if p.Health != 95 {
		t.Errorf("Expected health 95, got %d", p.Health)
	}
	if report.Impacts != 1 {
		t.Errorf("Expected 1 impact, got %d", report.Impacts)
	}

	// 45 = 30 + 15 is touching, not overlapping
	p.X = 95
	sim.resolveCollisions(&report)
	if p.Health != 95 {
		t.Errorf("Touching edges should not deal damage, health %d", p.Health)
	}
}

// TestPlayerContactStacksDamage verifies damage per overlapping obstacle
func TestPlayerContactStacksDamage(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	p := placePlayer(t, sim, "a", 100, 100)
	sim.obstacles = []*Obstacle{
		{ID: 1, X: 110, Y: 100, Radius: 30},
		{ID: 2, X: 90, Y: 100, Radius: 30},
		{ID: 3, X: 100, Y: 110, Radius: 30},
	}

	var report TickReport
	sim.resolveCollisions(&report)

	if p.Health != 85 {
		t.Errorf("Expected health 85 after three overlaps, got %d", p.Health)
	}
}

// TestDestroyedShipRespawns covers two overlaps taking a ship from 10 to 0
func TestDestroyedShipRespawns(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	p := placePlayer(t, sim, "a", 100, 100)
	p.Health = 10
	p.Score = 100
	p.VX, p.VY = 3, -2
	sim.obstacles = []*Obstacle{
		{ID: 1, X: 110, Y: 100, Radius: 30},
		{ID: 2, X: 90, Y: 100, Radius: 30},
	}

	var report TickReport
	sim.resolveCollisions(&report)

	if len(report.Respawns) != 1 {
		t.Fatalf("Expected 1 respawn, got %d", len(report.Respawns))
	}
	if p.Health != 100 {
		t.Errorf("Expected full health after respawn, got %d", p.Health)
	}
	if p.Score != 50 {
		t.Errorf("Expected score 50 after penalty, got %d", p.Score)
	}
	if p.VX != 0 || p.VY != 0 {
		t.Errorf("Expected zero velocity after respawn, got (%f, %f)", p.VX, p.VY)
	}
	if p.X < 0 || p.X >= 800 || p.Y < 0 || p.Y >= 600 {
		t.Errorf("Respawn point (%f, %f) outside arena", p.X, p.Y)
	}
	r := report.Respawns[0]
	if r.PlayerID != "a" || r.Score != 50 || r.X != p.X || r.Y != p.Y {
		t.Errorf("Unexpected respawn record %+v", r)
	}
}

// TestRespawnScoreFloor verifies the penalty never drives score negative
func TestRespawnScoreFloor(t *testing.T) {
	sim := newTestSimulation(t, noObstacles)
	p := placePlayer(t, sim, "a", 100, 100)
	p.Health = 5
	p.Score = 20
	sim.obstacles = []*Obstacle{{ID: 1, X: 100, Y: 100, Radius: 30}}

	var report TickReport
	sim.resolveCollisions(&report)

	if p.Score != 0 {
		t.Errorf("Expected score floored at 0, got %d", p.Score)
	}
	if p.Health != 100 {
		t.Errorf("Expected health reset to 100, got %d", p.Health)
	}
}

// TestHealthStaysInRange parks a ship under a large asteroid for many ticks
func TestHealthStaysInRange(t *testing.T) {
	sim := newTestSimulation(t, func(r *Rules) {
		r.InitialObstacles = 0
		r.ObstacleMinRadius = 400
		r.ObstacleMaxRadius = 500
	})
	p := placePlayer(t, sim, "a", 400, 300)
	sim.obstacles = []*Obstacle{{ID: 1, X: 400, Y: 300, Radius: 500}}

	respawns := 0
	for i := 0; i < 500; i++ {
		report := sim.Tick()
		respawns += len(report.Respawns)
		if p.Health <= 0 || p.Health > 100 {
			t.Fatalf("Tick %d: health %d outside (0, 100]", i, p.Health)
		}
		if p.Score < 0 {
			t.Fatalf("Tick %d: negative score %d", i, p.Score)
		}
	}
	if respawns == 0 {
		t.Error("Expected the ship to be destroyed at least once")
	}
}
