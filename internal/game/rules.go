package game

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRules is wrapped by every Rules.Validate failure.
var ErrInvalidRules = errors.New("invalid simulation rules")

// Rules holds every tunable constant of the simulation.
// The zero value is not usable; start from DefaultRules.
type Rules struct {
	// Arena bounds (toroidal)
	Width  float64
	Height float64

	// Ship motion, applied once per input message
	Thrust  float64
	Damping float64

	// Projectiles
	BulletSpeed    float64
	BulletTTL      int // ticks
	MaxProjectiles int // hard cap, 0 = unlimited

	// Obstacle spawning and replenishment
	InitialObstacles  int
	ObstacleCap       int // a destroyed obstacle is replaced while the count is below this
	ObstacleMinRadius float64
	ObstacleMaxRadius float64
	ObstacleMaxSpeed  float64 // per axis, velocity drawn from [-max, max)
	ObstacleMaxSpin   float64 // radians per tick, drawn from [-max, max)

	// Combat and scoring
	PlayerRadius    float64
	MaxHealth       int
	CollisionDamage int
	HitReward       int
	DeathPenalty    int

	// Hard cap on concurrent players, 0 = unlimited
	MaxPlayers int
}

// DefaultRules returns the classic arcade tuning: 800x600 arena, five
// asteroids, 100-tick bullets.
func DefaultRules() Rules {
	return Rules{
		Width:             800,
		Height:            600,
		Thrust:            0.1,
		Damping:           0.98,
		BulletSpeed:       5,
		BulletTTL:         100,
		MaxProjectiles:    500,
		InitialObstacles:  5,
		ObstacleCap:       8,
		ObstacleMinRadius: 30,
		ObstacleMaxRadius: 50,
		ObstacleMaxSpeed:  1,
		ObstacleMaxSpin:   0.05,
		PlayerRadius:      15,
		MaxHealth:         100,
		CollisionDamage:   5,
		HitReward:         10,
		DeathPenalty:      50,
		MaxPlayers:        100,
	}
}

// Validate rejects configurations that would corrupt the world state.
func (r Rules) Validate() error {
	if !finite(r.Width, r.Height, r.Thrust, r.Damping, r.BulletSpeed,
		r.ObstacleMinRadius, r.ObstacleMaxRadius, r.ObstacleMaxSpeed,
		r.ObstacleMaxSpin, r.PlayerRadius) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidRules)
	}

	switch {
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("%w: arena must be positive, got %gx%g", ErrInvalidRules, r.Width, r.Height)
	case r.Thrust < 0:
		return fmt.Errorf("%w: thrust %g is negative", ErrInvalidRules, r.Thrust)
	case r.Damping <= 0 || r.Damping > 1:
		return fmt.Errorf("%w: damping %g outside (0, 1]", ErrInvalidRules, r.Damping)
	case r.BulletSpeed < 0:
		return fmt.Errorf("%w: bullet speed %g is negative", ErrInvalidRules, r.BulletSpeed)
	case r.BulletTTL <= 0:
		return fmt.Errorf("%w: bullet ttl must be positive, got %d", ErrInvalidRules, r.BulletTTL)
	case r.InitialObstacles < 0:
		return fmt.Errorf("%w: initial obstacle count %d is negative", ErrInvalidRules, r.InitialObstacles)
	case r.ObstacleCap < r.InitialObstacles:
		return fmt.Errorf("%w: obstacle cap %d below initial count %d", ErrInvalidRules, r.ObstacleCap, r.InitialObstacles)
	case r.ObstacleMinRadius <= 0 || r.ObstacleMaxRadius < r.ObstacleMinRadius:
		return fmt.Errorf("%w: obstacle radius range [%g, %g)", ErrInvalidRules, r.ObstacleMinRadius, r.ObstacleMaxRadius)
	case r.ObstacleMaxSpeed < 0 || r.ObstacleMaxSpin < 0:
		return fmt.Errorf("%w: obstacle speed and spin must not be negative", ErrInvalidRules)
	case r.PlayerRadius < 0:
		return fmt.Errorf("%w: player radius %g is negative", ErrInvalidRules, r.PlayerRadius)
	case r.MaxHealth <= 0:
		return fmt.Errorf("%w: max health must be positive, got %d", ErrInvalidRules, r.MaxHealth)
	case r.CollisionDamage < 0 || r.HitReward < 0 || r.DeathPenalty < 0:
		return fmt.Errorf("%w: damage, reward and penalty must not be negative", ErrInvalidRules)
	case r.MaxPlayers < 0 || r.MaxProjectiles < 0:
		return fmt.Errorf("%w: caps must not be negative", ErrInvalidRules)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
