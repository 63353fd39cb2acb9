package game

import (
	"fmt"
	"math"
)

// Player is one connected ship. It lives from Join to Leave.
type Player struct {
	ID    string
	Name  string  // cosmetic, fixed at join
	Color string  // cosmetic, fixed at join
	Hue   float64 // hue behind Color, degrees

	X, Y     float64
	Rotation float64 // radians, set by input
	VX, VY   float64

	Health int
	Score  int
}

func newPlayer(id string, ordinal int, x, y, hue float64, maxHealth int) *Player {
	return &Player{
		ID:     id,
		Name:   fmt.Sprintf("Player%d", ordinal),
		Color:  hslColor(hue),
		Hue:    hue,
		X:      x,
		Y:      y,
		Health: maxHealth,
	}
}

// steer points the ship along rotation and integrates exactly one motion step:
// thrust, damping, position, wrap.
func (p *Player) steer(rotation float64, r *Rules) {
	p.Rotation = rotation

	hx, hy := heading(rotation)
	p.VX += hx * r.Thrust
	p.VY += hy * r.Thrust

	p.VX *= r.Damping
	p.VY *= r.Damping

	p.X = wrapEdge(p.X+p.VX, r.Width)
	p.Y = wrapEdge(p.Y+p.VY, r.Height)
}

// takeDamage lowers health and reports whether the ship was destroyed.
func (p *Player) takeDamage(amount int) bool {
	p.Health -= amount
	return p.Health <= 0
}

// respawn restores a destroyed ship at (x, y) and charges the death penalty.
// Score never drops below zero.
func (p *Player) respawn(x, y float64, r *Rules) {
	p.Health = r.MaxHealth
	p.X = x
	p.Y = y
	p.VX = 0
	p.VY = 0
	p.Score = max(0, p.Score-r.DeathPenalty)
}

func (p *Player) toState() PlayerState {
	return PlayerState{
		ID:       p.ID,
		X:        p.X,
		Y:        p.Y,
		Rotation: p.Rotation,
		Velocity: Vector{X: p.VX, Y: p.VY},
		Health:   p.Health,
		Score:    p.Score,
		Color:    p.Color,
		Name:     p.Name,
	}
}

func hslColor(hue float64) string {
	return fmt.Sprintf("hsl(%.1f, 100%%, 50%%)", hue)
}

// HueRGB converts a fully saturated, half-lightness hue to 8-bit RGB.
func HueRGB(hue float64) (r, g, b uint8) {
	h := math.Mod(hue, 360)
	if h < 0 {
		h += 360
	}
	x := 1 - math.Abs(math.Mod(h/60, 2)-1)

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = 1, x, 0
	case h < 120:
		rf, gf, bf = x, 1, 0
	case h < 180:
		rf, gf, bf = 0, 1, x
	case h < 240:
		rf, gf, bf = 0, x, 1
	case h < 300:
		rf, gf, bf = x, 0, 1
	default:
		rf, gf, bf = 1, 0, x
	}
	return uint8(math.Round(rf * 255)), uint8(math.Round(gf * 255)), uint8(math.Round(bf * 255))
}
