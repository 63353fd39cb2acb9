package game

// Projectile is a bullet in flight. OwnerID is a weak reference: the owner may
// have left, in which case hits simply credit nobody.
type Projectile struct {
	ID      uint64
	OwnerID string

	X, Y   float64
	VX, VY float64

	TTL int // remaining lifetime in ticks
}

func newProjectile(id uint64, owner *Player, r *Rules) *Projectile {
	hx, hy := heading(owner.Rotation)
	return &Projectile{
		ID:      id,
		OwnerID: owner.ID,
		X:       owner.X,
		Y:       owner.Y,
		VX:      hx * r.BulletSpeed,
		VY:      hy * r.BulletSpeed,
		TTL:     r.BulletTTL,
	}
}

// advance moves the projectile one tick and burns one tick of lifetime.
// Returns false once the projectile has expired.
func (p *Projectile) advance(width, height float64) bool {
	p.X = wrapEdge(p.X+p.VX, width)
	p.Y = wrapEdge(p.Y+p.VY, height)
	p.TTL--
	return p.TTL > 0
}

func (p *Projectile) toState() ProjectileState {
	return ProjectileState{
		ID:       p.ID,
		X:        p.X,
		Y:        p.Y,
		Velocity: Vector{X: p.VX, Y: p.VY},
		PlayerID: p.OwnerID,
		TTL:      p.TTL,
	}
}
