package game

// Obstacle is an asteroid drifting at a fixed velocity. Rotation is cosmetic;
// collisions only look at position and Radius.
type Obstacle struct {
	ID uint64

	X, Y   float64
	VX, VY float64
	Radius float64

	Rotation float64
	Spin     float64
}

// advance drifts the obstacle one tick, wrapping once it is fully off-screen.
func (o *Obstacle) advance(width, height float64) {
	o.X = wrapMargin(o.X+o.VX, width, o.Radius)
	o.Y = wrapMargin(o.Y+o.VY, height, o.Radius)
	o.Rotation += o.Spin
}

// overlaps reports whether a circle of radius pad at (x, y) touches the obstacle.
// Touching edges do not count.
func (o *Obstacle) overlaps(x, y, pad float64) bool {
	return distance(x, y, o.X, o.Y) < o.Radius+pad
}

func (o *Obstacle) toState() ObstacleState {
	return ObstacleState{
		ID:            o.ID,
		X:             o.X,
		Y:             o.Y,
		Velocity:      Vector{X: o.VX, Y: o.VY},
		Size:          o.Radius,
		Rotation:      o.Rotation,
		RotationSpeed: o.Spin,
	}
}
