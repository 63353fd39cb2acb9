package game

import "math"

// wrapEdge teleports a coordinate that left [0, limit] to the opposite edge.
// A value exactly on the boundary stays where it is.
func wrapEdge(v, limit float64) float64 {
	if v < 0 {
		return limit
	}
	if v > limit {
		return 0
	}
	return v
}

// wrapMargin is wrapEdge for bodies with extent: the body only reappears once
// it is fully outside, and it reappears fully outside the opposite edge.
func wrapMargin(v, limit, margin float64) float64 {
	if v < -margin {
		return limit + margin
	}
	if v > limit+margin {
		return -margin
	}
	return v
}

// heading returns the unit vector a ship at rotation r points to.
// Screen space: y grows downward, rotation 0 faces up.
func heading(r float64) (x, y float64) {
	return math.Sin(r), -math.Cos(r)
}

func distance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}
