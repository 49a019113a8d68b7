package game

import "math"

// Input is the last direction a player asked for. Both components lie in
// [-1, 1] and the vector length never exceeds 1.
type Input struct {
	DX float64
	DY float64
}

// Normalize clamps each component to [-1, 1] and scales the vector down to
// unit length when it is longer than that, so diagonal movement is never
// faster than axis movement.
func Normalize(dx, dy float64) (float64, float64) {
	dx = clampUnit(dx)
	dy = clampUnit(dy)

	length := math.Hypot(dx, dy)
	if length > 1 {
		return dx / length, dy / length
	}

	return dx, dy
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
