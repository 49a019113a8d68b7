package game

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X, Y float64
	W, H float64
}

// Overlaps reports whether a and b share any area. Rectangles that only
// touch along an edge do not overlap.
func Overlaps(a, b Rect) bool {
	return !(a.X+a.W <= b.X || // a is left of b
		a.X >= b.X+b.W || // a is right of b
		a.Y+a.H <= b.Y || // a is above b
		a.Y >= b.Y+b.H) // a is below b
}
