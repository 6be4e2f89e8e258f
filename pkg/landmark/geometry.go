package landmark

import "math"

// Point is a position in canvas pixels.
type Point struct {
	X, Y float64
}

// ToPixel projects a normalized landmark onto a w×h canvas.
func (l Landmark) ToPixel(w, h int) Point {
	return Point{X: l.X * float64(w), Y: l.Y * float64(h)}
}

// Distance returns the euclidean distance between two pixel points.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// MidLandmark returns the componentwise midpoint of two landmarks.
func MidLandmark(a, b Landmark) Landmark {
	return Landmark{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}
