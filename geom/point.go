package geom

import "math"

// Point is a position or offset in layout pixels.
type Point struct {
	X, Y float32
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float32) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mul scales p by s.
func (p Point) Mul(s float32) Point { return Point{p.X * s, p.Y * s} }

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func (p Point) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Size is a width/height pair in layout pixels.
type Size struct {
	W, H float32
}

// Sz is shorthand for Size{w, h}.
func Sz(w, h float32) Size { return Size{W: w, H: h} }

// IsEmpty reports whether either dimension is not positive.
func (s Size) IsEmpty() bool { return !(s.W > 0 && s.H > 0) }

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float32) float32 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
