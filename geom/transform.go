package geom

import "math"

// Transform is a 2D affine transform in row-major 2x3 form:
//
//	| a  b  c |
//	| d  e  f |
//
// mapping x' = a*x + b*y + c and y' = d*x + e*y + f.
type Transform struct {
	A, B, C float32
	D, E, F float32
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1, E: 1}
}

// Translation returns a transform that moves by (x, y).
func Translation(x, y float32) Transform {
	return Transform{A: 1, C: x, E: 1, F: y}
}

// Scaling returns a transform that scales by (sx, sy).
func Scaling(sx, sy float32) Transform {
	return Transform{A: sx, E: sy}
}

// Rotation returns a transform rotating by angle radians.
func Rotation(angle float64) Transform {
	s, c := math.Sincos(angle)
	return Transform{A: float32(c), B: float32(-s), D: float32(s), E: float32(c)}
}

// Then returns the transform applying t first and then u. For a point p,
// t.Then(u).Apply(p) == u.Apply(t.Apply(p)).
func (t Transform) Then(u Transform) Transform {
	return u.Mul(t)
}

// Mul returns t*u: u is applied first, then t.
func (t Transform) Mul(u Transform) Transform {
	return Transform{
		A: t.A*u.A + t.B*u.D,
		B: t.A*u.B + t.B*u.E,
		C: t.A*u.C + t.B*u.F + t.C,
		D: t.D*u.A + t.E*u.D,
		E: t.D*u.B + t.E*u.E,
		F: t.D*u.C + t.E*u.F + t.F,
	}
}

// Apply transforms a point.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// ApplyRect returns the axis-aligned bounds of r after transformation.
func (t Transform) ApplyRect(r Rect) Rect {
	if r.IsEmpty() {
		return Rect{}
	}
	if t.IsAxisAligned() {
		p0 := t.Apply(r.Min)
		p1 := t.Apply(r.Max)
		return Rect{
			Min: Point{min(p0.X, p1.X), min(p0.Y, p1.Y)},
			Max: Point{max(p0.X, p1.X), max(p0.Y, p1.Y)},
		}
	}
	corners := [4]Point{
		t.Apply(r.Min),
		t.Apply(Point{r.Max.X, r.Min.Y}),
		t.Apply(Point{r.Min.X, r.Max.Y}),
		t.Apply(r.Max),
	}
	out := Rect{Min: corners[0], Max: corners[0]}
	for _, c := range corners[1:] {
		out.Min.X = min(out.Min.X, c.X)
		out.Min.Y = min(out.Min.Y, c.Y)
		out.Max.X = max(out.Max.X, c.X)
		out.Max.Y = max(out.Max.Y, c.Y)
	}
	return out
}

// Invert returns the inverse transform and false when t is singular.
func (t Transform) Invert() (Transform, bool) {
	det := t.A*t.E - t.B*t.D
	if det == 0 || !isFinite(det) {
		return Identity(), false
	}
	inv := 1 / det
	return Transform{
		A: t.E * inv,
		B: -t.B * inv,
		C: (t.B*t.F - t.C*t.E) * inv,
		D: -t.D * inv,
		E: t.A * inv,
		F: (t.C*t.D - t.A*t.F) * inv,
	}, true
}

// IsIdentity reports whether t is exactly the identity.
func (t Transform) IsIdentity() bool { return t == Identity() }

// IsAxisAligned reports whether t maps axis-aligned rects to axis-aligned
// rects without rotation or skew.
func (t Transform) IsAxisAligned() bool { return t.B == 0 && t.D == 0 }

// Offset returns the translation part.
func (t Transform) Offset() Point { return Point{t.C, t.F} }
