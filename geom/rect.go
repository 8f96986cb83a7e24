package geom

import (
	"image"
	"math"
)

// Rect is an axis-aligned rectangle with Min inclusive and Max exclusive.
// A rect whose Max does not exceed Min on either axis is empty.
type Rect struct {
	Min, Max Point
}

// R builds a rect from an origin and a size.
func R(x, y, w, h float32) Rect {
	return Rect{Min: Point{x, y}, Max: Point{x + w, y + h}}
}

// FromImageRect converts a device rectangle.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{
		Min: Point{float32(r.Min.X), float32(r.Min.Y)},
		Max: Point{float32(r.Max.X), float32(r.Max.Y)},
	}
}

// Infinite returns a rect covering every representable point used for
// unclipped nodes.
func Infinite() Rect {
	const big = 1 << 22
	return Rect{Min: Point{-big, -big}, Max: Point{big, big}}
}

func (r Rect) Width() float32  { return r.Max.X - r.Min.X }
func (r Rect) Height() float32 { return r.Max.Y - r.Min.Y }
func (r Rect) Size() Size      { return Size{r.Width(), r.Height()} }

// IsEmpty reports whether r has no area. NaN edges count as empty.
func (r Rect) IsEmpty() bool {
	return !(r.Max.X > r.Min.X && r.Max.Y > r.Min.Y)
}

// Area returns the rect area, zero when empty.
func (r Rect) Area() float32 {
	if r.IsEmpty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Intersect returns the overlap of r and s, or the zero Rect when they
// do not overlap.
func (r Rect) Intersect(s Rect) Rect {
	out := Rect{
		Min: Point{max(r.Min.X, s.Min.X), max(r.Min.Y, s.Min.Y)},
		Max: Point{min(r.Max.X, s.Max.X), min(r.Max.Y, s.Max.Y)},
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Intersects reports whether r and s share any area.
func (r Rect) Intersects(s Rect) bool {
	return r.Min.X < s.Max.X && s.Min.X < r.Max.X &&
		r.Min.Y < s.Max.Y && s.Min.Y < r.Max.Y
}

// Union returns the smallest rect containing both. Empty operands are
// ignored.
func (r Rect) Union(s Rect) Rect {
	if r.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return r
	}
	return Rect{
		Min: Point{min(r.Min.X, s.Min.X), min(r.Min.Y, s.Min.Y)},
		Max: Point{max(r.Max.X, s.Max.X), max(r.Max.Y, s.Max.Y)},
	}
}

// Contains reports whether s lies entirely inside r.
func (r Rect) Contains(s Rect) bool {
	return s.Min.X >= r.Min.X && s.Min.Y >= r.Min.Y &&
		s.Max.X <= r.Max.X && s.Max.Y <= r.Max.Y
}

// ContainsPoint reports whether p lies inside r.
func (r Rect) ContainsPoint(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Translate moves r by d.
func (r Rect) Translate(d Point) Rect {
	return Rect{Min: r.Min.Add(d), Max: r.Max.Add(d)}
}

// Inflate grows r by dx horizontally and dy vertically on each side.
func (r Rect) Inflate(dx, dy float32) Rect {
	return Rect{
		Min: Point{r.Min.X - dx, r.Min.Y - dy},
		Max: Point{r.Max.X + dx, r.Max.Y + dy},
	}
}

// RoundOut returns the smallest device rectangle covering r.
func (r Rect) RoundOut() image.Rectangle {
	if r.IsEmpty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(float64(r.Min.X))),
		int(math.Floor(float64(r.Min.Y))),
		int(math.Ceil(float64(r.Max.X))),
		int(math.Ceil(float64(r.Max.Y))),
	)
}

// SideOffsets holds per-edge widths, used for borders.
type SideOffsets struct {
	Top, Right, Bottom, Left float32
}

// Uniform returns equal offsets on every side.
func Uniform(w float32) SideOffsets { return SideOffsets{w, w, w, w} }

// BorderRadius holds the corner radii of a rounded rectangle.
type BorderRadius struct {
	TopLeft, TopRight, BottomLeft, BottomRight Size
}

// UniformRadius returns equal circular radii on each corner.
func UniformRadius(r float32) BorderRadius {
	s := Size{r, r}
	return BorderRadius{s, s, s, s}
}

// IsZero reports whether every corner is square.
func (b BorderRadius) IsZero() bool {
	return b.TopLeft.IsEmpty() && b.TopRight.IsEmpty() &&
		b.BottomLeft.IsEmpty() && b.BottomRight.IsEmpty()
}

// InnerRect returns the part of r unaffected by the corner radii. A point
// inside it is inside the rounded rect regardless of the corners.
func (b BorderRadius) InnerRect(r Rect) Rect {
	left := max(b.TopLeft.W, b.BottomLeft.W)
	right := max(b.TopRight.W, b.BottomRight.W)
	top := max(b.TopLeft.H, b.TopRight.H)
	bottom := max(b.BottomLeft.H, b.BottomRight.H)
	inner := Rect{
		Min: Point{r.Min.X + left, r.Min.Y + top},
		Max: Point{r.Max.X - right, r.Max.Y - bottom},
	}
	if inner.IsEmpty() {
		return Rect{}
	}
	return inner
}
