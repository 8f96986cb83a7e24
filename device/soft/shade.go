// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"image"
	"math"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
)

// drawState is the pipeline state of one Draw call.
type drawState struct {
	dst        *texture
	cache      *texture
	tasks      *texture
	transforms *texture
	color0     *texture
	color1     *texture
	mask       *texture
	blend      device.BlendMode
}

type taskInfo struct {
	rect   geom.Rect
	origin geom.Point
	params [2]float32
}

// toTarget maps world coordinates into the task's target.
func (t taskInfo) toTarget(p geom.Point) geom.Point {
	return p.Sub(t.origin).Add(t.rect.Min)
}

func (s *drawState) task(id int32) taskInfo {
	a := s.tasks.texel(int(id) * device.TaskTexels)
	b := s.tasks.texel(int(id)*device.TaskTexels + 1)
	return taskInfo{
		rect:   geom.Rect{Min: geom.Pt(a[0], a[1]), Max: geom.Pt(a[2], a[3])},
		origin: geom.Pt(b[0], b[1]),
		params: [2]float32{b[2], b[3]},
	}
}

func (s *drawState) layer(id int32) geom.Transform {
	a := s.transforms.texel(int(id) * device.TransformTexels)
	b := s.transforms.texel(int(id)*device.TransformTexels + 1)
	return geom.Transform{A: a[0], B: a[1], C: a[2], D: b[0], E: b[1], F: b[2]}
}

func (s *drawState) block(addr int32, n int) [4]float32 {
	return s.cache.texel(int(addr) + n)
}

func (s *drawState) rect(addr int32, n int) geom.Rect {
	b := s.block(addr, n)
	return geom.Rect{Min: geom.Pt(b[0], b[1]), Max: geom.Pt(b[2], b[3])}
}

// pixels calls fn for every pixel of area, in target space, that lies in
// the task rect and the destination.
func (s *drawState) pixels(t taskInfo, area geom.Rect, fn func(x, y int, world geom.Point)) {
	r := area.Translate(t.rect.Min.Sub(t.origin)).RoundOut().
		Intersect(t.rect.RoundOut()).
		Intersect(s.dst.bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p := geom.Pt(float32(x)+0.5, float32(y)+0.5)
			fn(x, y, p.Sub(t.rect.Min).Add(t.origin))
		}
	}
}

func (s *drawState) write(x, y int, frag color) {
	s.dst.store(x, y, blend(s.blend, frag, s.dst.fetch(x, y)))
}

func (s *drawState) coverage(clipTask int32, world geom.Point) float32 {
	if clipTask < 0 {
		return 1
	}
	mt := s.task(clipTask)
	p := mt.toTarget(world)
	return s.mask.fetch(floor(p.X), floor(p.Y))[3]
}

// fragment shades one local-space point. ok is false outside the shape.
type fragment func(local geom.Point) (c color, ok bool)

// primitive rasterises region, in the local space of inst.Layer.
func (s *drawState) primitive(inst device.Instance, region geom.Rect, frag fragment) {
	if region.IsEmpty() {
		return
	}
	t := s.task(inst.Task)
	xf := s.layer(inst.Layer)
	inv, ok := xf.Invert()
	if !ok {
		return
	}
	s.pixels(t, xf.ApplyRect(region), func(x, y int, world geom.Point) {
		l := inv.Apply(world)
		if !inside(region, l) {
			return
		}
		c, ok := frag(l)
		if !ok {
			return
		}
		if inst.ClipTask >= 0 {
			c = c.scale(s.coverage(inst.ClipTask, world))
		}
		s.write(x, y, c)
	})
}

func (s *drawState) shade(kind device.ShaderKind, inst device.Instance) {
	switch kind {
	case device.ShaderClipRect, device.ShaderClipImage:
		s.clip(kind, inst)
		return
	case device.ShaderBlur:
		s.blur(inst)
		return
	case device.ShaderShadowProfile:
		s.shadowProfile(inst)
		return
	}

	local := s.rect(inst.Address, 0)
	region := local.Intersect(s.rect(inst.Address, 1))
	var frag fragment
	switch kind {
	case device.ShaderRectangle:
		c := color(s.block(inst.Address, 2))
		frag = func(geom.Point) (color, bool) { return c, true }
	case device.ShaderImage:
		frag = s.image(inst, local)
	case device.ShaderText:
		glyph := s.rect(inst.User0, 0)
		region = region.Intersect(glyph)
		frag = s.glyph(inst, glyph)
	case device.ShaderBorder:
		frag = s.border(inst, local)
	case device.ShaderGradient:
		frag = s.gradient(inst)
	case device.ShaderBoxShadow:
		frag = s.boxShadow(inst, local)
	case device.ShaderComposite:
		frag = s.composite(inst)
	default:
		return
	}
	s.primitive(inst, region, frag)
}

func (s *drawState) image(inst device.Instance, local geom.Rect) fragment {
	tile := s.block(inst.Address, 2)
	uv := s.rect(inst.User0, 0)
	stretch := geom.Sz(tile[0], tile[1])
	period := geom.Sz(tile[0]+tile[2], tile[1]+tile[3])
	return func(l geom.Point) (color, bool) {
		mx := wrap(l.X-local.Min.X, period.W)
		my := wrap(l.Y-local.Min.Y, period.H)
		if mx >= stretch.W || my >= stretch.H {
			return color{}, false
		}
		return sampleUV(s.color0, uv, mx/stretch.W, my/stretch.H), true
	}
}

func (s *drawState) glyph(inst device.Instance, glyph geom.Rect) fragment {
	c := color(s.block(inst.Address, 2))
	uv := s.rect(inst.User0, 1)
	return func(l geom.Point) (color, bool) {
		u := (l.X - glyph.Min.X) / glyph.Width()
		v := (l.Y - glyph.Min.Y) / glyph.Height()
		return c.scale(sampleUV(s.color0, uv, u, v)[3]), true
	}
}

func (s *drawState) border(inst device.Instance, local geom.Rect) fragment {
	w := s.block(inst.Address, 2)
	var sides [4]color
	for i := range sides {
		sides[i] = color(s.block(inst.Address, 3+i))
	}
	r0, r1 := s.block(inst.Address, 7), s.block(inst.Address, 8)
	outer := radii{r0[0], r0[1], r0[2], r0[3], r1[0], r1[1], r1[2], r1[3]}
	top, right, bottom, left := w[0], w[1], w[2], w[3]
	inner := geom.Rect{
		Min: geom.Pt(local.Min.X+left, local.Min.Y+top),
		Max: geom.Pt(local.Max.X-right, local.Max.Y-bottom),
	}
	innerRadii := radii{
		outer[0] - left, outer[1] - top,
		outer[2] - right, outer[3] - top,
		outer[4] - left, outer[5] - bottom,
		outer[6] - right, outer[7] - bottom,
	}
	return func(l geom.Point) (color, bool) {
		if !roundedContains(local, outer, l) {
			return color{}, false
		}
		if !inner.IsEmpty() && roundedContains(inner, innerRadii, l) {
			return color{}, false
		}
		d := [4]float32{
			edgeDistance(l.Y-local.Min.Y, top),
			edgeDistance(local.Max.X-l.X, right),
			edgeDistance(local.Max.Y-l.Y, bottom),
			edgeDistance(l.X-local.Min.X, left),
		}
		side := 0
		for i := 1; i < 4; i++ {
			if d[i] < d[side] {
				side = i
			}
		}
		return sides[side], true
	}
}

func edgeDistance(d, width float32) float32 {
	if width <= 0 {
		return float32(math.Inf(1))
	}
	return d / width
}

func (s *drawState) gradient(inst device.Instance) fragment {
	line := s.block(inst.Address, 2)
	info := s.block(inst.Address, 3)
	repeat := info[0] != 0
	n := int(info[1])
	colors := make([]color, n)
	offsets := make([]float32, n)
	for i := range n {
		colors[i] = color(s.block(inst.Address, 4+2*i))
		offsets[i] = s.block(inst.Address, 5+2*i)[0]
	}
	start := geom.Pt(line[0], line[1])
	dir := geom.Pt(line[2]-line[0], line[3]-line[1])
	length2 := dir.X*dir.X + dir.Y*dir.Y
	return func(l geom.Point) (color, bool) {
		if n == 0 {
			return color{}, false
		}
		var t float32
		if length2 > 0 {
			d := l.Sub(start)
			t = (d.X*dir.X + d.Y*dir.Y) / length2
		}
		if repeat {
			t = wrap(t, 1)
		}
		return stopColor(colors, offsets, t), true
	}
}

func stopColor(colors []color, offsets []float32, t float32) color {
	if t <= offsets[0] {
		return colors[0]
	}
	for i := 1; i < len(offsets); i++ {
		if t <= offsets[i] {
			span := offsets[i] - offsets[i-1]
			if span <= 0 {
				return colors[i]
			}
			return lerp(colors[i-1], colors[i], (t-offsets[i-1])/span)
		}
	}
	return colors[len(colors)-1]
}

func (s *drawState) boxShadow(inst device.Instance, local geom.Rect) fragment {
	c := color(s.block(inst.Address, 2))
	shadow := s.rect(inst.Address, 3)
	p := s.block(inst.Address, 4)
	box := s.rect(inst.Address, 5)
	spread, radius := p[1], p[3]
	inset := p[2] == float32(display.ShadowInset)
	shadowRadius := max(0, radius+spread)
	if inset {
		shadowRadius = max(0, radius-spread)
	}
	blurred := inst.User0 >= 0
	var hTask, vTask taskInfo
	if blurred {
		hTask, vTask = s.task(inst.User0), s.task(inst.User1)
	}
	return func(l geom.Point) (color, bool) {
		if inset {
			if !inside(box, l) {
				return color{}, false
			}
		} else if roundedContains(box, uniformRadii(radius), l) {
			return color{}, false
		}
		var cov float32
		if blurred {
			h := profileAt(s.color0, hTask, l.X-local.Min.X, device.DirectionHorizontal)
			v := profileAt(s.color1, vTask, l.Y-local.Min.Y, device.DirectionVertical)
			cov = h * v
		} else if roundedContains(shadow, uniformRadii(shadowRadius), l) {
			cov = 1
		}
		if inset {
			cov = 1 - cov
		}
		return c.scale(cov), true
	}
}

// profileAt reads a shadow profile task at a local offset from the
// primitive's edge.
func profileAt(tex *texture, t taskInfo, offset float32, dir int32) float32 {
	scale := t.params[0]
	i := floor(offset * scale)
	r := t.rect.RoundOut()
	if dir == device.DirectionHorizontal {
		i = clampInt(i, 0, r.Dx()-1)
		return tex.fetch(r.Min.X+i, r.Min.Y)[3]
	}
	i = clampInt(i, 0, r.Dy()-1)
	return tex.fetch(r.Min.X, r.Min.Y+i)[3]
}

func (s *drawState) composite(inst device.Instance) fragment {
	opacity := s.block(inst.Address, 2)[0]
	src := s.task(inst.User0)
	return func(l geom.Point) (color, bool) {
		p := src.toTarget(l)
		if !inside(src.rect, p) {
			return color{}, false
		}
		return s.color0.fetch(floor(p.X), floor(p.Y)).scale(opacity), true
	}
}

// clip multiplies one clip's coverage into every pixel of a mask task.
func (s *drawState) clip(kind device.ShaderKind, inst device.Instance) {
	t := s.task(inst.Task)
	inv, ok := s.layer(inst.Layer).Invert()
	if !ok {
		return
	}
	r := s.rect(inst.Address, 0)
	var cov func(l geom.Point) float32
	if kind == device.ShaderClipRect {
		r0, r1 := s.block(inst.Address, 1), s.block(inst.Address, 2)
		rr := radii{r0[0], r0[1], r0[2], r0[3], r1[0], r1[1], r1[2], r1[3]}
		cov = func(l geom.Point) float32 {
			if roundedContains(r, rr, l) {
				return 1
			}
			return 0
		}
	} else {
		uv := s.rect(inst.Address, 1)
		repeat := s.block(inst.Address, 2)[0] != 0
		cov = func(l geom.Point) float32 {
			u, v := l.X-r.Min.X, l.Y-r.Min.Y
			if repeat {
				u, v = wrap(u, r.Width()), wrap(v, r.Height())
			} else if !inside(r, l) {
				return 0
			}
			return sampleUV(s.color0, uv, u/r.Width(), v/r.Height())[3]
		}
	}
	s.pixels(t, geom.Rect{Min: t.origin, Max: t.origin.Add(t.rect.Max.Sub(t.rect.Min))}, func(x, y int, world geom.Point) {
		a := cov(inv.Apply(world))
		s.write(x, y, color{a, a, a, a})
	})
}

// blur runs one direction of a Gaussian blur from the source task into
// the blur task. Both tasks cover the same world area.
func (s *drawState) blur(inst device.Instance) {
	t := s.task(inst.Task)
	src := s.task(inst.User0)
	weights := gaussian(t.params[0])
	radius := len(weights) - 1
	dx, dy := 1, 0
	if inst.User1 == device.DirectionVertical {
		dx, dy = 0, 1
	}
	srcRect := src.rect.RoundOut()
	area := geom.Rect{Min: t.origin, Max: t.origin.Add(t.rect.Max.Sub(t.rect.Min))}
	s.pixels(t, area, func(x, y int, world geom.Point) {
		p := src.toTarget(world)
		sx, sy := floor(p.X), floor(p.Y)
		var sum color
		for k := -radius; k <= radius; k++ {
			q := image.Pt(sx+k*dx, sy+k*dy)
			if !q.In(srcRect) {
				continue
			}
			w := weights[abs(k)]
			c := s.color0.fetch(q.X, q.Y)
			for i := range sum {
				sum[i] += c[i] * w
			}
		}
		s.write(x, y, sum)
	})
}

// gaussian returns the normalised one-sided kernel for sigma, reaching
// out to 3 sigma.
func gaussian(sigma float32) []float32 {
	if sigma <= 0 {
		return []float32{1}
	}
	n := int(math.Ceil(float64(3 * sigma)))
	w := make([]float32, n+1)
	var total float32
	for i := range w {
		v := float32(math.Exp(-float64(i*i) / (2 * float64(sigma*sigma))))
		w[i] = v
		total += v
		if i > 0 {
			total += v
		}
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// shadowProfile writes the blurred coverage of the shadow rect along one
// axis. Pixel i of the task samples local offset (i+0.5)/scale from the
// primitive's edge.
func (s *drawState) shadowProfile(inst device.Instance) {
	t := s.task(inst.Task)
	scale := t.params[0]
	local := s.rect(inst.Address, 0)
	shadow := s.rect(inst.Address, 3)
	sigma := s.block(inst.Address, 4)[0] / 2
	lo, hi, base := shadow.Min.X, shadow.Max.X, local.Min.X
	if inst.User1 == device.DirectionVertical {
		lo, hi, base = shadow.Min.Y, shadow.Max.Y, local.Min.Y
	}
	r := t.rect.RoundOut().Intersect(s.dst.bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := x - r.Min.X
			if inst.User1 == device.DirectionVertical {
				i = y - r.Min.Y
			}
			pos := base + (float32(i)+0.5)/scale
			a := intervalCoverage(pos, lo, hi, sigma)
			s.write(x, y, color{a, a, a, a})
		}
	}
}

// intervalCoverage integrates a Gaussian of sigma centred at x over
// [lo, hi].
func intervalCoverage(x, lo, hi, sigma float32) float32 {
	if sigma <= 0 {
		if x >= lo && x < hi {
			return 1
		}
		return 0
	}
	k := float64(sigma) * math.Sqrt2
	return float32(0.5 * (math.Erf(float64(hi-x)/k) - math.Erf(float64(lo-x)/k)))
}

// radii are the corner radii (tlW, tlH, trW, trH, blW, blH, brW, brH).
type radii [8]float32

func uniformRadii(r float32) radii { return radii{r, r, r, r, r, r, r, r} }

func inside(r geom.Rect, p geom.Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

func roundedContains(r geom.Rect, rr radii, p geom.Point) bool {
	if !inside(r, p) {
		return false
	}
	corner := func(cx, cy, rx, ry float32) bool {
		if rx <= 0 || ry <= 0 {
			return true
		}
		dx, dy := (p.X-cx)/rx, (p.Y-cy)/ry
		return dx*dx+dy*dy <= 1
	}
	switch {
	case p.X < r.Min.X+rr[0] && p.Y < r.Min.Y+rr[1]:
		return corner(r.Min.X+rr[0], r.Min.Y+rr[1], rr[0], rr[1])
	case p.X > r.Max.X-rr[2] && p.Y < r.Min.Y+rr[3]:
		return corner(r.Max.X-rr[2], r.Min.Y+rr[3], rr[2], rr[3])
	case p.X < r.Min.X+rr[4] && p.Y > r.Max.Y-rr[5]:
		return corner(r.Min.X+rr[4], r.Max.Y-rr[5], rr[4], rr[5])
	case p.X > r.Max.X-rr[6] && p.Y > r.Max.Y-rr[7]:
		return corner(r.Max.X-rr[6], r.Max.Y-rr[7], rr[6], rr[7])
	}
	return true
}

// sampleUV reads the nearest texel at normalised (u, v) of the texel
// rect uv.
func sampleUV(tex *texture, uv geom.Rect, u, v float32) color {
	x := floor(uv.Min.X + u*uv.Width())
	y := floor(uv.Min.Y + v*uv.Height())
	x = clampInt(x, int(uv.Min.X), int(uv.Max.X)-1)
	y = clampInt(y, int(uv.Min.Y), int(uv.Max.Y)-1)
	return tex.fetch(x, y)
}

func wrap(v, period float32) float32 {
	if period <= 0 {
		return v
	}
	return v - period*float32(math.Floor(float64(v/period)))
}

func floor(v float32) int { return int(math.Floor(float64(v))) }

func clampInt(v, lo, hi int) int { return max(lo, min(v, hi)) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
