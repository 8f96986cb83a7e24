// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package atlas implements the rectangle packer shared by the texture
// cache and the per-pass render target allocator.
//
// Packing is shelf based: the area is divided into horizontal shelves and
// each rectangle goes on the first shelf with room for it. Freed rectangles
// are kept on a free list, merged with free neighbours on the same shelf,
// and reused before new shelf space. A shelf whose allocations have all
// been freed is emptied and can take rectangles of any width again.
package atlas

import "image"

// shelf is one horizontal strip of the packing area.
type shelf struct {
	y      int // top edge
	height int // tallest padded item placed so far
	nextX  int // next free x position
	count  int // live allocations on the shelf
}

// Allocator packs rectangles into a width x height area.
//
// Allocator is not safe for concurrent use; the texture cache and the
// render task graph each own their allocators.
type Allocator struct {
	width   int
	height  int
	padding int

	shelves []shelf
	free    []image.Rectangle // padded footprints available for reuse

	allocCount int
	usedArea   int
}

// New creates an allocator for a width x height area. padding pixels are
// left to the right of and below every rectangle so that filtering never
// samples a neighbour.
func New(width, height, padding int) *Allocator {
	if padding < 0 {
		padding = 0
	}
	return &Allocator{
		width:   max(width, 1),
		height:  max(height, 1),
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// Size returns the current packing area.
func (a *Allocator) Size() image.Point {
	return image.Pt(a.width, a.height)
}

// Allocate reserves a width x height rectangle. ok is false when no space
// is left; the caller may Grow the allocator and try again.
func (a *Allocator) Allocate(width, height int) (r image.Rectangle, ok bool) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, false
	}
	pw, ph := width+a.padding, height+a.padding
	if pw > a.width || ph > a.height {
		return image.Rectangle{}, false
	}

	if r, ok := a.allocateFromFree(pw, ph); ok {
		return a.commit(a.shelfAt(r.Min.Y), r.Min, width, height), true
	}

	for i := range a.shelves {
		if a.fitsOnShelf(i, pw, ph) {
			s := &a.shelves[i]
			origin := image.Pt(s.nextX, s.y)
			s.nextX += pw
			s.height = max(s.height, ph)
			return a.commit(i, origin, width, height), true
		}
	}

	return a.allocateNewShelf(width, height, pw, ph)
}

// fitsOnShelf reports whether a padded pw x ph rectangle fits on shelf i.
// Only the last shelf may become taller, since growing any other shelf
// would overlap the one below it.
func (a *Allocator) fitsOnShelf(i, pw, ph int) bool {
	s := a.shelves[i]
	if s.nextX+pw > a.width {
		return false
	}
	if ph <= s.height {
		return true
	}
	last := i == len(a.shelves)-1
	return last && s.y+ph <= a.height
}

func (a *Allocator) allocateNewShelf(width, height, pw, ph int) (image.Rectangle, bool) {
	y := 0
	if n := len(a.shelves); n > 0 {
		y = a.shelves[n-1].y + a.shelves[n-1].height
	}
	if y+ph > a.height {
		return image.Rectangle{}, false
	}
	a.shelves = append(a.shelves, shelf{y: y, height: ph, nextX: pw})
	return a.commit(len(a.shelves)-1, image.Pt(0, y), width, height), true
}

// shelfAt returns the index of the shelf containing row y, or -1.
func (a *Allocator) shelfAt(y int) int {
	for i, s := range a.shelves {
		if y >= s.y && y < s.y+s.height {
			return i
		}
	}
	return -1
}

// allocateFromFree takes the smallest free footprint that can hold the
// request and returns the unused remainder to the free list.
func (a *Allocator) allocateFromFree(pw, ph int) (image.Rectangle, bool) {
	best := -1
	bestArea := 0
	for i, f := range a.free {
		if f.Dx() < pw || f.Dy() < ph {
			continue
		}
		if area := f.Dx() * f.Dy(); best < 0 || area < bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return image.Rectangle{}, false
	}

	f := a.free[best]
	a.free[best] = a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	// Guillotine split along the longer leftover axis.
	rightW, bottomH := f.Dx()-pw, f.Dy()-ph
	var right, bottom image.Rectangle
	if rightW > bottomH {
		right = image.Rect(f.Min.X+pw, f.Min.Y, f.Max.X, f.Max.Y)
		bottom = image.Rect(f.Min.X, f.Min.Y+ph, f.Min.X+pw, f.Max.Y)
	} else {
		right = image.Rect(f.Min.X+pw, f.Min.Y, f.Max.X, f.Min.Y+ph)
		bottom = image.Rect(f.Min.X, f.Min.Y+ph, f.Max.X, f.Max.Y)
	}
	for _, rem := range [2]image.Rectangle{right, bottom} {
		if !rem.Empty() {
			a.free = append(a.free, rem)
		}
	}
	return image.Rectangle{Min: f.Min, Max: f.Min.Add(image.Pt(pw, ph))}, true
}

func (a *Allocator) commit(shelf int, origin image.Point, width, height int) image.Rectangle {
	if shelf >= 0 {
		a.shelves[shelf].count++
	}
	a.allocCount++
	a.usedArea += width * height
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(width, height))}
}

// Free returns r to the allocator. The space is reused by later
// allocations; shelves are reset once nothing is allocated on them.
func (a *Allocator) Free(r image.Rectangle) {
	if r.Empty() || a.allocCount == 0 {
		return
	}
	a.allocCount--
	a.usedArea -= r.Dx() * r.Dy()
	if a.allocCount == 0 {
		a.Reset()
		return
	}

	i := a.shelfAt(r.Min.Y)
	if i >= 0 {
		a.shelves[i].count--
		if a.shelves[i].count <= 0 {
			a.emptyShelf(i)
			return
		}
	}

	fp := image.Rectangle{Min: r.Min, Max: r.Max.Add(image.Pt(a.padding, a.padding))}
	fp = a.mergeFree(fp)
	if i >= 0 {
		s := &a.shelves[i]
		// A free run ending at the shelf cursor goes back to the shelf.
		if fp.Max.X == s.nextX && fp.Min.Y == s.y && fp.Max.Y >= s.y+s.height {
			s.nextX = fp.Min.X
			return
		}
	}
	a.free = append(a.free, fp)
}

// mergeFree removes free rectangles adjacent to fp on the same rows and
// returns their union with fp.
func (a *Allocator) mergeFree(fp image.Rectangle) image.Rectangle {
	for merged := true; merged; {
		merged = false
		for j, f := range a.free {
			if f.Min.Y != fp.Min.Y || f.Max.Y != fp.Max.Y {
				continue
			}
			if f.Max.X != fp.Min.X && f.Min.X != fp.Max.X {
				continue
			}
			fp = fp.Union(f)
			a.free[j] = a.free[len(a.free)-1]
			a.free = a.free[:len(a.free)-1]
			merged = true
			break
		}
	}
	return fp
}

// emptyShelf drops the free rectangles of shelf i and rewinds it. Empty
// shelves at the bottom are removed so that a new shelf of any height can
// take their place.
func (a *Allocator) emptyShelf(i int) {
	s := &a.shelves[i]
	s.count = 0
	s.nextX = 0
	top, bottom := s.y, s.y+s.height
	kept := a.free[:0]
	for _, f := range a.free {
		if f.Min.Y >= top && f.Min.Y < bottom {
			continue
		}
		kept = append(kept, f)
	}
	a.free = kept
	for n := len(a.shelves); n > 0 && a.shelves[n-1].count == 0; n-- {
		a.shelves = a.shelves[:n-1]
	}
}

// Grow enlarges the packing area. Existing rectangles keep their position.
// Shrinking is ignored.
func (a *Allocator) Grow(width, height int) {
	a.width = max(a.width, width)
	a.height = max(a.height, height)
}

// Reset forgets every allocation.
func (a *Allocator) Reset() {
	a.shelves = a.shelves[:0]
	a.free = a.free[:0]
	a.allocCount = 0
	a.usedArea = 0
}

// Len returns the number of live allocations.
func (a *Allocator) Len() int { return a.allocCount }

// Utilization returns the fraction of the area covered by live rectangles.
func (a *Allocator) Utilization() float64 {
	return float64(a.usedArea) / float64(a.width*a.height)
}
