// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package atlas

import (
	"image"
	"testing"
)

func TestAllocateNoOverlap(t *testing.T) {
	a := New(256, 256, 1)
	var got []image.Rectangle
	sizes := []image.Point{{30, 20}, {50, 10}, {100, 40}, {10, 10}, {64, 64}, {200, 5}, {7, 90}}
	for _, s := range sizes {
		r, ok := a.Allocate(s.X, s.Y)
		if !ok {
			t.Fatalf("Allocate(%d, %d) failed", s.X, s.Y)
		}
		if r.Dx() != s.X || r.Dy() != s.Y {
			t.Errorf("Allocate(%d, %d) = %v, wrong size", s.X, s.Y, r)
		}
		if !r.In(image.Rect(0, 0, 256, 256)) {
			t.Errorf("Allocate(%d, %d) = %v, outside area", s.X, s.Y, r)
		}
		for _, prev := range got {
			if r.Overlaps(prev) {
				t.Errorf("%v overlaps %v", r, prev)
			}
		}
		got = append(got, r)
	}
	if a.Len() != len(sizes) {
		t.Errorf("Len() = %d, want %d", a.Len(), len(sizes))
	}
}

func TestAllocateFull(t *testing.T) {
	a := New(64, 64, 0)
	for i := range 16 {
		if _, ok := a.Allocate(16, 16); !ok {
			t.Fatalf("Allocate #%d failed before the area was full", i)
		}
	}
	if _, ok := a.Allocate(16, 16); ok {
		t.Error("Allocate() succeeded on a full allocator")
	}
	if _, ok := a.Allocate(65, 1); ok {
		t.Error("Allocate() succeeded for a rect wider than the area")
	}
	if _, ok := a.Allocate(0, 4); ok {
		t.Error("Allocate() succeeded for a zero-width rect")
	}
}

func TestFreeReuse(t *testing.T) {
	a := New(64, 64, 0)
	var rects []image.Rectangle
	for range 16 {
		r, _ := a.Allocate(16, 16)
		rects = append(rects, r)
	}
	a.Free(rects[5])
	r, ok := a.Allocate(16, 16)
	if !ok {
		t.Fatal("Allocate() after Free() failed")
	}
	if r != rects[5] {
		t.Errorf("Allocate() = %v, want freed slot %v", r, rects[5])
	}
}

func TestFreeSplitsLargerSlot(t *testing.T) {
	a := New(32, 32, 0)
	big, _ := a.Allocate(32, 16)
	keep, _ := a.Allocate(32, 16)
	a.Free(big)

	r1, ok1 := a.Allocate(16, 16)
	r2, ok2 := a.Allocate(16, 16)
	if !ok1 || !ok2 {
		t.Fatal("allocations inside a freed slot failed")
	}
	if r1.Overlaps(r2) || r1.Overlaps(keep) || r2.Overlaps(keep) {
		t.Errorf("overlap among %v %v %v", r1, r2, keep)
	}
}

func TestFreeAllResets(t *testing.T) {
	a := New(32, 32, 0)
	r1, _ := a.Allocate(32, 32)
	a.Free(r1)
	if a.Len() != 0 || a.Utilization() != 0 {
		t.Errorf("Len() = %d, Utilization() = %v after freeing everything", a.Len(), a.Utilization())
	}
	if _, ok := a.Allocate(32, 32); !ok {
		t.Error("Allocate() failed after full reset")
	}
}

func TestGrow(t *testing.T) {
	a := New(32, 32, 0)
	first, _ := a.Allocate(32, 32)
	if _, ok := a.Allocate(32, 32); ok {
		t.Fatal("Allocate() succeeded before Grow")
	}
	a.Grow(64, 64)
	r, ok := a.Allocate(32, 32)
	if !ok {
		t.Fatal("Allocate() failed after Grow")
	}
	if r.Overlaps(first) {
		t.Errorf("%v overlaps pre-grow rect %v", r, first)
	}
	if a.Size() != image.Pt(64, 64) {
		t.Errorf("Size() = %v, want (64,64)", a.Size())
	}
}

func TestFreedShelfTakesWiderRect(t *testing.T) {
	a := New(128, 128, 0)
	var rects []image.Rectangle
	for range 4 {
		r, ok := a.Allocate(64, 64)
		if !ok {
			t.Fatal("Allocate(64, 64) failed")
		}
		rects = append(rects, r)
	}
	a.Free(rects[0])
	if _, ok := a.Allocate(128, 64); ok {
		t.Fatal("Allocate(128, 64) succeeded with half a shelf free")
	}
	a.Free(rects[1])
	r, ok := a.Allocate(128, 64)
	if !ok {
		t.Fatal("Allocate(128, 64) failed on an emptied shelf")
	}
	for _, live := range rects[2:] {
		if r.Overlaps(live) {
			t.Errorf("%v overlaps live rect %v", r, live)
		}
	}
}

func TestFreeMergesNeighbours(t *testing.T) {
	a := New(96, 64, 0)
	var row []image.Rectangle
	for range 3 {
		r, _ := a.Allocate(32, 32)
		row = append(row, r)
	}
	keep, _ := a.Allocate(32, 32)
	a.Free(row[0])
	a.Free(row[1])
	r, ok := a.Allocate(64, 32)
	if !ok {
		t.Fatal("Allocate(64, 32) failed over two merged slots")
	}
	if r.Overlaps(row[2]) || r.Overlaps(keep) {
		t.Errorf("%v overlaps a live rect", r)
	}
}

func TestFreeLastOnShelfRewindsCursor(t *testing.T) {
	a := New(64, 64, 0)
	r1, _ := a.Allocate(32, 16)
	r2, _ := a.Allocate(32, 16)
	a.Free(r2)
	r3, ok := a.Allocate(32, 16)
	if !ok || r3 != r2 {
		t.Errorf("Allocate() = %v, %v; want %v", r3, ok, r2)
	}
	if r3.Overlaps(r1) {
		t.Errorf("%v overlaps %v", r3, r1)
	}
}
