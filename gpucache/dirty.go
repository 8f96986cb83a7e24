// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucache

import (
	"math/bits"
	"sync/atomic"
)

// dirtyRows is a bitmap with one bit per cache row. Marking is lock-free
// so pushes from any goroutine may record dirtiness; ranges are collected
// by the single flushing goroutine.
type dirtyRows struct {
	words []atomic.Uint64
}

func (d *dirtyRows) ensure(rows int) {
	need := (rows + 63) / 64
	if need <= len(d.words) {
		return
	}
	words := make([]atomic.Uint64, need)
	for i := range d.words {
		words[i].Store(d.words[i].Load())
	}
	d.words = words
}

func (d *dirtyRows) mark(row int) {
	d.ensure(row + 1)
	d.words[row/64].Or(1 << (row & 63))
}

func (d *dirtyRows) markAll(rows int) {
	d.ensure(rows)
	for row := range rows {
		d.words[row/64].Or(1 << (row & 63))
	}
}

func (d *dirtyRows) isDirty(row int) bool {
	if row/64 >= len(d.words) {
		return false
	}
	return d.words[row/64].Load()&(1<<(row&63)) != 0
}

func (d *dirtyRows) count() int {
	n := 0
	for i := range d.words {
		n += bits.OnesCount64(d.words[i].Load())
	}
	return n
}

// takeRanges returns the dirty rows as half-open [start, end) runs and
// clears the bitmap.
func (d *dirtyRows) takeRanges() [][2]int {
	words := make([]uint64, len(d.words))
	for i := range d.words {
		words[i] = d.words[i].Swap(0)
	}

	var out [][2]int
	start := -1
	total := len(words) * 64
	for row := 0; row < total; row++ {
		if row&63 == 0 && words[row/64] == 0 && start < 0 {
			row += 63
			continue
		}
		set := words[row/64]&(1<<(row&63)) != 0
		switch {
		case set && start < 0:
			start = row
		case !set && start >= 0:
			out = append(out, [2]int{start, row})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, total})
	}
	return out
}
