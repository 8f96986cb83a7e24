// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucache

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/wr/device"
)

// RowRun is a copy of consecutive dirty rows.
type RowRun struct {
	Start  int
	Blocks []Block // (rows in run) * MaxVertexTextureWidth blocks
}

// Rows returns the number of rows in the run.
func (r RowRun) Rows() int { return len(r.Blocks) / MaxVertexTextureWidth }

// UpdateList is everything the renderer needs to bring its copy of the
// cache texture up to date. It owns its data, so it can cross goroutines
// while the cache keeps changing.
type UpdateList struct {
	// Height is the texture height in rows after the update.
	Height int
	// Realloc asks for a fresh texture before the runs are copied.
	Realloc bool
	Runs    []RowRun
}

// IsEmpty reports whether applying the list would do nothing.
func (l UpdateList) IsEmpty() bool { return !l.Realloc && len(l.Runs) == 0 }

// Merge appends a later list to l. The merged list has the effect of
// applying l then later.
func (l *UpdateList) Merge(later UpdateList) {
	if later.Realloc {
		// A reallocation carries every live row, older runs are moot.
		*l = later
		return
	}
	l.Height = max(l.Height, later.Height)
	l.Runs = append(l.Runs, later.Runs...)
}

// TakeUpdates collects the rows written since the last call.
func (c *Cache) TakeUpdates() UpdateList {
	list := UpdateList{Height: c.capacity, Realloc: c.needsRealloc}
	var ranges [][2]int
	if c.needsRealloc {
		c.dirty.takeRanges()
		if len(c.rows) > 0 {
			ranges = [][2]int{{0, len(c.rows)}}
		}
		c.needsRealloc = false
	} else {
		ranges = c.dirty.takeRanges()
	}

	for _, rg := range ranges {
		end := min(rg[1], len(c.rows))
		if rg[0] >= end {
			continue
		}
		run := RowRun{Start: rg[0], Blocks: make([]Block, 0, (end-rg[0])*MaxVertexTextureWidth)}
		for v := rg[0]; v < end; v++ {
			run.Blocks = append(run.Blocks, c.rows[v].blocks[:]...)
		}
		list.Runs = append(list.Runs, run)
	}
	return list
}

// Texture is the renderer's handle on the cache texture.
type Texture struct {
	ID     device.TextureID
	Height int
}

// Apply uploads the list to the device, creating or recreating the
// texture as needed.
func (t *Texture) Apply(dev device.Device, l UpdateList) error {
	if l.Realloc || t.ID == 0 || l.Height > t.Height {
		height := max(l.Height, 1)
		id, err := dev.CreateTexture(MaxVertexTextureWidth, height, device.FormatRGBAF32, false)
		if err != nil {
			return fmt.Errorf("gpucache: create texture: %w", err)
		}
		if t.ID != 0 {
			if !l.Realloc {
				// Keep the rows that are not part of this update.
				if err := dev.CopyTexture(id, image.Point{}, t.ID, image.Rect(0, 0, MaxVertexTextureWidth, t.Height)); err != nil {
					return fmt.Errorf("gpucache: copy texture: %w", err)
				}
			}
			dev.DeleteTexture(t.ID)
		}
		t.ID, t.Height = id, height
	}

	for _, run := range l.Runs {
		rect := image.Rect(0, run.Start, MaxVertexTextureWidth, run.Start+run.Rows())
		if err := dev.UpdateTexture(t.ID, rect, EncodeBlocks(nil, run.Blocks)); err != nil {
			return fmt.Errorf("gpucache: upload rows %d-%d: %w", rect.Min.Y, rect.Max.Y, err)
		}
	}
	return nil
}

// Flush uploads the rows dirtied since the previous flush.
func (c *Cache) Flush(dev device.Device, tex *Texture) error {
	return tex.Apply(dev, c.TakeUpdates())
}

// EncodeBlocks appends blocks as little-endian float32 texels.
func EncodeBlocks(dst []byte, blocks []Block) []byte {
	for _, b := range blocks {
		for _, f := range b {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
		}
	}
	return dst
}
