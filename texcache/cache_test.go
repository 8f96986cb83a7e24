// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/device/soft"
)

func smallCache() *Cache {
	return New(Config{InitialSize: 64, MaxSize: 64, MaxLayers: 1})
}

func fill(t *testing.T, c *Cache, n int) []Handle {
	t.Helper()
	hs := make([]Handle, n)
	for i := range hs {
		h, err := c.Allocate(16, 16, device.FormatRGBA8, true)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		hs[i] = h
	}
	return hs
}

func TestAllocateNoOverlap(t *testing.T) {
	c := New(Config{InitialSize: 128, MaxSize: 256, MaxLayers: 2, Padding: 1})
	c.BeginFrame(1)
	type placed struct {
		tex  TextureID
		rect image.Rectangle
	}
	var all []placed
	for i := range 60 {
		h, err := c.Allocate(10+i%20, 8+i%13, device.FormatRGBA8, true)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		e, ok := c.Get(h)
		if !ok {
			t.Fatalf("Get(#%d) failed", i)
		}
		for _, p := range all {
			if p.tex == e.Texture && p.rect.Overlaps(e.Rect) {
				t.Errorf("entry %v overlaps %v in texture %d", e.Rect, p.rect, p.tex)
			}
		}
		all = append(all, placed{e.Texture, e.Rect})
	}
}

func TestAllocateInvalidFormat(t *testing.T) {
	c := smallCache()
	if _, err := c.Allocate(4, 4, device.FormatInvalid, true); !errors.Is(err, device.ErrInvalidFormat) {
		t.Errorf("Allocate(invalid format) error = %v, want ErrInvalidFormat", err)
	}
	if _, err := c.Allocate(65, 4, device.FormatRGBA8, true); !errors.Is(err, ErrOutOfSpace) {
		t.Errorf("Allocate(too wide) error = %v, want ErrOutOfSpace", err)
	}
}

// Allocating past capacity evicts exactly the entries that were not
// touched again, oldest first, and then refuses to evict entries used in
// the current frame.
func TestEvictsLeastRecentlyTouched(t *testing.T) {
	const m = 4
	c := smallCache()
	c.BeginFrame(1)
	hs := fill(t, c, 16)

	c.BeginFrame(2)
	for _, h := range hs[m:] {
		if !c.Touch(h) {
			t.Fatal("Touch() on a live entry failed")
		}
	}

	for i := range m {
		if _, err := c.Allocate(16, 16, device.FormatRGBA8, true); err != nil {
			t.Fatalf("Allocate #%d after touch: %v", i, err)
		}
		if _, ok := c.Get(hs[i]); ok {
			t.Errorf("entry %d survived allocation %d", i, i)
		}
		for j := i + 1; j < len(hs); j++ {
			if _, ok := c.Get(hs[j]); !ok {
				t.Errorf("entry %d evicted before entry %d", j, i+1)
			}
		}
	}

	if _, err := c.Allocate(16, 16, device.FormatRGBA8, true); !errors.Is(err, ErrOutOfSpace) {
		t.Errorf("Allocate() evicting a same-frame entry: error = %v, want ErrOutOfSpace", err)
	}
	if got := c.Stats().Evictions; got != m {
		t.Errorf("Stats().Evictions = %d, want %d", got, m)
	}
}

func TestSameFrameEntriesNeverEvicted(t *testing.T) {
	c := smallCache()
	c.BeginFrame(7)
	hs := fill(t, c, 16)
	if _, err := c.Allocate(16, 16, device.FormatRGBA8, true); !errors.Is(err, ErrOutOfSpace) {
		t.Fatalf("error = %v, want ErrOutOfSpace", err)
	}
	for i, h := range hs {
		if _, ok := c.Get(h); !ok {
			t.Errorf("entry %d allocated this frame was evicted", i)
		}
	}
}

func TestPinnedEntriesSkipped(t *testing.T) {
	c := smallCache()
	c.BeginFrame(1)
	pinned, _ := c.Allocate(16, 16, device.FormatRGBA8, false)
	rest := make([]Handle, 15)
	for i := range rest {
		rest[i], _ = c.Allocate(16, 16, device.FormatRGBA8, true)
	}
	c.BeginFrame(2)
	if _, err := c.Allocate(16, 16, device.FormatRGBA8, true); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(pinned); !ok {
		t.Error("non-evictable entry was evicted")
	}
	if _, ok := c.Get(rest[0]); ok {
		t.Error("oldest evictable entry survived")
	}
}

func TestGrowBeforeEvict(t *testing.T) {
	c := New(Config{InitialSize: 32, MaxSize: 64, MaxLayers: 1})
	c.BeginFrame(1)
	first, _ := c.Allocate(32, 32, device.FormatAlpha8, true)
	c.BeginFrame(2)
	if _, err := c.Allocate(32, 32, device.FormatAlpha8, true); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(first); !ok {
		t.Error("entry evicted although the layer could grow")
	}
	ups := c.TakeUpdates()
	var ops []UpdateOp
	for _, u := range ups {
		ops = append(ops, u.Op)
	}
	if len(ops) != 2 || ops[0] != OpCreate || ops[1] != OpGrow {
		t.Errorf("updates = %v, want [create grow]", ops)
	}
	if ups[1].Size != image.Pt(64, 64) {
		t.Errorf("grow size = %v, want (64,64)", ups[1].Size)
	}
}

func TestFormatsUseSeparateLayers(t *testing.T) {
	c := smallCache()
	a, _ := c.Allocate(8, 8, device.FormatAlpha8, true)
	b, _ := c.Allocate(8, 8, device.FormatRGBA8, true)
	ea, _ := c.Get(a)
	eb, _ := c.Get(b)
	if ea.Texture == eb.Texture {
		t.Error("Alpha8 and RGBA8 entries share a texture")
	}
	if ea.Format != device.FormatAlpha8 || eb.Format != device.FormatRGBA8 {
		t.Errorf("formats = %v, %v", ea.Format, eb.Format)
	}
}

func TestFreeAndStaleHandles(t *testing.T) {
	c := smallCache()
	h, _ := c.Allocate(8, 8, device.FormatRGBA8, true)
	c.Free(h)
	if _, ok := c.Get(h); ok {
		t.Error("Get() after Free succeeded")
	}
	if c.Touch(h) {
		t.Error("Touch() after Free succeeded")
	}
	h2, _ := c.Allocate(8, 8, device.FormatRGBA8, true)
	if _, ok := c.Get(h); ok {
		t.Error("stale handle resolved to a new entry")
	}
	if _, ok := c.Get(h2); !ok {
		t.Error("new entry not found")
	}
	if err := c.Upload(h, make([]byte, 8*8*4)); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Upload(stale) error = %v, want ErrInvalidHandle", err)
	}
}

func TestUploadChecksSize(t *testing.T) {
	c := smallCache()
	h, _ := c.Allocate(4, 2, device.FormatRGBA8, true)
	c.TakeUpdates()
	if err := c.Upload(h, make([]byte, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Upload(short) error = %v, want ErrSizeMismatch", err)
	}
	if err := c.Upload(h, make([]byte, 4*2*4)); err != nil {
		t.Fatalf("Upload() = %v", err)
	}
	ups := c.TakeUpdates()
	if len(ups) != 1 || ups[0].Op != OpUpload || ups[0].Rect.Dx() != 4 {
		t.Errorf("updates = %+v, want one 4-wide upload", ups)
	}
	if len(c.TakeUpdates()) != 0 {
		t.Error("TakeUpdates() did not clear the list")
	}
}

// Evicting every entry of a shelf makes the whole shelf available to a
// wider request, so eviction only goes as far as it has to.
func TestEvictReclaimsWholeShelf(t *testing.T) {
	c := New(Config{InitialSize: 128, MaxSize: 128, MaxLayers: 1})
	c.BeginFrame(1)
	hs := make([]Handle, 4)
	for i := range hs {
		h, err := c.Allocate(64, 64, device.FormatRGBA8, true)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		hs[i] = h
	}

	c.BeginFrame(2)
	c.Touch(hs[2])
	c.Touch(hs[3])
	h, err := c.Allocate(128, 64, device.FormatRGBA8, true)
	if err != nil {
		t.Fatalf("Allocate(128, 64) after eviction: %v", err)
	}
	if got := c.Stats().Evictions; got != 2 {
		t.Errorf("Stats().Evictions = %d, want 2", got)
	}
	wide, _ := c.Get(h)
	for i, old := range hs {
		e, ok := c.Get(old)
		if i < 2 {
			if ok {
				t.Errorf("entry %d survived", i)
			}
			continue
		}
		if !ok {
			t.Fatalf("touched entry %d was evicted", i)
		}
		if e.Rect.Overlaps(wide.Rect) {
			t.Errorf("entry %d %v overlaps new entry %v", i, e.Rect, wide.Rect)
		}
	}
}

func TestTexturesApplyContinuesAfterFailure(t *testing.T) {
	dev := soft.New(1, 1)
	tx := NewTextures()
	err := tx.Apply(dev, []Update{
		{Op: OpUpload, Texture: 9, Rect: image.Rect(0, 0, 1, 1), Data: make([]byte, 4)},
		{Op: OpCreate, Texture: 1, Format: device.FormatRGBA8, Size: image.Pt(16, 16)},
	})
	if !errors.Is(err, device.ErrInvalidTexture) {
		t.Errorf("Apply() error = %v, want ErrInvalidTexture", err)
	}
	if _, ok := tx.Lookup(1); !ok {
		t.Error("update after the failed one was not applied")
	}
}
