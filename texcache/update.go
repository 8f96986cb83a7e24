// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/wr/device"
)

// UpdateOp is the kind of a texture update.
type UpdateOp uint8

const (
	// OpCreate allocates a new atlas texture of Size.
	OpCreate UpdateOp = iota
	// OpGrow enlarges a texture to Size, keeping its content.
	OpGrow
	// OpUpload copies Data into Rect.
	OpUpload
	// OpDelete releases a texture.
	OpDelete
)

func (op UpdateOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpGrow:
		return "grow"
	case OpUpload:
		return "upload"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("UpdateOp(%d)", uint8(op))
}

// Update is one step of bringing the device textures in line with the
// cache. Updates must be applied in order.
type Update struct {
	Op      UpdateOp
	Texture TextureID
	Format  device.TextureFormat
	Size    image.Point
	Rect    image.Rectangle
	Data    []byte
}

// TakeUpdates returns and clears the pending update list.
func (c *Cache) TakeUpdates() []Update {
	u := c.updates
	c.updates = nil
	return u
}

// Textures maps cache textures to device textures on the renderer side.
type Textures struct {
	ids   map[TextureID]device.TextureID
	sizes map[TextureID]image.Point
}

// NewTextures creates an empty mapping.
func NewTextures() *Textures {
	return &Textures{
		ids:   make(map[TextureID]device.TextureID),
		sizes: make(map[TextureID]image.Point),
	}
}

// Lookup returns the device texture backing id.
func (t *Textures) Lookup(id TextureID) (device.TextureID, bool) {
	d, ok := t.ids[id]
	return d, ok
}

// Apply performs updates against dev. A failed update does not stop the
// ones after it; every failure is reported.
func (t *Textures) Apply(dev device.Device, updates []Update) error {
	var errs []error
	for _, u := range updates {
		if err := t.apply(dev, u); err != nil {
			errs = append(errs, fmt.Errorf("texcache: %v texture %d: %w", u.Op, u.Texture, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Textures) apply(dev device.Device, u Update) error {
	switch u.Op {
	case OpCreate:
		id, err := dev.CreateTexture(u.Size.X, u.Size.Y, u.Format, true)
		if err != nil {
			return err
		}
		t.ids[u.Texture] = id
		t.sizes[u.Texture] = u.Size
		return nil

	case OpGrow:
		old, ok := t.ids[u.Texture]
		if !ok {
			return device.ErrInvalidTexture
		}
		id, err := dev.CreateTexture(u.Size.X, u.Size.Y, u.Format, true)
		if err != nil {
			return err
		}
		prev := t.sizes[u.Texture]
		if err := dev.CopyTexture(id, image.Point{}, old, image.Rectangle{Max: prev}); err != nil {
			dev.DeleteTexture(id)
			return err
		}
		dev.DeleteTexture(old)
		t.ids[u.Texture] = id
		t.sizes[u.Texture] = u.Size
		return nil

	case OpUpload:
		id, ok := t.ids[u.Texture]
		if !ok {
			return device.ErrInvalidTexture
		}
		return dev.UpdateTexture(id, u.Rect, u.Data)

	case OpDelete:
		if id, ok := t.ids[u.Texture]; ok {
			dev.DeleteTexture(id)
			delete(t.ids, u.Texture)
			delete(t.sizes, u.Texture)
		}
		return nil
	}
	return fmt.Errorf("unknown op %v", u.Op)
}

// Release deletes every device texture.
func (t *Textures) Release(dev device.Device) {
	for k, id := range t.ids {
		dev.DeleteTexture(id)
		delete(t.ids, k)
		delete(t.sizes, k)
	}
}
