// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldev

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/geom"
)

type texture struct {
	tex    hal.Texture
	view   hal.TextureView
	format device.TextureFormat
	width  int
	height int
	target bool
}

func (t *texture) bounds() image.Rectangle { return image.Rect(0, 0, t.width, t.height) }

func halFormat(f device.TextureFormat) gputypes.TextureFormat {
	switch f {
	case device.FormatAlpha8:
		return gputypes.TextureFormatR8Unorm
	case device.FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case device.FormatRGBAF32:
		return gputypes.TextureFormatRGBA32Float
	}
	return gputypes.TextureFormatUndefined
}

func (d *Device) newTexture(label string, w, h int, format device.TextureFormat, target bool) (*texture, error) {
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding
	if target {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	tex, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        halFormat(format),
		Usage:         usage,
	})
	if err != nil {
		return nil, err
	}
	view, err := d.dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        halFormat(format),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.dev.DestroyTexture(tex)
		return nil, err
	}
	return &texture{tex: tex, view: view, format: format, width: w, height: h, target: target}, nil
}

func (d *Device) destroyTexture(t *texture) {
	d.dev.DestroyTextureView(t.view)
	d.dev.DestroyTexture(t.tex)
}

// write uploads tightly packed rows into rect.
func (d *Device) write(t *texture, rect image.Rectangle, pixels []byte) error {
	return d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture: t.tex,
			Origin:  hal.Origin3D{X: uint32(rect.Min.X), Y: uint32(rect.Min.Y)},
			Aspect:  gputypes.TextureAspectAll,
		},
		pixels,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(rect.Dx() * t.format.BytesPerPixel()),
			RowsPerImage: uint32(rect.Dy()),
		},
		&hal.Extent3D{Width: uint32(rect.Dx()), Height: uint32(rect.Dy()), DepthOrArrayLayers: 1},
	)
}

// fill returns n texels of c encoded in format f.
func fill(f device.TextureFormat, c geom.ColorF, n int) []byte {
	var texel []byte
	switch f {
	case device.FormatAlpha8:
		texel = []byte{norm(c.A)}
	case device.FormatRGBA8:
		texel = []byte{norm(c.R), norm(c.G), norm(c.B), norm(c.A)}
	case device.FormatRGBAF32:
		for _, v := range [4]float32{c.R, c.G, c.B, c.A} {
			texel = binary.LittleEndian.AppendUint32(texel, math.Float32bits(v))
		}
	}
	out := make([]byte, 0, n*len(texel))
	for range n {
		out = append(out, texel...)
	}
	return out
}

func norm(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
