// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"encoding/binary"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/wr/device"
)

// texture stores texels in the layout of its format. Colour and coverage
// formats use the standard library image types so that copies can go
// through x/image/draw; data textures keep raw float32 texels.
type texture struct {
	format device.TextureFormat
	target bool
	rgba   *image.RGBA
	alpha  *image.Alpha
	data   []float32
	width  int
	height int
}

func newTexture(w, h int, format device.TextureFormat, target bool) *texture {
	t := &texture{format: format, target: target, width: w, height: h}
	r := image.Rect(0, 0, w, h)
	switch format {
	case device.FormatRGBA8:
		t.rgba = image.NewRGBA(r)
	case device.FormatAlpha8:
		t.alpha = image.NewAlpha(r)
	case device.FormatRGBAF32:
		t.data = make([]float32, w*h*4)
	}
	return t
}

func (t *texture) bounds() image.Rectangle { return image.Rect(0, 0, t.width, t.height) }

func (t *texture) image() xdraw.Image {
	if t.rgba != nil {
		return t.rgba
	}
	if t.alpha != nil {
		return t.alpha
	}
	return nil
}

// upload writes tightly packed rows into rect.
func (t *texture) upload(rect image.Rectangle, pixels []byte) {
	bpp := t.format.BytesPerPixel()
	row := rect.Dx() * bpp
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		src := pixels[(y-rect.Min.Y)*row : (y-rect.Min.Y+1)*row]
		switch {
		case t.rgba != nil:
			copy(t.rgba.Pix[t.rgba.PixOffset(rect.Min.X, y):], src)
		case t.alpha != nil:
			copy(t.alpha.Pix[t.alpha.PixOffset(rect.Min.X, y):], src)
		default:
			dst := t.data[(y*t.width+rect.Min.X)*4:]
			for i := range row / 4 {
				dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
			}
		}
	}
}

// copyFrom copies srcRect of src to dstPt. Both textures share a format.
func (t *texture) copyFrom(dstPt image.Point, src *texture, srcRect image.Rectangle) {
	dr := image.Rectangle{Min: dstPt, Max: dstPt.Add(srcRect.Size())}
	if img := t.image(); img != nil {
		xdraw.Copy(img, dstPt, src.image(), srcRect, xdraw.Src, nil)
		return
	}
	dr = dr.Intersect(t.bounds())
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		sy := srcRect.Min.Y + y - dstPt.Y
		n := dr.Dx() * 4
		copy(t.data[(y*t.width+dr.Min.X)*4:][:n], src.data[(sy*src.width+srcRect.Min.X)*4:][:n])
	}
}

// texel returns the data texel at linear index i, or zero outside the
// texture.
func (t *texture) texel(i int) [4]float32 {
	x, y := device.TexelCoord(i)
	if t == nil || t.data == nil || i < 0 || x >= t.width || y >= t.height {
		return [4]float32{}
	}
	o := (y*t.width + x) * 4
	return [4]float32(t.data[o : o+4])
}

// fetch returns the premultiplied colour at pixel (x, y). Coverage
// textures expand to (a, a, a, a). Out of range reads are transparent.
func (t *texture) fetch(x, y int) color {
	if t == nil || x < 0 || y < 0 || x >= t.width || y >= t.height {
		return color{}
	}
	switch {
	case t.rgba != nil:
		p := t.rgba.Pix[t.rgba.PixOffset(x, y):]
		return color{unit(p[0]), unit(p[1]), unit(p[2]), unit(p[3])}
	case t.alpha != nil:
		a := unit(t.alpha.Pix[t.alpha.PixOffset(x, y)])
		return color{a, a, a, a}
	}
	return color{}
}

func (t *texture) store(x, y int, c color) {
	switch {
	case t.rgba != nil:
		p := t.rgba.Pix[t.rgba.PixOffset(x, y):]
		p[0], p[1], p[2], p[3] = norm(c[0]), norm(c[1]), norm(c[2]), norm(c[3])
	case t.alpha != nil:
		t.alpha.Pix[t.alpha.PixOffset(x, y)] = norm(c[3])
	}
}

func unit(v uint8) float32 { return float32(v) / 255 }

func norm(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
