package prim

import (
	"fmt"

	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
)

// MaxGradientStops is the number of stops a gradient slot holds.
const MaxGradientStops = 14

// Every primitive starts with two blocks: the local rect and the local
// clip rect. Colours are stored premultiplied.

func header(local, clip geom.Rect) []gpucache.Block {
	return append(make([]gpucache.Block, 0, 8), RectBlock(local), RectBlock(clip))
}

// RectBlock packs a rect as (x0, y0, x1, y1).
func RectBlock(r geom.Rect) gpucache.Block {
	return gpucache.Block{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

// ColorBlock packs a premultiplied colour.
func ColorBlock(c geom.ColorF) gpucache.Block {
	p := c.Premultiplied()
	return gpucache.Block{p.R, p.G, p.B, p.A}
}

// EncodeRectangle stores a solid colour.
func EncodeRectangle(it display.Rectangle) Metadata {
	return Metadata{
		Kind:      Rectangle,
		LocalRect: it.Bounds,
		ClipRect:  it.ClipRect(),
		Opaque:    it.Color.IsOpaque(),
		Source:    it,
		Data:      append(header(it.Bounds, it.ClipRect()), ColorBlock(it.Color)),
	}
}

// EncodeImage stores the stretch size and tile spacing. The uv rect of
// the cached image changes with the texture cache and is pushed per
// frame.
func EncodeImage(it display.Image) Metadata {
	stretch := it.StretchSize
	if stretch.IsEmpty() {
		stretch = it.Bounds.Size()
	}
	return Metadata{
		Kind:      Image,
		LocalRect: it.Bounds,
		ClipRect:  it.ClipRect(),
		Source:    it,
		Resources: []ResourceKey{{Image: it.Key}},
		Data: append(header(it.Bounds, it.ClipRect()),
			gpucache.Block{stretch.W, stretch.H, it.TileSpacing.W, it.TileSpacing.H}),
	}
}

// EncodeText stores the run colour. Glyph positions and uv rects are
// pushed per frame.
func EncodeText(it display.Text) Metadata {
	return Metadata{
		Kind:      TextRun,
		LocalRect: it.Bounds,
		ClipRect:  it.ClipRect(),
		Source:    it,
		Resources: []ResourceKey{{Font: it.Font}},
		Data:      append(header(it.Bounds, it.ClipRect()), ColorBlock(it.Color)),
	}
}

// EncodeBorder stores widths, four side colours and corner radii.
func EncodeBorder(it display.Border) Metadata {
	w, r := it.Widths, it.Radius
	data := append(header(it.Bounds, it.ClipRect()), gpucache.Block{w.Top, w.Right, w.Bottom, w.Left})
	for _, c := range it.Colors {
		data = append(data, ColorBlock(c))
	}
	data = append(data,
		gpucache.Block{r.TopLeft.W, r.TopLeft.H, r.TopRight.W, r.TopRight.H},
		gpucache.Block{r.BottomLeft.W, r.BottomLeft.H, r.BottomRight.W, r.BottomRight.H},
	)
	return Metadata{
		Kind:      Border,
		LocalRect: it.Bounds,
		ClipRect:  it.ClipRect(),
		Source:    it,
		Data:      data,
	}
}

// EncodeGradient stores the gradient line followed by one colour and
// one offset block per stop.
func EncodeGradient(it display.Gradient) (Metadata, error) {
	if len(it.Stops) > MaxGradientStops {
		return Metadata{}, fmt.Errorf("%w: %d gradient stops", ErrDataTooLarge, len(it.Stops))
	}
	var repeat float32
	if it.Repeat {
		repeat = 1
	}
	opaque := len(it.Stops) > 0
	data := append(header(it.Bounds, it.ClipRect()),
		gpucache.Block{it.Start.X, it.Start.Y, it.End.X, it.End.Y},
		gpucache.Block{repeat, float32(len(it.Stops)), 0, 0},
	)
	for _, s := range it.Stops {
		data = append(data, ColorBlock(s.Color), gpucache.Block{s.Offset, 0, 0, 0})
		opaque = opaque && s.Color.IsOpaque()
	}
	return Metadata{
		Kind:      Gradient,
		LocalRect: it.Bounds,
		ClipRect:  it.ClipRect(),
		Opaque:    opaque,
		Source:    it,
		Data:      data,
	}, nil
}

// ShadowRect returns the rect of the shadow casting shape after offset
// and spread.
func ShadowRect(it display.BoxShadow) geom.Rect {
	r := it.Box.Translate(it.Offset)
	if it.Mode == display.ShadowInset {
		return r.Inflate(-it.SpreadRadius, -it.SpreadRadius)
	}
	return r.Inflate(it.SpreadRadius, it.SpreadRadius)
}

// EncodeBoxShadow stores the colour, shadow rect and blur parameters.
func EncodeBoxShadow(it display.BoxShadow) Metadata {
	return Metadata{
		Kind:      BoxShadow,
		LocalRect: it.Bounds,
		ClipRect:  it.ClipRect(),
		Source:    it,
		Data: append(header(it.Bounds, it.ClipRect()),
			ColorBlock(it.Color),
			RectBlock(ShadowRect(it)),
			gpucache.Block{it.BlurRadius, it.SpreadRadius, float32(it.Mode), it.BorderRadius},
			RectBlock(it.Box),
		),
	}
}

// EncodePicture stores the composite parameters of a stacking context.
func EncodePicture(local geom.Rect, picture int, opacity float32) Metadata {
	return Metadata{
		Kind:      Picture,
		LocalRect: local,
		ClipRect:  local,
		Picture:   picture,
		Data:      append(header(local, local), gpucache.Block{opacity, 0, 0, 0}),
	}
}
