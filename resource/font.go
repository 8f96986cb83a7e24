package resource

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"github.com/go-text/typesetting/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
)

// Font is a parsed TrueType or OpenType font. The go-text face answers
// cmap and metric queries, the sfnt font supplies outlines.
type Font struct {
	face *font.Face
	sfnt *sfnt.Font

	// sfnt.Buffer is not safe for concurrent use.
	mu  sync.Mutex
	buf sfnt.Buffer
}

// ParseFont parses font data.
func ParseFont(data []byte) (*Font, error) {
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("resource: parse font: %w", err)
	}
	sf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("resource: parse font outlines: %w", err)
	}
	return &Font{face: face, sfnt: sf}, nil
}

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int { return f.sfnt.NumGlyphs() }

// GlyphIndex maps r through the font's cmap.
func (f *Font) GlyphIndex(r rune) (uint32, bool) {
	gid, ok := f.face.NominalGlyph(r)
	return uint32(gid), ok
}

// Advance returns the horizontal advance of glyph index at size pixels
// per em.
func (f *Font) Advance(index uint32, size float32) float32 {
	upem := float32(f.face.Upem())
	if upem == 0 {
		return 0
	}
	return f.face.HorizontalAdvance(font.GID(index)) * size / upem
}

// Layout places s on a single line starting at origin, one glyph per
// rune with nominal advances. It does no shaping: ligatures, kerning and
// bidi are out of scope. Runes missing from the font are skipped.
func (f *Font) Layout(s string, size float32, origin geom.Point) []display.GlyphInstance {
	glyphs := make([]display.GlyphInstance, 0, len(s))
	pen := origin
	for _, r := range s {
		gid, ok := f.GlyphIndex(r)
		if !ok {
			continue
		}
		glyphs = append(glyphs, display.GlyphInstance{Index: gid, Point: pen})
		pen.X += f.Advance(gid, size)
	}
	return glyphs
}

// rasterize renders glyph index into an Alpha8 bitmap. The origin is the
// bitmap's top-left relative to the pen position on the baseline.
func (f *Font) rasterize(index uint32, ppem float32) (*bitmap, error) {
	if int(index) >= f.sfnt.NumGlyphs() {
		return nil, fmt.Errorf("resource: glyph %d out of range", index)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	segs, err := f.sfnt.LoadGlyph(&f.buf, sfnt.GlyphIndex(index), fixed.Int26_6(ppem*64), nil)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return &bitmap{}, nil
	}
	b := segs.Bounds()
	x0, y0 := b.Min.X.Floor(), b.Min.Y.Floor()
	x1, y1 := b.Max.X.Ceil(), b.Max.Y.Ceil()
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return &bitmap{}, nil
	}

	r := vector.NewRasterizer(w, h)
	r.DrawOp = draw.Src
	pt := func(p fixed.Point26_6) (float32, float32) {
		return fix(p.X) - float32(x0), fix(p.Y) - float32(y0)
	}
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			r.MoveTo(pt(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			r.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			ax, ay := pt(s.Args[0])
			bx, by := pt(s.Args[1])
			r.QuadTo(ax, ay, bx, by)
		case sfnt.SegmentOpCubeTo:
			ax, ay := pt(s.Args[0])
			bx, by := pt(s.Args[1])
			cx, cy := pt(s.Args[2])
			r.CubeTo(ax, ay, bx, by, cx, cy)
		}
	}
	r.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	if blank(mask.Pix) {
		return &bitmap{}, nil
	}
	return &bitmap{mask: mask, origin: geom.Pt(float32(x0), float32(y0))}, nil
}

func fix(v fixed.Int26_6) float32 { return float32(v) / 64 }

func blank(pix []byte) bool {
	for _, p := range pix {
		if p != 0 {
			return false
		}
	}
	return true
}

// Ascent returns the font ascent at size pixels per em, rounded up.
func (f *Font) Ascent(size float32) float32 {
	ext, ok := f.face.FontHExtents()
	upem := float32(f.face.Upem())
	if !ok || upem == 0 {
		return size
	}
	return float32(math.Ceil(float64(ext.Ascender * size / upem)))
}
