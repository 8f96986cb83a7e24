// Package reftest compares rendered frames against reference images.
package reftest

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Result summarises the difference between two images.
type Result struct {
	DiffCount   int
	DiffPercent float64
	// MaxDelta is the largest per-channel difference seen.
	MaxDelta uint8
}

// Compare counts pixels whose channels differ by more than tolerance.
// Images of different sizes differ everywhere.
func Compare(got, want *image.RGBA, tolerance uint8) Result {
	gb, wb := got.Bounds(), want.Bounds()
	total := max(gb.Dx()*gb.Dy(), wb.Dx()*wb.Dy())
	if gb.Size() != wb.Size() {
		return Result{DiffCount: total, DiffPercent: 100, MaxDelta: 255}
	}
	var r Result
	for y := 0; y < gb.Dy(); y++ {
		for x := 0; x < gb.Dx(); x++ {
			g := got.RGBAAt(gb.Min.X+x, gb.Min.Y+y)
			w := want.RGBAAt(wb.Min.X+x, wb.Min.Y+y)
			d := max(delta(g.R, w.R), delta(g.G, w.G), delta(g.B, w.B), delta(g.A, w.A))
			r.MaxDelta = max(r.MaxDelta, d)
			if d > tolerance {
				r.DiffCount++
			}
		}
	}
	if total > 0 {
		r.DiffPercent = float64(r.DiffCount) / float64(total) * 100
	}
	return r
}

func delta(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// Diff renders differing pixels in red over a faded copy of want.
func Diff(got, want *image.RGBA, tolerance uint8) *image.RGBA {
	b := want.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	gb := got.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			w := want.RGBAAt(b.Min.X+x, b.Min.Y+y)
			c := color.RGBA{R: w.R / 4, G: w.G / 4, B: w.B / 4, A: 255}
			gp := image.Pt(gb.Min.X+x, gb.Min.Y+y)
			if !gp.In(gb) {
				c = color.RGBA{R: 255, A: 255}
			} else if g := got.RGBAAt(gp.X, gp.Y); max(delta(g.R, w.R), delta(g.G, w.G), delta(g.B, w.B), delta(g.A, w.A)) > tolerance {
				c = color.RGBA{R: 255, A: 255}
			}
			out.SetRGBA(x, y, c)
		}
	}
	return out
}

// FromPixels wraps tightly packed RGBA rows, as returned by
// device.ReadPixels, in an image.
func FromPixels(width, height int, pix []byte) (*image.RGBA, error) {
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("reftest: %d bytes for %dx%d", len(pix), width, height)
	}
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
}

// LoadPNG decodes a PNG into RGBA.
func LoadPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reftest: decode %s: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(rgba, image.Point{}, img, b, xdraw.Src, nil)
	return rgba, nil
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("reftest: encode %s: %w", path, err)
	}
	return f.Close()
}
