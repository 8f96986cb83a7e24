package reftest

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestCompare(t *testing.T) {
	a := solid(4, 4, color.RGBA{R: 100, A: 255})
	b := solid(4, 4, color.RGBA{R: 102, A: 255})
	if r := Compare(a, b, 2); r.DiffCount != 0 || r.MaxDelta != 2 {
		t.Errorf("within tolerance: %+v", r)
	}
	b.SetRGBA(1, 1, color.RGBA{B: 255, A: 255})
	r := Compare(a, b, 2)
	if r.DiffCount != 1 || r.DiffPercent != 100.0/16 {
		t.Errorf("one pixel off: %+v", r)
	}
	if r := Compare(a, solid(2, 2, color.RGBA{}), 0); r.DiffPercent != 100 {
		t.Errorf("size mismatch: %+v", r)
	}
	d := Diff(a, b, 2)
	if got := d.RGBAAt(1, 1); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("diff marks %v", got)
	}
	if got := d.RGBAAt(0, 0); got.R != 25 {
		t.Errorf("diff background %v", got)
	}
}

func TestPNGRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	img := solid(3, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	if err := SavePNG(path, img); err != nil {
		t.Fatal(err)
	}
	back, err := LoadPNG(path)
	if err != nil {
		t.Fatal(err)
	}
	if r := Compare(back, img, 0); r.DiffCount != 0 {
		t.Errorf("round trip differs: %+v", r)
	}
	if _, err := LoadPNG(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("LoadPNG of a missing file succeeded")
	}
}

func TestFromPixels(t *testing.T) {
	img, err := FromPixels(2, 1, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{5, 6, 7, 8}) {
		t.Errorf("pixel = %v", got)
	}
	if _, err := FromPixels(2, 2, make([]byte, 4)); err == nil {
		t.Error("short buffer accepted")
	}
}
