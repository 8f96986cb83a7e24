package prim

import (
	"errors"
	"testing"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
)

func TestSlotBlocks(t *testing.T) {
	tests := []struct {
		n, want int
		err     bool
	}{
		{1, 4, false},
		{4, 4, false},
		{5, 8, false},
		{9, 16, false},
		{32, 32, false},
		{33, 0, true},
	}
	for _, tt := range tests {
		got, err := SlotBlocks(tt.n)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("SlotBlocks(%d) = %d, %v, want %d (error %v)", tt.n, got, err, tt.want, tt.err)
		}
		if tt.err && !errors.Is(err, ErrDataTooLarge) {
			t.Errorf("SlotBlocks(%d) error = %v, want ErrDataTooLarge", tt.n, err)
		}
	}
}

func TestAddPadsAndIndexesStably(t *testing.T) {
	s := NewStore()
	var idx []Index
	for i := range 100 {
		it := display.Rectangle{
			Common: display.Common{Bounds: geom.R(float32(i), 0, 1, 1)},
			Color:  geom.Black,
		}
		id, err := s.Add(EncodeRectangle(it))
		if err != nil {
			t.Fatal(err)
		}
		idx = append(idx, id)
	}
	for i, id := range idx {
		m := s.Get(id)
		if m == nil {
			t.Fatalf("Get(%d) = nil", i)
		}
		if m.LocalRect.Min.X != float32(i) {
			t.Errorf("Get(%d).LocalRect = %v", i, m.LocalRect)
		}
		if len(m.Data) != 4 {
			t.Errorf("rectangle data = %d blocks, want 4", len(m.Data))
		}
		if id.Int() != i || s.IndexAt(i) != id {
			t.Errorf("index %d does not round trip", i)
		}
	}
}

func TestIndexFromOtherStore(t *testing.T) {
	a, b := NewStore(), NewStore()
	id, _ := a.Add(EncodeRectangle(display.Rectangle{Common: display.Common{Bounds: geom.R(0, 0, 1, 1)}}))
	b.Add(EncodeRectangle(display.Rectangle{Common: display.Common{Bounds: geom.R(0, 0, 1, 1)}}))
	if b.Get(id) != nil {
		t.Error("index of another store resolved")
	}
}

func TestPrepareAndRelease(t *testing.T) {
	c := gpucache.New(0)
	s := NewStore()
	red := geom.RGBA(1, 0, 0, 0.5)
	id, _ := s.Add(EncodeRectangle(display.Rectangle{Common: display.Common{Bounds: geom.R(1, 2, 3, 4)}, Color: red}))

	addr, err := s.Prepare(c, id)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := s.Prepare(c, id)
	if again != addr {
		t.Errorf("second Prepare() = %v, want %v", again, addr)
	}
	blocks := c.Read(addr, 3)
	if blocks[0] != (gpucache.Block{1, 2, 4, 6}) {
		t.Errorf("local rect block = %v", blocks[0])
	}
	if blocks[2] != (gpucache.Block{0.5, 0, 0, 0.5}) {
		t.Errorf("colour block = %v, want premultiplied", blocks[2])
	}

	s.Release(c)
	if _, ok := c.Request(s.Get(id).GPU); ok {
		t.Error("handle still resident after Release")
	}
}

func TestEncodeGradientStops(t *testing.T) {
	stops := make([]display.GradientStop, MaxGradientStops)
	for i := range stops {
		stops[i] = display.GradientStop{Offset: float32(i) / 13, Color: geom.White}
	}
	it := display.Gradient{Common: display.Common{Bounds: geom.R(0, 0, 10, 10)}, Stops: stops}
	m, err := EncodeGradient(it)
	if err != nil {
		t.Fatalf("EncodeGradient(%d stops) error = %v", len(stops), err)
	}
	if !m.Opaque {
		t.Error("all-opaque gradient should be opaque")
	}
	s := NewStore()
	if _, err := s.Add(m); err != nil {
		t.Errorf("Add() error = %v", err)
	}

	it.Stops = append(it.Stops, display.GradientStop{Offset: 1})
	if _, err := EncodeGradient(it); !errors.Is(err, ErrDataTooLarge) {
		t.Errorf("EncodeGradient(15 stops) error = %v, want ErrDataTooLarge", err)
	}
}

func TestShadowRect(t *testing.T) {
	it := display.BoxShadow{Box: geom.R(10, 10, 20, 20), Offset: geom.Pt(5, 5), SpreadRadius: 2}
	if got := ShadowRect(it); got != geom.R(13, 13, 24, 24) {
		t.Errorf("outset ShadowRect() = %v", got)
	}
	it.Mode = display.ShadowInset
	if got := ShadowRect(it); got != geom.R(17, 17, 16, 16) {
		t.Errorf("inset ShadowRect() = %v", got)
	}
}

func TestKindShader(t *testing.T) {
	if got := Picture.Shader(); got != device.ShaderComposite {
		t.Errorf("Picture.Shader() = %v, want composite", got)
	}
	if got := TextRun.Shader(); got != device.ShaderText {
		t.Errorf("TextRun.Shader() = %v, want text", got)
	}
}
