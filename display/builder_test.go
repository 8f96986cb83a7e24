package display

import (
	"errors"
	"testing"

	"github.com/gogpu/wr/geom"
)

func TestValidate(t *testing.T) {
	red := geom.RGBA(1, 0, 0, 1)
	tests := []struct {
		name  string
		build func(b *Builder)
		ok    bool
	}{
		{"empty", func(*Builder) {}, true},
		{"flat", func(b *Builder) {
			b.PushRect(geom.R(0, 0, 10, 10), red)
		}, true},
		{"nested", func(b *Builder) {
			b.PushStackingContext(StackingContext{})
			b.PushClip(ClipRegion{Rect: geom.R(0, 0, 50, 50)})
			b.PushScrollFrame(ScrollFrame{ID: 1, Frame: geom.R(0, 0, 50, 50)})
			b.PushRect(geom.R(0, 0, 10, 10), red)
			b.PopScrollFrame()
			b.PopClip()
			b.PopStackingContext()
		}, true},
		{"pop without push", func(b *Builder) {
			b.PushRect(geom.R(0, 0, 10, 10), red)
			b.PopStackingContext()
		}, false},
		{"crossed scopes", func(b *Builder) {
			b.PushStackingContext(StackingContext{})
			b.PushClip(ClipRegion{Rect: geom.R(0, 0, 50, 50)})
			b.PopStackingContext()
			b.PopClip()
		}, false},
		{"left open", func(b *Builder) {
			b.PushStackingContext(StackingContext{})
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(geom.Sz(100, 100))
			tt.build(b)
			err := b.Finalize().Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrUnbalanced) {
				t.Fatalf("Validate() = %v, want ErrUnbalanced", err)
			}
		})
	}
}

func TestStackingContextIsolation(t *testing.T) {
	tests := []struct {
		name string
		sc   StackingContext
		want bool
	}{
		{"plain", StackingContext{}, false},
		{"opaque filter", StackingContext{Filters: []Filter{{Kind: FilterOpacity, Value: 1}}}, false},
		{"translucent", StackingContext{Filters: []Filter{{Kind: FilterOpacity, Value: 0.5}}}, true},
		{"blur", StackingContext{Filters: []Filter{{Kind: FilterBlur, Value: 3}}}, true},
		{"multiply", StackingContext{BlendMode: BlendMultiply}, true},
		{"animated opacity", StackingContext{OpacityKey: 7}, true},
	}
	for _, tt := range tests {
		if got := tt.sc.IsIsolated(); got != tt.want {
			t.Errorf("%s: IsIsolated() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestZeroTransformIsIdentity(t *testing.T) {
	if got := (StackingContext{}).LocalTransform(); !got.IsIdentity() {
		t.Errorf("LocalTransform() = %v, want identity", got)
	}
}

func TestClipRegionNeedsMask(t *testing.T) {
	plain := ClipRegion{Rect: geom.R(0, 0, 10, 10), Complex: []ComplexClip{{Rect: geom.R(0, 0, 5, 5)}}}
	if plain.NeedsMask() {
		t.Error("square complex clip should not need a mask")
	}
	rounded := ClipRegion{Complex: []ComplexClip{{Rect: geom.R(0, 0, 5, 5), Radii: geom.UniformRadius(2)}}}
	if !rounded.NeedsMask() {
		t.Error("rounded clip should need a mask")
	}
}

func TestItemKindString(t *testing.T) {
	if got := (PopStackingContext{}).Kind().String(); got != "pop_stacking_context" {
		t.Errorf("String() = %q", got)
	}
	if got := ItemKind(99).String(); got != "ItemKind(99)" {
		t.Errorf("String() = %q", got)
	}
}
