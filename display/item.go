// Package display defines the display list: the ordered paint commands a
// client sends to describe a scene.
//
// A list is a flat sequence of items. Stacking contexts, clips and scroll
// frames open with a push item and close with the matching pop; drawing
// items in between belong to every open scope. Lists must be well nested;
// Validate reports the first structural error.
package display

import (
	"fmt"

	"github.com/gogpu/wr/geom"
)

// Resource keys are chosen by the client and resolved by the resource
// cache.
type (
	ImageKey    uint32
	FontKey     uint32
	ScrollID    uint64
	PropertyKey uint64
)

// ItemKind tags display items.
type ItemKind uint8

const (
	KindRectangle ItemKind = iota
	KindImage
	KindText
	KindBorder
	KindGradient
	KindBoxShadow
	KindPushStackingContext
	KindPopStackingContext
	KindPushClip
	KindPopClip
	KindPushScrollFrame
	KindPopScrollFrame
)

var kindNames = [...]string{
	"rectangle", "image", "text", "border", "gradient", "box_shadow",
	"push_stacking_context", "pop_stacking_context",
	"push_clip", "pop_clip", "push_scroll_frame", "pop_scroll_frame",
}

func (k ItemKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ItemKind(%d)", uint8(k))
}

// Item is one display list entry.
type Item interface {
	Kind() ItemKind
}

// Common holds the geometry every drawing item has. Clip is an extra
// local clip rect; an empty Clip leaves the item unclipped.
type Common struct {
	Bounds geom.Rect
	Clip   geom.Rect
}

// ClipRect returns the effective local clip of the item.
func (c Common) ClipRect() geom.Rect {
	if c.Clip.IsEmpty() {
		return c.Bounds
	}
	return c.Clip
}

type Rectangle struct {
	Common
	Color geom.ColorF
}

// ImageRendering selects the sampling filter for images.
type ImageRendering uint8

const (
	RenderingAuto ImageRendering = iota
	RenderingPixelated
)

type Image struct {
	Common
	Key ImageKey
	// StretchSize is the size one copy of the image is drawn at; the image
	// repeats across Bounds. A zero size stretches over Bounds.
	StretchSize geom.Size
	TileSpacing geom.Size
	Rendering   ImageRendering
}

// GlyphInstance places one glyph; Point is its baseline origin.
type GlyphInstance struct {
	Index uint32
	Point geom.Point
}

type Text struct {
	Common
	Font   FontKey
	Size   float32 // pixels per em
	Color  geom.ColorF
	Glyphs []GlyphInstance
}

type Border struct {
	Common
	Widths geom.SideOffsets
	// Colors are top, right, bottom, left.
	Colors [4]geom.ColorF
	Radius geom.BorderRadius
}

type GradientStop struct {
	Offset float32
	Color  geom.ColorF
}

type Gradient struct {
	Common
	Start, End geom.Point
	Stops      []GradientStop
	Repeat     bool
}

// ShadowClipMode selects an outer or inner box shadow.
type ShadowClipMode uint8

const (
	ShadowOutset ShadowClipMode = iota
	ShadowInset
)

type BoxShadow struct {
	Common
	Box          geom.Rect
	Offset       geom.Point
	Color        geom.ColorF
	BlurRadius   float32
	SpreadRadius float32
	BorderRadius float32
	Mode         ShadowClipMode
}

func (Rectangle) Kind() ItemKind { return KindRectangle }
func (Image) Kind() ItemKind     { return KindImage }
func (Text) Kind() ItemKind      { return KindText }
func (Border) Kind() ItemKind    { return KindBorder }
func (Gradient) Kind() ItemKind  { return KindGradient }
func (BoxShadow) Kind() ItemKind { return KindBoxShadow }

// FilterKind selects a stacking-context filter.
type FilterKind uint8

const (
	FilterOpacity FilterKind = iota
	FilterBlur
)

// Filter is applied to the rendered content of a stacking context.
type Filter struct {
	Kind FilterKind
	// Value is the opacity in [0, 1] or the blur radius in pixels.
	Value float32
}

// MixBlendMode composites a stacking context with what lies below it.
type MixBlendMode uint8

const (
	BlendNormal MixBlendMode = iota
	BlendMultiply
	BlendScreen
)

// StackingContext establishes a paint-order group with its own
// transform, filters and blend mode.
type StackingContext struct {
	Bounds geom.Rect
	// Transform maps the context's local space into its parent. A zero
	// Transform is the identity.
	Transform geom.Transform
	// TransformKey, when non-zero, makes the transform animatable through
	// property updates.
	TransformKey PropertyKey
	// OpacityKey, when non-zero, names an animatable opacity.
	OpacityKey PropertyKey
	Filters    []Filter
	BlendMode  MixBlendMode
}

// LocalTransform returns the context transform with the zero value read
// as identity.
func (sc StackingContext) LocalTransform() geom.Transform {
	if sc.Transform == (geom.Transform{}) {
		return geom.Identity()
	}
	return sc.Transform
}

// IsIsolated reports whether the context must render offscreen.
func (sc StackingContext) IsIsolated() bool {
	if sc.BlendMode != BlendNormal || sc.OpacityKey != 0 {
		return true
	}
	for _, f := range sc.Filters {
		switch f.Kind {
		case FilterBlur:
			if f.Value > 0 {
				return true
			}
		case FilterOpacity:
			if f.Value < 1 {
				return true
			}
		}
	}
	return false
}

type PushStackingContext struct{ StackingContext }
type PopStackingContext struct{}

// ComplexClip is a rounded rectangle.
type ComplexClip struct {
	Rect  geom.Rect
	Radii geom.BorderRadius
}

// ImageMask clips by the alpha of an image.
type ImageMask struct {
	Key    ImageKey
	Rect   geom.Rect
	Repeat bool
}

// ClipRegion is the intersection of a rect, rounded rects and an
// optional image mask.
type ClipRegion struct {
	Rect    geom.Rect
	Complex []ComplexClip
	Mask    *ImageMask
}

// NeedsMask reports whether the region can't be expressed as a rect.
func (r ClipRegion) NeedsMask() bool {
	if r.Mask != nil {
		return true
	}
	for _, c := range r.Complex {
		if !c.Radii.IsZero() {
			return true
		}
	}
	return false
}

type PushClip struct{ Region ClipRegion }
type PopClip struct{}

// ScrollSensitivity selects which events may scroll a frame.
type ScrollSensitivity uint8

const (
	ScrollInputEvents ScrollSensitivity = iota
	ScrollScriptOnly
)

// ScrollFrame is a scrollable viewport. Frame is the visible rect in the
// parent's space; ContentSize the size of the scrolled content.
type ScrollFrame struct {
	ID          ScrollID
	Frame       geom.Rect
	ContentSize geom.Size
	Sensitivity ScrollSensitivity
}

type PushScrollFrame struct{ ScrollFrame }
type PopScrollFrame struct{}

func (PushStackingContext) Kind() ItemKind { return KindPushStackingContext }
func (PopStackingContext) Kind() ItemKind  { return KindPopStackingContext }
func (PushClip) Kind() ItemKind            { return KindPushClip }
func (PopClip) Kind() ItemKind             { return KindPopClip }
func (PushScrollFrame) Kind() ItemKind     { return KindPushScrollFrame }
func (PopScrollFrame) Kind() ItemKind      { return KindPopScrollFrame }
