package display

import (
	"errors"
	"fmt"

	"github.com/gogpu/wr/geom"
)

// ErrUnbalanced reports a pop without a matching push, a pop of the wrong
// scope, or a scope left open at the end of the list.
var ErrUnbalanced = errors.New("display: unbalanced display list")

// List is a finished display list.
type List struct {
	Items       []Item
	ContentSize geom.Size
}

// Validate checks that every push has a matching pop of the same kind.
func (l *List) Validate() error {
	var open []ItemKind
	for i, it := range l.Items {
		switch it.Kind() {
		case KindPushStackingContext, KindPushClip, KindPushScrollFrame:
			open = append(open, it.Kind())
		case KindPopStackingContext, KindPopClip, KindPopScrollFrame:
			want := pushFor(it.Kind())
			if len(open) == 0 {
				return fmt.Errorf("%w: item %d: %v without a matching push", ErrUnbalanced, i, it.Kind())
			}
			if top := open[len(open)-1]; top != want {
				return fmt.Errorf("%w: item %d: %v closes %v", ErrUnbalanced, i, it.Kind(), top)
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: %d scopes left open, innermost %v", ErrUnbalanced, len(open), open[len(open)-1])
	}
	return nil
}

func pushFor(pop ItemKind) ItemKind {
	switch pop {
	case KindPopStackingContext:
		return KindPushStackingContext
	case KindPopClip:
		return KindPushClip
	}
	return KindPushScrollFrame
}

// Builder records a display list. It does not validate nesting; the
// frame builder rejects malformed lists when the scene is built.
type Builder struct {
	items       []Item
	contentSize geom.Size
}

// NewBuilder starts a list for content of the given size.
func NewBuilder(contentSize geom.Size) *Builder {
	return &Builder{contentSize: contentSize}
}

// Push appends an arbitrary item.
func (b *Builder) Push(it Item) { b.items = append(b.items, it) }

func (b *Builder) PushRect(bounds geom.Rect, color geom.ColorF) {
	b.Push(Rectangle{Common: Common{Bounds: bounds}, Color: color})
}

func (b *Builder) PushImage(bounds geom.Rect, key ImageKey) {
	b.Push(Image{Common: Common{Bounds: bounds}, Key: key})
}

func (b *Builder) PushText(bounds geom.Rect, font FontKey, size float32, color geom.ColorF, glyphs []GlyphInstance) {
	b.Push(Text{Common: Common{Bounds: bounds}, Font: font, Size: size, Color: color, Glyphs: glyphs})
}

func (b *Builder) PushBorder(bounds geom.Rect, widths geom.SideOffsets, color geom.ColorF, radius geom.BorderRadius) {
	b.Push(Border{
		Common: Common{Bounds: bounds},
		Widths: widths,
		Colors: [4]geom.ColorF{color, color, color, color},
		Radius: radius,
	})
}

func (b *Builder) PushGradient(bounds geom.Rect, start, end geom.Point, stops []GradientStop) {
	b.Push(Gradient{Common: Common{Bounds: bounds}, Start: start, End: end, Stops: stops})
}

func (b *Builder) PushBoxShadow(bounds, box geom.Rect, offset geom.Point, color geom.ColorF, blur, spread float32, mode ShadowClipMode) {
	b.Push(BoxShadow{
		Common:       Common{Bounds: bounds},
		Box:          box,
		Offset:       offset,
		Color:        color,
		BlurRadius:   blur,
		SpreadRadius: spread,
		Mode:         mode,
	})
}

func (b *Builder) PushStackingContext(sc StackingContext) {
	b.Push(PushStackingContext{sc})
}

func (b *Builder) PopStackingContext() { b.Push(PopStackingContext{}) }

func (b *Builder) PushClip(region ClipRegion) { b.Push(PushClip{Region: region}) }

func (b *Builder) PopClip() { b.Push(PopClip{}) }

func (b *Builder) PushScrollFrame(sf ScrollFrame) { b.Push(PushScrollFrame{sf}) }

func (b *Builder) PopScrollFrame() { b.Push(PopScrollFrame{}) }

// Len returns the number of recorded items.
func (b *Builder) Len() int { return len(b.items) }

// Finalize returns the recorded list. The builder must not be used
// afterwards.
func (b *Builder) Finalize() *List {
	l := &List{Items: b.items, ContentSize: b.contentSize}
	b.items = nil
	return l
}
