// Package frame turns a display list into a scene and a scene into
// frames: culled, batched render passes ready for a device.
package frame

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/wr/cliptree"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
)

// StackingContext is a flattened stacking context.
type StackingContext struct {
	Parent int // -1 for the root
	// Node is the space the context's content is positioned in.
	Node   cliptree.NodeID
	Bounds geom.Rect
	// Entries are the primitives and child contexts in paint order.
	Entries []Entry

	Isolated     bool
	Opacity      float32
	Blur         float32
	Blend        display.MixBlendMode
	TransformKey display.PropertyKey
	OpacityKey   display.PropertyKey
}

// Entry is a primitive, or when Child >= 0, a nested context.
type Entry struct {
	Prim  prim.Index
	Child int
}

// Properties are animated values applied without rebuilding the scene.
type Properties struct {
	Transforms map[display.PropertyKey]geom.Transform
	Opacities  map[display.PropertyKey]float32
}

// Scene is the flattened form of one display list. It is owned by the
// backend goroutine and read by the frame builder.
type Scene struct {
	Tree       *cliptree.Tree
	Store      *prim.Store
	Contexts   []StackingContext
	Background geom.ColorF
	// Dropped counts items rejected while flattening.
	Dropped int

	transforms map[display.PropertyKey]cliptree.NodeID
	opacities  map[display.PropertyKey]int
}

// FlattenOptions configure Flatten.
type FlattenOptions struct {
	// Viewport is the device rect of the output.
	Viewport         geom.Rect
	DevicePixelRatio float32
	Background       geom.ColorF
	Logger           *slog.Logger
}

type flattener struct {
	scene  *Scene
	nodes  []cliptree.NodeID
	stack  []int // open stacking contexts
	logger *slog.Logger
}

// Flatten validates dl and builds its clip/scroll tree, stacking context
// tree and primitive store. A malformed list returns an error wrapping
// display.ErrUnbalanced.
func Flatten(dl *display.List, opts FlattenOptions) (*Scene, error) {
	if err := dl.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Scene{
		Tree:       cliptree.New(opts.Viewport),
		Store:      prim.NewStore(),
		Background: opts.Background,
		transforms: make(map[display.PropertyKey]cliptree.NodeID),
		opacities:  make(map[display.PropertyKey]int),
	}
	root := cliptree.Root
	if dpr := opts.DevicePixelRatio; dpr > 0 && dpr != 1 {
		var err error
		if root, err = s.Tree.AddReferenceFrame(cliptree.Root, geom.Scaling(dpr, dpr)); err != nil {
			return nil, err
		}
	}
	s.Contexts = append(s.Contexts, StackingContext{Parent: -1, Node: root, Opacity: 1})

	f := &flattener{scene: s, nodes: []cliptree.NodeID{root}, stack: []int{0}, logger: opts.Logger}
	for i, it := range dl.Items {
		if err := f.item(it); err != nil {
			return nil, fmt.Errorf("frame: item %d (%v): %w", i, it.Kind(), err)
		}
	}
	s.Tree.UpdateTransforms()
	return s, nil
}

func (f *flattener) node() cliptree.NodeID { return f.nodes[len(f.nodes)-1] }

func (f *flattener) context() *StackingContext {
	return &f.scene.Contexts[f.stack[len(f.stack)-1]]
}

func (f *flattener) item(it display.Item) error {
	s := f.scene
	switch it := it.(type) {
	case display.PushStackingContext:
		return f.pushStackingContext(it.StackingContext)
	case display.PopStackingContext:
		f.stack = f.stack[:len(f.stack)-1]
		f.nodes = f.nodes[:len(f.nodes)-1]
	case display.PushClip:
		id, err := s.Tree.AddClip(f.node(), it.Region)
		if err != nil {
			return err
		}
		f.nodes = append(f.nodes, id)
	case display.PushScrollFrame:
		id, err := s.Tree.AddScrollFrame(f.node(), it.ScrollFrame)
		if err != nil {
			return err
		}
		f.nodes = append(f.nodes, id)
	case display.PopClip, display.PopScrollFrame:
		f.nodes = f.nodes[:len(f.nodes)-1]
	default:
		f.primitive(it)
	}
	return nil
}

func (f *flattener) pushStackingContext(sc display.StackingContext) error {
	s := f.scene
	node := f.node()
	if tr := sc.LocalTransform(); !tr.IsIdentity() || sc.TransformKey != 0 {
		var err error
		if node, err = s.Tree.AddReferenceFrame(node, tr); err != nil {
			return err
		}
		if sc.TransformKey != 0 {
			s.transforms[sc.TransformKey] = node
		}
	}

	ctx := StackingContext{
		Parent:       f.stack[len(f.stack)-1],
		Node:         node,
		Bounds:       sc.Bounds,
		Isolated:     sc.IsIsolated(),
		Opacity:      1,
		Blend:        sc.BlendMode,
		TransformKey: sc.TransformKey,
		OpacityKey:   sc.OpacityKey,
	}
	for _, fl := range sc.Filters {
		switch fl.Kind {
		case display.FilterOpacity:
			ctx.Opacity *= geom.Clamp(fl.Value, 0, 1)
		case display.FilterBlur:
			ctx.Blur += max(fl.Value, 0)
		}
	}
	idx := len(s.Contexts)
	if sc.OpacityKey != 0 {
		s.opacities[sc.OpacityKey] = idx
	}
	s.Contexts = append(s.Contexts, ctx)
	parent := f.context()
	parent.Entries = append(parent.Entries, Entry{Child: idx})
	f.stack = append(f.stack, idx)
	f.nodes = append(f.nodes, node)
	return nil
}

func (f *flattener) primitive(it display.Item) {
	var (
		m   prim.Metadata
		err error
	)
	switch it := it.(type) {
	case display.Rectangle:
		m = prim.EncodeRectangle(it)
	case display.Image:
		m = prim.EncodeImage(it)
	case display.Text:
		if len(it.Glyphs) == 0 {
			return
		}
		m = prim.EncodeText(it)
	case display.Border:
		m = prim.EncodeBorder(it)
	case display.Gradient:
		m, err = prim.EncodeGradient(it)
	case display.BoxShadow:
		m = prim.EncodeBoxShadow(it)
	default:
		return
	}
	if err == nil && m.LocalRect.Intersect(m.ClipRect).IsEmpty() {
		return
	}
	var idx prim.Index
	if err == nil {
		m.Node = f.node()
		idx, err = f.scene.Store.Add(m)
	}
	if err != nil {
		f.scene.Dropped++
		f.logger.Debug("frame: primitive dropped", "kind", it.Kind(), "err", err)
		return
	}
	ctx := f.context()
	ctx.Entries = append(ctx.Entries, Entry{Prim: idx, Child: -1})
}

// ErrUnknownProperty is returned for a property key the scene does not
// bind.
var ErrUnknownProperty = errors.New("frame: unknown property key")

// ApplyProperties updates animated transforms and opacities. Unknown
// keys are skipped and reported with ErrUnknownProperty after every
// known key has been applied.
func (s *Scene) ApplyProperties(p Properties) error {
	var unknown []display.PropertyKey
	for key, tr := range p.Transforms {
		node, ok := s.transforms[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if err := s.Tree.SetTransform(node, tr); err != nil {
			return err
		}
	}
	for key, v := range p.Opacities {
		idx, ok := s.opacities[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		s.Contexts[idx].Opacity = geom.Clamp(v, 0, 1)
	}
	if s.Tree.Dirty() {
		s.Tree.UpdateTransforms()
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownProperty, unknown)
	}
	return nil
}

// Release frees the GPU cache data of the scene's primitives.
func (s *Scene) Release(c *gpucache.Cache) {
	s.Store.Release(c)
}
