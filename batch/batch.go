// Package batch groups draw instances into batches that share a program,
// blend mode and texture bindings.
package batch

import (
	"fmt"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/geom"
)

// SourceKind tells where a bound texture comes from.
type SourceKind uint8

const (
	// SourceInvalid leaves a slot unbound; it is compatible with any
	// source.
	SourceInvalid SourceKind = iota
	// SourceCache is a texture cache layer; Index is its texcache id.
	SourceCache
	// SourceColorTarget and SourceAlphaTarget are render targets of an
	// earlier pass.
	SourceColorTarget
	SourceAlphaTarget
)

// TextureSource identifies a texture without naming a device object;
// the renderer resolves it when the frame is drawn.
type TextureSource struct {
	Kind  SourceKind
	Pass  int32
	Index uint32
}

func (s TextureSource) String() string {
	switch s.Kind {
	case SourceInvalid:
		return "none"
	case SourceCache:
		return fmt.Sprintf("cache#%d", s.Index)
	case SourceColorTarget:
		return fmt.Sprintf("color@%d#%d", s.Pass, s.Index)
	}
	return fmt.Sprintf("alpha@%d#%d", s.Pass, s.Index)
}

// TextureSet holds the sources bound to SamplerColor0, SamplerColor1 and
// SamplerMask.
type TextureSet [3]TextureSource

// Slots maps TextureSet entries to device samplers.
var Slots = [3]device.Sampler{device.SamplerColor0, device.SamplerColor1, device.SamplerMask}

// CompatibleWith reports whether every slot is unbound in one set or
// equal in both.
func (t TextureSet) CompatibleWith(o TextureSet) bool {
	for i := range t {
		if t[i].Kind != SourceInvalid && o[i].Kind != SourceInvalid && t[i] != o[i] {
			return false
		}
	}
	return true
}

// Merge fills the unbound slots of t from o.
func (t TextureSet) Merge(o TextureSet) TextureSet {
	for i := range t {
		if t[i].Kind == SourceInvalid {
			t[i] = o[i]
		}
	}
	return t
}

// Key identifies the state a batch is drawn with.
type Key struct {
	Shader   device.ShaderKind
	Blend    device.BlendMode
	Textures TextureSet
}

// CompatibleWith reports whether instances of both keys can share one
// draw.
func (k Key) CompatibleWith(o Key) bool {
	return k.Shader == o.Shader && k.Blend == o.Blend && k.Textures.CompatibleWith(o.Textures)
}

func (k Key) String() string {
	return fmt.Sprintf("%v/%v[%v %v %v]", k.Shader, k.Blend, k.Textures[0], k.Textures[1], k.Textures[2])
}

// Batch is one instanced draw.
type Batch struct {
	Key       Key
	Instances []device.Instance
	bounds    geom.Rect
	rects     []geom.Rect
}

func (b *Batch) overlaps(r geom.Rect) bool {
	if !b.bounds.Intersects(r) {
		return false
	}
	for _, item := range b.rects {
		if item.Intersects(r) {
			return true
		}
	}
	return false
}

func (b *Batch) push(inst device.Instance, r geom.Rect) {
	b.Instances = append(b.Instances, inst)
	b.rects = append(b.rects, r)
	b.bounds = b.bounds.Union(r)
}

// DefaultLookback is how many batches AlphaBatcher searches backwards.
const DefaultLookback = 10

// AlphaBatcher batches blended primitives in paint order. An instance
// joins the most recent compatible batch unless a batch between that one
// and the end of the list overlaps it; then a new batch is opened.
type AlphaBatcher struct {
	Batches  []*Batch
	Lookback int
}

// NewAlphaBatcher returns an empty batcher.
func NewAlphaBatcher() *AlphaBatcher {
	return &AlphaBatcher{Lookback: DefaultLookback}
}

// Add appends an instance covering world rect r.
func (a *AlphaBatcher) Add(key Key, inst device.Instance, r geom.Rect) {
	stop := max(0, len(a.Batches)-a.Lookback)
	for i := len(a.Batches) - 1; i >= stop; i-- {
		b := a.Batches[i]
		if b.Key.CompatibleWith(key) {
			b.Key.Textures = b.Key.Textures.Merge(key.Textures)
			b.push(inst, r)
			return
		}
		if b.overlaps(r) {
			break
		}
	}
	b := &Batch{Key: key}
	b.push(inst, r)
	a.Batches = append(a.Batches, b)
}

// Len returns the number of batches.
func (a *AlphaBatcher) Len() int { return len(a.Batches) }

// grouped collects instances per exact key, for work whose draw order
// does not matter.
type grouped struct {
	Batches []*Batch
	index   map[Key]int
}

func (g *grouped) add(key Key, inst device.Instance) {
	if g.index == nil {
		g.index = make(map[Key]int)
	}
	i, ok := g.index[key]
	if !ok {
		i = len(g.Batches)
		g.index[key] = i
		g.Batches = append(g.Batches, &Batch{Key: key})
	}
	g.Batches[i].Instances = append(g.Batches[i].Instances, inst)
}

// ClipBatcher collects the clip instances of the mask tasks of one alpha
// target. Coverage is multiplied into the mask, so order is free.
type ClipBatcher struct{ grouped }

// AddRect adds a rect or rounded-rect clip instance.
func (c *ClipBatcher) AddRect(inst device.Instance) {
	c.add(Key{Shader: device.ShaderClipRect, Blend: device.BlendMultiply}, inst)
}

// AddImage adds an image-mask clip instance sampling mask.
func (c *ClipBatcher) AddImage(mask TextureSource, inst device.Instance) {
	c.add(Key{
		Shader:   device.ShaderClipImage,
		Blend:    device.BlendMultiply,
		Textures: TextureSet{mask},
	}, inst)
}

// BlurBatcher collects blur and shadow-profile instances of one target.
// Every blur task writes its own rect, so order is free.
type BlurBatcher struct{ grouped }

// AddBlur adds a Gaussian blur instance sampling source.
func (b *BlurBatcher) AddBlur(source TextureSource, inst device.Instance) {
	b.add(Key{Shader: device.ShaderBlur, Blend: device.BlendNone, Textures: TextureSet{source}}, inst)
}

// AddProfile adds an analytic box-shadow profile instance.
func (b *BlurBatcher) AddProfile(inst device.Instance) {
	b.add(Key{Shader: device.ShaderShadowProfile, Blend: device.BlendNone}, inst)
}
