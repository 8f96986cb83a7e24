// Package prim holds the primitive store: the flat, indexed table of
// everything a scene draws, with each primitive's GPU data.
package prim

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/wr/cliptree"
	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
)

// ErrDataTooLarge is returned for GPU data that does not fit the largest
// slot.
var ErrDataTooLarge = errors.New("prim: gpu data too large")

// Kind tags a primitive.
type Kind uint8

const (
	Rectangle Kind = iota
	Image
	TextRun
	Border
	Gradient
	BoxShadow
	Picture
)

var kindNames = [...]string{"rectangle", "image", "text_run", "border", "gradient", "box_shadow", "picture"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Shader returns the program that draws primitives of kind k.
func (k Kind) Shader() device.ShaderKind {
	switch k {
	case Image:
		return device.ShaderImage
	case TextRun:
		return device.ShaderText
	case Border:
		return device.ShaderBorder
	case Gradient:
		return device.ShaderGradient
	case BoxShadow:
		return device.ShaderBoxShadow
	case Picture:
		return device.ShaderComposite
	}
	return device.ShaderRectangle
}

// Slot sizes in floats. GPU data is padded to the smallest that fits.
var slotFloats = [...]int{16, 32, 64, 128}

// SlotBlocks returns the padded block count for n blocks of data.
func SlotBlocks(n int) (int, error) {
	for _, f := range slotFloats {
		if n*4 <= f {
			return f / 4, nil
		}
	}
	return 0, fmt.Errorf("%w: %d blocks", ErrDataTooLarge, n)
}

// Index addresses a primitive in the store that created it. Indices of
// a replaced store never resolve.
type Index struct {
	index uint32
	epoch uint32
}

// Int returns the position of the primitive in paint order.
func (i Index) Int() int { return int(i.index) }

// ResourceKey names an external resource a primitive reads.
type ResourceKey struct {
	Image display.ImageKey
	Font  display.FontKey
}

// Metadata describes one primitive.
type Metadata struct {
	Kind      Kind
	LocalRect geom.Rect
	ClipRect  geom.Rect
	Node      cliptree.NodeID
	// Opaque is set when the primitive covers its rect without blending.
	Opaque bool
	// Source is the display item the primitive was flattened from; nil
	// for pictures.
	Source display.Item
	// Picture is the stacking context a Picture primitive composites.
	Picture   int
	Resources []ResourceKey

	// Data is padded to the slot size.
	Data []gpucache.Block
	GPU  gpucache.Handle
}

var storeEpochs atomic.Uint32

// Store owns the primitives of one scene. It is append-only; indices
// stay valid until the store is released.
type Store struct {
	epoch uint32
	prims []Metadata
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{epoch: storeEpochs.Add(1)}
}

// Add appends a primitive and returns its index.
func (s *Store) Add(m Metadata) (Index, error) {
	n, err := SlotBlocks(len(m.Data))
	if err != nil {
		return Index{}, err
	}
	if len(m.Data) < n {
		m.Data = append(m.Data, make([]gpucache.Block, n-len(m.Data))...)
	}
	m.GPU = gpucache.Handle{}
	s.prims = append(s.prims, m)
	return Index{index: uint32(len(s.prims) - 1), epoch: s.epoch}, nil
}

// Get returns the primitive at i, or nil for an index of another store.
func (s *Store) Get(i Index) *Metadata {
	if i.epoch != s.epoch || int(i.index) >= len(s.prims) {
		return nil
	}
	return &s.prims[i.index]
}

// Len returns the number of primitives.
func (s *Store) Len() int { return len(s.prims) }

// IndexAt returns the index of the n-th primitive in paint order.
func (s *Store) IndexAt(n int) Index {
	return Index{index: uint32(n), epoch: s.epoch}
}

// Prepare makes the GPU data of i resident and returns its address.
func (s *Store) Prepare(c *gpucache.Cache, i Index) (gpucache.Address, error) {
	m := s.Get(i)
	if m == nil {
		return gpucache.Address{}, fmt.Errorf("prim: stale index %d", i.index)
	}
	if addr, ok := c.Request(m.GPU); ok {
		return addr, nil
	}
	return c.Push(&m.GPU, m.Data...)
}

// Release frees every GPU cache handle of the store.
func (s *Store) Release(c *gpucache.Cache) {
	for i := range s.prims {
		c.Free(&s.prims[i].GPU)
	}
}
