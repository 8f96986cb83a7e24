// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucache stores per-primitive shader parameters in a row
// oriented data texture.
//
// Data is written in blocks of four float32. Every row holds
// MaxVertexTextureWidth blocks and serves one size class, a power of two
// number of blocks per slot, so freed slots are reused without moving
// anything else. Addresses therefore never change until the cache is
// cleared. Rows touched since the last flush are tracked so uploads cost
// O(dirty rows).
package gpucache

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/gogpu/wr/device"
)

// MaxVertexTextureWidth is the number of blocks per row.
const MaxVertexTextureWidth = device.DataTextureWidth

// DefaultMaxRows bounds the texture height when no device limit is given.
const DefaultMaxRows = 8192

const (
	minCapacityRows = 64
	numClasses      = 11 // 1 to MaxVertexTextureWidth blocks per slot
)

var (
	// ErrFull is returned when a push needs a row beyond the maximum
	// texture height.
	ErrFull = errors.New("gpucache: cache texture is full")

	// ErrTooLarge is returned for pushes wider than one row.
	ErrTooLarge = errors.New("gpucache: data larger than a cache row")
)

// Block is one texel of the cache texture.
type Block [4]float32

// Address locates a block: U is the column, V the row.
type Address struct {
	U, V uint16
}

// Pack encodes the address as a linear texel index for instance records.
func (a Address) Pack() int32 { return int32(a.V)*MaxVertexTextureWidth + int32(a.U) }

// Offset returns the address n blocks further along the row.
func (a Address) Offset(n int) Address { return Address{U: a.U + uint16(n), V: a.V} }

// Unpack is the inverse of Pack.
func Unpack(p int32) Address {
	return Address{U: uint16(p % MaxVertexTextureWidth), V: uint16(p / MaxVertexTextureWidth)}
}

// Handle refers to data owned by a primitive or clip. The zero Handle has
// never been pushed.
type Handle struct {
	slot  uint32 // 1-based index into Cache.slots
	epoch uint32
}

// IsZero reports whether h was never pushed.
func (h Handle) IsZero() bool { return h.slot == 0 }

type slot struct {
	addr   Address
	class  int // blocks per slot, a power of two
	epoch  uint32
	live   bool
	stale  bool
	length int // blocks written
}

type row struct {
	class  int
	blocks [MaxVertexTextureWidth]Block
}

// Cache is the CPU side of the GPU cache. It is owned by the frame
// building goroutine.
type Cache struct {
	maxRows int
	rows    []*row
	slots   []slot
	free    [numClasses][]uint32 // slot ids by log2(class)

	transient    []uint32
	nextEpoch    uint32
	generation   uint32
	frame        uint64
	capacity     int // texture height in rows
	needsRealloc bool
	dirty        dirtyRows
}

// New creates an empty cache that never grows beyond maxRows rows.
// maxRows <= 0 selects DefaultMaxRows.
func New(maxRows int) *Cache {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Cache{maxRows: maxRows, nextEpoch: 1, generation: 1}
}

// Generation changes on every Clear. Handles from an older generation
// are never resident.
func (c *Cache) Generation() uint32 { return c.generation }

// Frame returns the number of BeginFrame calls.
func (c *Cache) Frame() uint64 { return c.frame }

// BeginFrame releases the transient blocks of the previous frame.
func (c *Cache) BeginFrame() {
	c.frame++
	for _, id := range c.transient {
		c.release(id)
	}
	c.transient = c.transient[:0]
}

// Request returns the address of h if its data is resident in the
// current generation. A false result means the caller must Push again
// before referencing the data.
func (c *Cache) Request(h Handle) (Address, bool) {
	s := c.lookup(h)
	if s == nil || s.stale {
		return Address{}, false
	}
	return s.addr, true
}

// Push writes blocks for h, reusing h's slot when it is large enough.
// The returned address stays valid until h is invalidated, freed or the
// cache is cleared.
func (c *Cache) Push(h *Handle, blocks ...Block) (Address, error) {
	if len(blocks) == 0 {
		return Address{}, fmt.Errorf("gpucache: push of zero blocks")
	}
	if s := c.lookup(*h); s != nil {
		if len(blocks) <= s.class {
			c.write(s, blocks)
			return s.addr, nil
		}
		c.release(h.slot)
	}

	id, err := c.allocate(len(blocks))
	if err != nil {
		*h = Handle{}
		return Address{}, err
	}
	s := &c.slots[id-1]
	c.write(s, blocks)
	*h = Handle{slot: id, epoch: s.epoch}
	return s.addr, nil
}

// PushBlock appends a single block valid for the current frame.
func (c *Cache) PushBlock(b Block) (Address, error) {
	return c.PushTransient(b)
}

// PushTransient stores blocks that live until the next BeginFrame.
func (c *Cache) PushTransient(blocks ...Block) (Address, error) {
	var h Handle
	addr, err := c.Push(&h, blocks...)
	if err != nil {
		return Address{}, err
	}
	c.transient = append(c.transient, h.slot)
	return addr, nil
}

// Invalidate marks h's data as needing a re-push. Its address is kept so
// the re-push lands in place.
func (c *Cache) Invalidate(h Handle) {
	if s := c.lookup(h); s != nil {
		s.stale = true
	}
}

// Free releases h's slot for reuse and zeroes h.
func (c *Cache) Free(h *Handle) {
	if c.lookup(*h) != nil {
		c.release(h.slot)
	}
	*h = Handle{}
}

// Clear evicts everything. All handles become stale and the next upload
// reallocates the texture.
func (c *Cache) Clear() {
	c.generation++
	c.rows = c.rows[:0]
	c.slots = c.slots[:0]
	for i := range c.free {
		c.free[i] = c.free[i][:0]
	}
	c.transient = c.transient[:0]
	c.dirty = dirtyRows{}
	c.capacity = 0
	c.needsRealloc = true
}

// Read returns a copy of n blocks starting at addr.
func (c *Cache) Read(addr Address, n int) []Block {
	if int(addr.V) >= len(c.rows) || int(addr.U)+n > MaxVertexTextureWidth {
		return nil
	}
	out := make([]Block, n)
	copy(out, c.rows[addr.V].blocks[addr.U:int(addr.U)+n])
	return out
}

// Rows returns the number of rows in use.
func (c *Cache) Rows() int { return len(c.rows) }

// DirtyRows returns the number of rows waiting for upload.
func (c *Cache) DirtyRows() int { return c.dirty.count() }

func (c *Cache) lookup(h Handle) *slot {
	if h.slot == 0 || int(h.slot) > len(c.slots) {
		return nil
	}
	s := &c.slots[h.slot-1]
	if !s.live || s.epoch != h.epoch {
		return nil
	}
	return s
}

func (c *Cache) write(s *slot, blocks []Block) {
	r := c.rows[s.addr.V]
	copy(r.blocks[s.addr.U:], blocks)
	s.length = len(blocks)
	s.stale = false
	c.dirty.mark(int(s.addr.V))
}

func (c *Cache) release(id uint32) {
	s := &c.slots[id-1]
	if !s.live {
		return
	}
	s.live = false
	s.epoch = 0
	cls := bits.TrailingZeros(uint(s.class))
	c.free[cls] = append(c.free[cls], id)
}

func (c *Cache) allocate(n int) (uint32, error) {
	if n > MaxVertexTextureWidth {
		return 0, fmt.Errorf("%w: %d blocks", ErrTooLarge, n)
	}
	class := 1 << bits.Len(uint(n-1))
	cls := bits.TrailingZeros(uint(class))

	if len(c.free[cls]) == 0 {
		if err := c.addRow(class); err != nil {
			return 0, err
		}
	}
	free := c.free[cls]
	id := free[len(free)-1]
	c.free[cls] = free[:len(free)-1]

	s := &c.slots[id-1]
	s.live = true
	s.stale = false
	s.epoch = c.nextEpoch
	c.nextEpoch++
	return id, nil
}

func (c *Cache) addRow(class int) error {
	if len(c.rows) >= c.maxRows {
		return fmt.Errorf("%w: %d rows", ErrFull, c.maxRows)
	}
	v := len(c.rows)
	c.rows = append(c.rows, &row{class: class})
	cls := bits.TrailingZeros(uint(class))
	// Free lists pop from the back; push high columns first so a fresh
	// row fills left to right.
	for u := MaxVertexTextureWidth - class; u >= 0; u -= class {
		c.slots = append(c.slots, slot{
			addr:  Address{U: uint16(u), V: uint16(v)},
			class: class,
		})
		c.free[cls] = append(c.free[cls], uint32(len(c.slots)))
	}

	if len(c.rows) > c.capacity {
		c.capacity = min(max(minCapacityRows, c.capacity*2), c.maxRows)
		c.needsRealloc = true
	}
	return nil
}
