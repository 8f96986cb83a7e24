// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texcache manages the shared texture atlases that hold images,
// glyphs and cached render results.
//
// Each format (Alpha8, RGBA8) has a list of atlas layers. An allocation
// tries every layer, then grows the newest layer up to the device's
// maximum texture size, then opens a new layer, and finally evicts the
// least recently used evictable entries. Entries touched in the current
// frame are never evicted, so everything a frame references stays put
// until the frame is done.
//
// The cache never talks to the device. It records texture updates that
// the renderer applies before drawing the frame that produced them.
package texcache

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/internal/atlas"
	"github.com/gogpu/wr/internal/lru"
)

var (
	// ErrOutOfSpace is returned when an allocation fails after eviction.
	ErrOutOfSpace = errors.New("texcache: out of space")

	// ErrInvalidHandle is returned for freed or evicted handles.
	ErrInvalidHandle = errors.New("texcache: invalid handle")

	// ErrSizeMismatch is returned when uploaded pixels do not match the entry.
	ErrSizeMismatch = errors.New("texcache: pixel data size mismatch")
)

// FrameID identifies a frame for LRU bookkeeping.
type FrameID uint64

// TextureID names an atlas texture. The renderer maps it to a device
// texture when it applies the update list.
type TextureID uint32

// Handle refers to a cache entry.
type Handle struct {
	id    uint32 // 1-based index into Cache.entries
	epoch uint32
}

// IsZero reports whether h was never allocated.
func (h Handle) IsZero() bool { return h.id == 0 }

// Entry describes a live allocation.
type Entry struct {
	Texture   TextureID
	Rect      image.Rectangle
	Format    device.TextureFormat
	LastUsed  FrameID
	Evictable bool
}

// Config sizes the cache.
type Config struct {
	// InitialSize is the edge length of a new layer.
	InitialSize int
	// MaxSize is the largest edge length a layer may grow to, normally the
	// device's maximum texture size.
	MaxSize int
	// MaxLayers bounds the number of layers per format.
	MaxLayers int
	// Padding is left around every entry.
	Padding int
	Logger  *slog.Logger
}

// Defaults used for zero Config fields.
const (
	DefaultInitialSize = 512
	DefaultMaxSize     = 2048
	DefaultMaxLayers   = 4
)

type layer struct {
	texture TextureID
	format  device.TextureFormat
	alloc   *atlas.Allocator
}

type entry struct {
	layer     *layer
	rect      image.Rectangle
	lastUsed  FrameID
	evictable bool
	epoch     uint32
	live      bool
	node      *lru.Node[uint32]
}

// Stats counts cache activity since creation.
type Stats struct {
	Live        int
	Layers      int
	Allocations int
	Evictions   int
	Grows       int
}

// Cache is the texture cache. It is owned by the frame building goroutine.
type Cache struct {
	cfg     Config
	log     *slog.Logger
	layers  map[device.TextureFormat][]*layer
	entries []entry
	freeIDs []uint32
	recency lru.List[uint32]

	frame       FrameID
	nextTexture TextureID
	nextEpoch   uint32
	updates     []Update
	stats       Stats
}

// New creates an empty cache.
func New(cfg Config) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.InitialSize <= 0 {
		cfg.InitialSize = DefaultInitialSize
	}
	cfg.InitialSize = min(cfg.InitialSize, cfg.MaxSize)
	if cfg.MaxLayers <= 0 {
		cfg.MaxLayers = DefaultMaxLayers
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		cfg:       cfg,
		log:       log,
		layers:    make(map[device.TextureFormat][]*layer),
		nextEpoch: 1,
	}
}

// BeginFrame starts frame id. Entries touched from now on are protected
// from eviction until the next BeginFrame.
func (c *Cache) BeginFrame(id FrameID) { c.frame = id }

// Frame returns the current frame id.
func (c *Cache) Frame() FrameID { return c.frame }

// Allocate reserves a width x height rectangle of format. The new entry
// counts as used in the current frame. evictable marks content that can
// be regenerated after eviction.
func (c *Cache) Allocate(width, height int, format device.TextureFormat, evictable bool) (Handle, error) {
	if err := device.CheckFormat(format); err != nil {
		return Handle{}, err
	}
	if width <= 0 || height <= 0 {
		return Handle{}, fmt.Errorf("texcache: invalid size %dx%d", width, height)
	}
	if width+c.cfg.Padding > c.cfg.MaxSize || height+c.cfg.Padding > c.cfg.MaxSize {
		return Handle{}, fmt.Errorf("%w: %dx%d exceeds max texture size %d", ErrOutOfSpace, width, height, c.cfg.MaxSize)
	}

	if l, r, ok := c.tryLayers(width, height, format); ok {
		return c.insert(l, r, evictable), nil
	}
	if l, r, ok := c.tryGrow(width, height, format); ok {
		return c.insert(l, r, evictable), nil
	}
	if l, r, ok := c.tryNewLayer(width, height, format); ok {
		return c.insert(l, r, evictable), nil
	}
	if l, r, ok := c.tryEvict(width, height, format); ok {
		return c.insert(l, r, evictable), nil
	}
	return Handle{}, fmt.Errorf("%w: %dx%d %v", ErrOutOfSpace, width, height, format)
}

func (c *Cache) tryLayers(w, h int, format device.TextureFormat) (*layer, image.Rectangle, bool) {
	for _, l := range c.layers[format] {
		if r, ok := l.alloc.Allocate(w, h); ok {
			return l, r, true
		}
	}
	return nil, image.Rectangle{}, false
}

func (c *Cache) tryGrow(w, h int, format device.TextureFormat) (*layer, image.Rectangle, bool) {
	layers := c.layers[format]
	if len(layers) == 0 {
		return nil, image.Rectangle{}, false
	}
	l := layers[len(layers)-1]
	for {
		size := l.alloc.Size()
		if size.X >= c.cfg.MaxSize && size.Y >= c.cfg.MaxSize {
			return nil, image.Rectangle{}, false
		}
		grown := image.Pt(min(size.X*2, c.cfg.MaxSize), min(size.Y*2, c.cfg.MaxSize))
		l.alloc.Grow(grown.X, grown.Y)
		c.updates = append(c.updates, Update{Op: OpGrow, Texture: l.texture, Format: format, Size: grown})
		c.stats.Grows++
		c.log.Debug("texcache: grew layer", "texture", l.texture, "format", format, "size", grown)
		if r, ok := l.alloc.Allocate(w, h); ok {
			return l, r, true
		}
	}
}

func (c *Cache) tryNewLayer(w, h int, format device.TextureFormat) (*layer, image.Rectangle, bool) {
	if len(c.layers[format]) >= c.cfg.MaxLayers {
		return nil, image.Rectangle{}, false
	}
	size := c.cfg.InitialSize
	for size < max(w, h)+c.cfg.Padding && size < c.cfg.MaxSize {
		size = min(size*2, c.cfg.MaxSize)
	}
	c.nextTexture++
	l := &layer{
		texture: c.nextTexture,
		format:  format,
		alloc:   atlas.New(size, size, c.cfg.Padding),
	}
	c.layers[format] = append(c.layers[format], l)
	c.updates = append(c.updates, Update{Op: OpCreate, Texture: l.texture, Format: format, Size: image.Pt(size, size)})
	c.stats.Layers++
	r, ok := l.alloc.Allocate(w, h)
	return l, r, ok
}

// tryEvict frees entries in least recently used order until the request
// fits. It stops at the first entry used in the current frame: everything
// after it in the recency list was used at least as recently.
func (c *Cache) tryEvict(w, h int, format device.TextureFormat) (*layer, image.Rectangle, bool) {
	n := c.recency.Back()
	for n != nil {
		id := n.Key
		e := &c.entries[id-1]
		n = n.Newer()
		if e.lastUsed >= c.frame {
			break
		}
		if !e.evictable || e.layer.format != format {
			continue
		}
		l := e.layer
		c.log.Debug("texcache: evict", "texture", l.texture, "rect", e.rect, "last_used", e.lastUsed)
		c.remove(id)
		c.stats.Evictions++
		if r, ok := l.alloc.Allocate(w, h); ok {
			return l, r, true
		}
	}
	return nil, image.Rectangle{}, false
}

func (c *Cache) insert(l *layer, r image.Rectangle, evictable bool) Handle {
	var id uint32
	if n := len(c.freeIDs); n > 0 {
		id = c.freeIDs[n-1]
		c.freeIDs = c.freeIDs[:n-1]
	} else {
		c.entries = append(c.entries, entry{})
		id = uint32(len(c.entries))
	}
	epoch := c.nextEpoch
	c.nextEpoch++
	c.entries[id-1] = entry{
		layer:     l,
		rect:      r,
		lastUsed:  c.frame,
		evictable: evictable,
		epoch:     epoch,
		live:      true,
		node:      c.recency.PushFront(id),
	}
	c.stats.Allocations++
	return Handle{id: id, epoch: epoch}
}

func (c *Cache) lookup(h Handle) *entry {
	if h.id == 0 || int(h.id) > len(c.entries) {
		return nil
	}
	e := &c.entries[h.id-1]
	if !e.live || e.epoch != h.epoch {
		return nil
	}
	return e
}

func (c *Cache) remove(id uint32) {
	e := &c.entries[id-1]
	e.layer.alloc.Free(e.rect)
	c.recency.Remove(e.node)
	*e = entry{}
	c.freeIDs = append(c.freeIDs, id)
}

// Free releases h. The space is reused lazily.
func (c *Cache) Free(h Handle) {
	if c.lookup(h) != nil {
		c.remove(h.id)
	}
}

// Touch marks h as used in the current frame. It must be called for
// every entry a frame reads, otherwise the entry may be evicted while the
// frame still needs it. Touch reports false for evicted handles.
func (c *Cache) Touch(h Handle) bool {
	e := c.lookup(h)
	if e == nil {
		return false
	}
	e.lastUsed = c.frame
	c.recency.MoveToFront(e.node)
	return true
}

// Get returns the entry for h. A false result after eviction is a cache
// miss: the owner must allocate and upload the content again.
func (c *Cache) Get(h Handle) (Entry, bool) {
	e := c.lookup(h)
	if e == nil {
		return Entry{}, false
	}
	return Entry{
		Texture:   e.layer.texture,
		Rect:      e.rect,
		Format:    e.layer.format,
		LastUsed:  e.lastUsed,
		Evictable: e.evictable,
	}, true
}

// Upload queues pixels for h's rectangle. pixels must hold exactly
// width*height texels of the entry's format.
func (c *Cache) Upload(h Handle, pixels []byte) error {
	e := c.lookup(h)
	if e == nil {
		return ErrInvalidHandle
	}
	want := e.rect.Dx() * e.rect.Dy() * e.layer.format.BytesPerPixel()
	if len(pixels) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(pixels), want)
	}
	c.updates = append(c.updates, Update{
		Op:      OpUpload,
		Texture: e.layer.texture,
		Format:  e.layer.format,
		Rect:    e.rect,
		Data:    pixels,
	})
	return nil
}

// Clear frees every entry and deletes every layer.
func (c *Cache) Clear() {
	for format, layers := range c.layers {
		for _, l := range layers {
			c.updates = append(c.updates, Update{Op: OpDelete, Texture: l.texture, Format: format})
		}
	}
	c.layers = make(map[device.TextureFormat][]*layer)
	c.entries = c.entries[:0]
	c.freeIDs = c.freeIDs[:0]
	c.recency.Clear()
	c.stats.Layers = 0
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Live = len(c.entries) - len(c.freeIDs)
	return s
}
