// Package resource owns the CPU copies of images and fonts and keeps
// their texture cache entries alive. Evicted entries are regenerated on
// the next lookup, so the frame builder only ever sees a hit or a
// dropped primitive.
package resource

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/frame"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/internal/lru"
	"github.com/gogpu/wr/texcache"
)

var (
	// ErrUnknownImage is returned when updating or deleting an image
	// key that was never added.
	ErrUnknownImage = errors.New("resource: unknown image")
	// ErrUnknownFont is returned for operations on an unknown font key.
	ErrUnknownFont = errors.New("resource: unknown font")
	// ErrDuplicateKey is returned when adding a key that already exists.
	ErrDuplicateKey = errors.New("resource: duplicate key")
	// ErrInvalidImage is returned for descriptors whose pixel data does
	// not match the declared size and format.
	ErrInvalidImage = errors.New("resource: invalid image")
)

// ImageDescriptor describes the pixel layout of an image.
type ImageDescriptor struct {
	Width, Height int
	Format        device.TextureFormat
}

func (d ImageDescriptor) validate(pixels []byte) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, d.Width, d.Height)
	}
	if err := device.CheckFormat(d.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if want := d.Width * d.Height * d.Format.BytesPerPixel(); len(pixels) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidImage, len(pixels), want)
	}
	return nil
}

type imageEntry struct {
	desc   ImageDescriptor
	pixels []byte
	handle texcache.Handle
}

// DefaultGlyphCacheSize is the number of rasterised glyph bitmaps kept on
// the CPU side.
const DefaultGlyphCacheSize = 4096

// Config configures a Cache.
type Config struct {
	// GlyphCacheSize bounds the CPU glyph bitmap cache. Zero selects
	// DefaultGlyphCacheSize.
	GlyphCacheSize int
	Logger         *slog.Logger
}

// Cache implements frame.Resources over a texture cache.
type Cache struct {
	mu       sync.Mutex
	log      *slog.Logger
	textures *texcache.Cache
	images   map[display.ImageKey]*imageEntry
	fonts    map[display.FontKey]*Font

	// bitmaps survives texture eviction so that re-uploading a glyph
	// does not rasterise it again.
	bitmaps *lru.Cache[glyphKey, *bitmap]
	glyphs  map[glyphKey]texcache.Handle
}

var _ frame.Resources = (*Cache)(nil)

// New returns a resource cache uploading into textures.
func New(textures *texcache.Cache, cfg Config) *Cache {
	if cfg.GlyphCacheSize <= 0 {
		cfg.GlyphCacheSize = DefaultGlyphCacheSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		log:      log,
		textures: textures,
		images:   make(map[display.ImageKey]*imageEntry),
		fonts:    make(map[display.FontKey]*Font),
		bitmaps:  lru.NewCache[glyphKey, *bitmap](cfg.GlyphCacheSize),
		glyphs:   make(map[glyphKey]texcache.Handle),
	}
}

// AddImage registers pixels under key. The texture is allocated lazily
// on first use.
func (c *Cache) AddImage(key display.ImageKey, desc ImageDescriptor, pixels []byte) error {
	if err := desc.validate(pixels); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[key]; ok {
		return fmt.Errorf("%w: image %d", ErrDuplicateKey, key)
	}
	c.images[key] = &imageEntry{desc: desc, pixels: pixels}
	return nil
}

// UpdateImage replaces the pixels of key. A size or format change frees
// the old texture entry.
func (c *Cache) UpdateImage(key display.ImageKey, desc ImageDescriptor, pixels []byte) error {
	if err := desc.validate(pixels); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.images[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownImage, key)
	}
	if e.desc != desc {
		c.textures.Free(e.handle)
		e.handle = texcache.Handle{}
	} else if !e.handle.IsZero() {
		if err := c.textures.Upload(e.handle, pixels); err == nil {
			e.pixels = pixels
			return nil
		}
		e.handle = texcache.Handle{}
	}
	e.desc, e.pixels = desc, pixels
	return nil
}

// DeleteImage forgets key and frees its texture entry.
func (c *Cache) DeleteImage(key display.ImageKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.images[key]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownImage, key)
	}
	c.textures.Free(e.handle)
	delete(c.images, key)
	return nil
}

// Image returns the texture entry of key, uploading the CPU copy again if
// the entry was evicted. The entry is touched for the current frame.
func (c *Cache) Image(key display.ImageKey) (texcache.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.images[key]
	if !ok {
		return texcache.Entry{}, false
	}
	if !c.textures.Touch(e.handle) {
		h, err := c.upload(e.desc.Width, e.desc.Height, e.desc.Format, e.pixels)
		if err != nil {
			c.log.Warn("resource: image upload failed", "key", key, "err", err)
			return texcache.Entry{}, false
		}
		e.handle = h
	}
	return c.textures.Get(e.handle)
}

func (c *Cache) upload(w, h int, format device.TextureFormat, pixels []byte) (texcache.Handle, error) {
	hd, err := c.textures.Allocate(w, h, format, true)
	if err != nil {
		return texcache.Handle{}, err
	}
	if err := c.textures.Upload(hd, pixels); err != nil {
		c.textures.Free(hd)
		return texcache.Handle{}, err
	}
	c.textures.Touch(hd)
	return hd, nil
}

// AddFont parses data and registers it under key.
func (c *Cache) AddFont(key display.FontKey, data []byte) error {
	f, err := ParseFont(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fonts[key]; ok {
		return fmt.Errorf("%w: font %d", ErrDuplicateKey, key)
	}
	c.fonts[key] = f
	return nil
}

// DeleteFont forgets key together with its glyphs.
func (c *Cache) DeleteFont(key display.FontKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fonts[key]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFont, key)
	}
	delete(c.fonts, key)
	for k, h := range c.glyphs {
		if k.font == key {
			c.textures.Free(h)
			delete(c.glyphs, k)
		}
	}
	c.bitmaps.DeleteFunc(func(k glyphKey) bool { return k.font == key })
	return nil
}

// Font returns the parsed font registered under key.
func (c *Cache) Font(key display.FontKey) (*Font, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fonts[key]
	return f, ok
}

// Glyph returns the rasterised glyph index of font at size pixels per em.
// Blank glyphs report false.
func (c *Cache) Glyph(font display.FontKey, size float32, index uint32) (frame.Glyph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fonts[font]
	if !ok {
		return frame.Glyph{}, false
	}
	k := newGlyphKey(font, size, index)
	bm, err := c.bitmaps.GetOrCreate(k, func() (*bitmap, error) {
		return f.rasterize(index, k.ppem())
	})
	if err != nil {
		c.log.Debug("resource: glyph rasterisation failed", "font", font, "glyph", index, "err", err)
		return frame.Glyph{}, false
	}
	if bm.mask == nil {
		return frame.Glyph{}, false
	}
	h := c.glyphs[k]
	if !c.textures.Touch(h) {
		size := bm.mask.Rect.Size()
		h, err = c.upload(size.X, size.Y, device.FormatAlpha8, bm.mask.Pix)
		if err != nil {
			c.log.Warn("resource: glyph upload failed", "font", font, "glyph", index, "err", err)
			delete(c.glyphs, k)
			return frame.Glyph{}, false
		}
		c.glyphs[k] = h
	}
	e, ok := c.textures.Get(h)
	return frame.Glyph{Entry: e, Origin: bm.origin}, ok
}

// glyphKey quantises the size to 1/4 pixel.
type glyphKey struct {
	font  display.FontKey
	index uint32
	size  int32
}

func newGlyphKey(font display.FontKey, size float32, index uint32) glyphKey {
	return glyphKey{font: font, index: index, size: int32(size*4 + 0.5)}
}

func (k glyphKey) ppem() float32 { return float32(k.size) / 4 }

// bitmap is a rasterised glyph. A nil mask marks a blank glyph.
type bitmap struct {
	mask   *image.Alpha
	origin geom.Point
}
