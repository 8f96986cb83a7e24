// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package soft is a CPU implementation of device.Device.
//
// Every program is a Go function that reads the same data textures and
// instance records a GPU shader would, so frames rendered here are the
// reference for pixel tests. Sampling is nearest-texel at pixel centres
// and edges are not antialiased.
package soft

import (
	"fmt"
	"image"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/geom"
)

// DefaultMaxTextureSize is the texture size limit when none is given.
const DefaultMaxTextureSize = 8192

// Option configures a Device.
type Option func(*Device)

// WithMaxTextureSize sets the largest texture edge.
func WithMaxTextureSize(n int) Option {
	return func(d *Device) { d.maxSize = n }
}

// WithLogger sets the logger for device diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// Device renders on the CPU.
type Device struct {
	maxSize  int
	log      *slog.Logger
	textures map[device.TextureID]*texture
	nextTex  device.TextureID
	programs map[device.ProgramID]device.ShaderKind
	nextProg device.ProgramID

	target    device.TextureID
	bound     [device.NumSamplers]device.TextureID
	instances []device.Instance
	closed    bool

	// Stats.
	draws int
}

var _ device.Device = (*Device)(nil)

// New returns a device with a width x height framebuffer.
func New(width, height int, opts ...Option) *Device {
	d := &Device{
		maxSize:  DefaultMaxTextureSize,
		log:      slog.New(slog.DiscardHandler),
		textures: make(map[device.TextureID]*texture),
		programs: make(map[device.ProgramID]device.ShaderKind),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.textures[device.Framebuffer] = newTexture(width, height, device.FormatRGBA8, true)
	return d
}

// MaxTextureSize implements device.Device.
func (d *Device) MaxTextureSize() int { return d.maxSize }

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(width, height int, format device.TextureFormat, renderTarget bool) (device.TextureID, error) {
	if d.closed {
		return 0, device.ErrClosed
	}
	if err := device.CheckFormat(format); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 || width > d.maxSize || height > d.maxSize {
		return 0, fmt.Errorf("%w: %dx%d", device.ErrTextureTooBig, width, height)
	}
	d.nextTex++
	d.textures[d.nextTex] = newTexture(width, height, format, renderTarget)
	return d.nextTex, nil
}

func (d *Device) lookup(id device.TextureID) (*texture, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", device.ErrInvalidTexture, id)
	}
	return t, nil
}

// UpdateTexture implements device.Device.
func (d *Device) UpdateTexture(id device.TextureID, rect image.Rectangle, pixels []byte) error {
	t, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !rect.In(t.bounds()) {
		return fmt.Errorf("soft: update %v outside texture %d %v", rect, id, t.bounds())
	}
	if want := rect.Dx() * rect.Dy() * t.format.BytesPerPixel(); len(pixels) != want {
		return fmt.Errorf("soft: update of texture %d: got %d bytes, want %d", id, len(pixels), want)
	}
	t.upload(rect, pixels)
	return nil
}

// CopyTexture implements device.Device.
func (d *Device) CopyTexture(dst device.TextureID, dstPt image.Point, src device.TextureID, srcRect image.Rectangle) error {
	dt, err := d.lookup(dst)
	if err != nil {
		return err
	}
	st, err := d.lookup(src)
	if err != nil {
		return err
	}
	if dt.format != st.format {
		return fmt.Errorf("soft: copy %v texture into %v", st.format, dt.format)
	}
	dt.copyFrom(dstPt, st, srcRect.Intersect(st.bounds()))
	return nil
}

// DeleteTexture implements device.Device. The framebuffer cannot be
// deleted.
func (d *Device) DeleteTexture(id device.TextureID) {
	if id == device.Framebuffer {
		return
	}
	delete(d.textures, id)
}

// CompileProgram implements device.Device. Only the built-in programs
// exist; any source text is rejected.
func (d *Device) CompileProgram(kind device.ShaderKind, source string) (device.ProgramID, error) {
	if d.closed {
		return 0, device.ErrClosed
	}
	if kind >= device.ShaderKind(len(device.ShaderKinds())) {
		return 0, fmt.Errorf("%w: unknown shader %v", device.ErrShaderCompile, kind)
	}
	if source != "" {
		return 0, fmt.Errorf("%w: %v: soft device runs built-in programs only", device.ErrShaderCompile, kind)
	}
	d.nextProg++
	d.programs[d.nextProg] = kind
	return d.nextProg, nil
}

// DeleteProgram implements device.Device.
func (d *Device) DeleteProgram(id device.ProgramID) { delete(d.programs, id) }

// BindTarget implements device.Device.
func (d *Device) BindTarget(target device.TextureID) error {
	t, err := d.lookup(target)
	if err != nil {
		return err
	}
	if !t.target || t.format == device.FormatRGBAF32 {
		return fmt.Errorf("soft: texture %d is not a render target", target)
	}
	d.target = target
	return nil
}

// BindTexture implements device.Device.
func (d *Device) BindTexture(slot device.Sampler, id device.TextureID) {
	if slot < device.NumSamplers {
		d.bound[slot] = id
	}
}

// UploadInstances implements device.Device.
func (d *Device) UploadInstances(instances []device.Instance) error {
	d.instances = append(d.instances[:0], instances...)
	return nil
}

func (d *Device) sampler(slot device.Sampler) *texture {
	if d.bound[slot] == 0 {
		return nil
	}
	return d.textures[d.bound[slot]]
}

// Draw implements device.Device. Every instance covers its own quad, so
// the vertex range is ignored.
func (d *Device) Draw(program device.ProgramID, blend device.BlendMode, _, instances device.Range) error {
	kind, ok := d.programs[program]
	if !ok {
		return fmt.Errorf("%w: %d", device.ErrInvalidProgram, program)
	}
	if instances.Start < 0 || instances.Start+instances.Count > len(d.instances) {
		return fmt.Errorf("soft: instance range %v outside %d uploaded", instances, len(d.instances))
	}
	dst, err := d.lookup(d.target)
	if err != nil {
		return err
	}
	s := &drawState{
		dst:        dst,
		cache:      d.sampler(device.SamplerGPUCache),
		tasks:      d.sampler(device.SamplerRenderTasks),
		transforms: d.sampler(device.SamplerTransforms),
		color0:     d.sampler(device.SamplerColor0),
		color1:     d.sampler(device.SamplerColor1),
		mask:       d.sampler(device.SamplerMask),
		blend:      blend,
	}
	for _, inst := range d.instances[instances.Start : instances.Start+instances.Count] {
		s.shade(kind, inst)
	}
	d.draws++
	return nil
}

// Clear implements device.Device.
func (d *Device) Clear(target device.TextureID, rect image.Rectangle, c geom.ColorF) error {
	t, err := d.lookup(target)
	if err != nil {
		return err
	}
	if rect.Empty() {
		rect = t.bounds()
	}
	rect = rect.Intersect(t.bounds())
	v := color{c.R, c.G, c.B, c.A}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			t.store(x, y, v)
		}
	}
	return nil
}

// Resize implements device.Device. The overlapping part of the old
// framebuffer is kept.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 || width > d.maxSize || height > d.maxSize {
		return fmt.Errorf("%w: %dx%d", device.ErrTextureTooBig, width, height)
	}
	old := d.textures[device.Framebuffer]
	fb := newTexture(width, height, device.FormatRGBA8, true)
	xdraw.Copy(fb.rgba, image.Point{}, old.rgba, old.bounds(), xdraw.Src, nil)
	d.textures[device.Framebuffer] = fb
	return nil
}

// ReadPixels implements device.Device.
func (d *Device) ReadPixels(rect image.Rectangle) ([]byte, error) {
	img, err := d.Snapshot(rect)
	if err != nil {
		return nil, err
	}
	return img.Pix, nil
}

// Snapshot copies rect of the framebuffer into a new image.
func (d *Device) Snapshot(rect image.Rectangle) (*image.RGBA, error) {
	fb := d.textures[device.Framebuffer]
	if !rect.In(fb.bounds()) {
		return nil, fmt.Errorf("soft: read %v outside framebuffer %v", rect, fb.bounds())
	}
	img := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(img, image.Point{}, fb.rgba, rect, xdraw.Src, nil)
	return img, nil
}

// Draws returns the number of Draw calls issued so far.
func (d *Device) Draws() int { return d.draws }

// Textures returns the number of live textures, the framebuffer
// included.
func (d *Device) Textures() int { return len(d.textures) }

// Close implements device.Device.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.log.Debug("soft: closed", "textures", len(d.textures), "draws", d.draws)
	clear(d.textures)
	d.textures[device.Framebuffer] = newTexture(1, 1, device.FormatRGBA8, true)
}
