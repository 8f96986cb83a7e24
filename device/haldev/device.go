// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package haldev implements device.Device on top of the wgpu HAL.
//
// Each Draw records one render pass into the bound target and is
// submitted at once. Transient objects of a submission (its bind group,
// uniform buffer and replaced instance buffers) are released once the
// queue reports the submission complete.
package haldev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/geom"
)

// ErrNoHAL is returned by NewFromProvider when the provider does not
// expose HAL objects.
var ErrNoHAL = errors.New("haldev: provider does not expose a HAL device")

// copyPitchAlignment is the row alignment of texture to buffer copies.
const copyPitchAlignment = 256

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger for device diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithMaxTextureSize caps the texture edge below the adapter limit.
func WithMaxTextureSize(n int) Option {
	return func(d *Device) { d.maxSize = n }
}

// Device drives a hal.Device and its queue.
type Device struct {
	dev     hal.Device
	queue   hal.Queue
	log     *slog.Logger
	maxSize int

	textures map[device.TextureID]*texture
	nextTex  device.TextureID
	programs map[device.ProgramID]*program
	nextProg device.ProgramID

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[pipelineKey]hal.RenderPipeline

	// Bound to sampler slots with nothing bound.
	blankColor *texture
	blankData  *texture

	target    device.TextureID
	bound     [device.NumSamplers]device.TextureID
	instances hal.Buffer
	uploaded  int

	pending []submission
	garbage garbage
	closed  bool
}

// submission holds what a submitted command buffer still references.
type submission struct {
	index uint64
	cmd   hal.CommandBuffer
	garbage
}

type garbage struct {
	groups   []hal.BindGroup
	buffers  []hal.Buffer
	textures []*texture
}

var _ device.Device = (*Device)(nil)

// New wraps dev and queue with a width x height framebuffer.
func New(dev hal.Device, queue hal.Queue, width, height int, opts ...Option) (*Device, error) {
	d := &Device{
		dev:       dev,
		queue:     queue,
		log:       slog.New(slog.DiscardHandler),
		maxSize:   int(gputypes.DefaultLimits().MaxTextureDimension2D),
		textures:  make(map[device.TextureID]*texture),
		programs:  make(map[device.ProgramID]*program),
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.createLayouts(); err != nil {
		return nil, err
	}
	var err error
	if d.blankColor, err = d.newTexture("wr_blank_color", 1, 1, device.FormatRGBA8, false); err != nil {
		return nil, fmt.Errorf("haldev: create placeholder: %w", err)
	}
	if d.blankData, err = d.newTexture("wr_blank_data", 1, 1, device.FormatRGBAF32, false); err != nil {
		return nil, fmt.Errorf("haldev: create placeholder: %w", err)
	}
	fb, err := d.newTexture("wr_framebuffer", width, height, device.FormatRGBA8, true)
	if err != nil {
		return nil, fmt.Errorf("haldev: create framebuffer: %w", err)
	}
	d.textures[device.Framebuffer] = fb
	d.log.Debug("haldev: device ready", "width", width, "height", height, "max_texture", d.maxSize)
	return d, nil
}

// NewFromProvider takes the HAL device and queue of a provider that
// exposes them through HalDevice and HalQueue.
func NewFromProvider(provider gpucontext.DeviceProvider, width, height int, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return New(dev, queue, width, height, opts...)
}

// MaxTextureSize implements device.Device.
func (d *Device) MaxTextureSize() int { return d.maxSize }

func (d *Device) lookup(id device.TextureID) (*texture, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", device.ErrInvalidTexture, id)
	}
	return t, nil
}

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
	if renderTarget && format == device.FormatRGBAF32 {
		return 0, fmt.Errorf("%w: %v render target", device.ErrInvalidFormat, format)
	}
	t, err := d.newTexture(fmt.Sprintf("wr_texture_%d", d.nextTex+1), width, height, format, renderTarget)
	if err != nil {
		return 0, fmt.Errorf("haldev: create texture: %w", err)
	}
	d.nextTex++
	d.textures[d.nextTex] = t
	return d.nextTex, nil
}

// UpdateTexture implements device.Device.
func (d *Device) UpdateTexture(id device.TextureID, rect image.Rectangle, pixels []byte) error {
	t, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !rect.In(t.bounds()) {
		return fmt.Errorf("haldev: update %v outside texture %d %v", rect, id, t.bounds())
	}
	if want := rect.Dx() * rect.Dy() * t.format.BytesPerPixel(); len(pixels) != want {
		return fmt.Errorf("haldev: update of texture %d: got %d bytes, want %d", id, len(pixels), want)
	}
	if rect.Empty() {
		return nil
	}
	return d.write(t, rect, pixels)
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
		return fmt.Errorf("haldev: copy %v texture into %v", st.format, dt.format)
	}
	srcRect = srcRect.Intersect(st.bounds())
	dr := image.Rectangle{Min: dstPt, Max: dstPt.Add(srcRect.Size())}.Intersect(dt.bounds())
	if dr.Empty() {
		return nil
	}
	srcRect.Min = srcRect.Min.Add(dr.Min.Sub(dstPt))
	return d.encode("wr_copy", func(enc hal.CommandEncoder) {
		enc.CopyTextureToTexture(st.tex, dt.tex, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{
				Texture: st.tex,
				Origin:  hal.Origin3D{X: uint32(srcRect.Min.X), Y: uint32(srcRect.Min.Y)},
				Aspect:  gputypes.TextureAspectAll,
			},
			DstBase: hal.ImageCopyTexture{
				Texture: dt.tex,
				Origin:  hal.Origin3D{X: uint32(dr.Min.X), Y: uint32(dr.Min.Y)},
				Aspect:  gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: uint32(dr.Dx()), Height: uint32(dr.Dy()), DepthOrArrayLayers: 1},
		}})
	}, garbage{})
}

// DeleteTexture implements device.Device. The framebuffer cannot be
// deleted. The HAL texture is released once earlier submissions finish.
func (d *Device) DeleteTexture(id device.TextureID) {
	t, ok := d.textures[id]
	if !ok || id == device.Framebuffer {
		return
	}
	delete(d.textures, id)
	d.garbage.textures = append(d.garbage.textures, t)
}

// CompileProgram implements device.Device. A non-empty source replaces
// the fragment stage of kind and is translated with naga, so errors are
// reported before the driver sees the module.
func (d *Device) CompileProgram(kind device.ShaderKind, source string) (device.ProgramID, error) {
	if d.closed {
		return 0, device.ErrClosed
	}
	wgsl, err := Source(kind, source)
	if err != nil {
		return 0, err
	}
	desc := &hal.ShaderModuleDescriptor{Label: "wr_" + kind.String()}
	if source == "" {
		desc.Source.WGSL = wgsl
	} else {
		spirv, err := compileSPIRV(wgsl)
		if err != nil {
			return 0, fmt.Errorf("%w: %v: %w", device.ErrShaderCompile, kind, err)
		}
		desc.Source.SPIRV = spirv
	}
	module, err := d.dev.CreateShaderModule(desc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v: %w", device.ErrShaderCompile, kind, err)
	}
	d.nextProg++
	d.programs[d.nextProg] = &program{kind: kind, module: module}
	return d.nextProg, nil
}

// DeleteProgram implements device.Device.
func (d *Device) DeleteProgram(id device.ProgramID) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	d.flush()
	d.destroyProgram(id, p)
	delete(d.programs, id)
}

// BindTarget implements device.Device.
func (d *Device) BindTarget(target device.TextureID) error {
	t, err := d.lookup(target)
	if err != nil {
		return err
	}
	if !t.target {
		return fmt.Errorf("haldev: texture %d is not a render target", target)
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

// UploadInstances implements device.Device. Every upload gets a fresh
// vertex buffer; the previous one is released with the next submission.
func (d *Device) UploadInstances(instances []device.Instance) error {
	if d.closed {
		return device.ErrClosed
	}
	if d.instances != nil {
		d.garbage.buffers = append(d.garbage.buffers, d.instances)
		d.instances = nil
	}
	d.uploaded = len(instances)
	if len(instances) == 0 {
		return nil
	}
	data := device.AppendInstances(make([]byte, 0, len(instances)*device.InstanceSize), instances)
	buf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "wr_instances",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("haldev: create instance buffer: %w", err)
	}
	if err := d.queue.WriteBuffer(buf, 0, data); err != nil {
		d.dev.DestroyBuffer(buf)
		return fmt.Errorf("haldev: write instances: %w", err)
	}
	d.instances = buf
	return nil
}

// view returns the texture bound at slot, or a placeholder.
func (d *Device) view(slot device.Sampler) *texture {
	if id := d.bound[slot]; id != 0 {
		if t, ok := d.textures[id]; ok {
			return t
		}
	}
	switch slot {
	case device.SamplerGPUCache, device.SamplerRenderTasks, device.SamplerTransforms:
		return d.blankData
	}
	return d.blankColor
}

// flags encodes the per-draw uniform block.
func (d *Device) flags(target *texture) []byte {
	var alphaTarget, alphaSources uint32
	if target.format == device.FormatAlpha8 {
		alphaTarget = 1
	}
	for i, slot := range []device.Sampler{device.SamplerColor0, device.SamplerColor1, device.SamplerMask} {
		if d.view(slot).format == device.FormatAlpha8 {
			alphaSources |= 1 << i
		}
	}
	b := make([]byte, 0, flagsSize)
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(target.width)))
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(target.height)))
	b = binary.LittleEndian.AppendUint32(b, alphaTarget)
	b = binary.LittleEndian.AppendUint32(b, alphaSources)
	return b
}

// Draw implements device.Device.
func (d *Device) Draw(id device.ProgramID, blend device.BlendMode, vertices, instances device.Range) error {
	p, ok := d.programs[id]
	if !ok {
		return fmt.Errorf("%w: %d", device.ErrInvalidProgram, id)
	}
	if instances.Start < 0 || instances.Start+instances.Count > d.uploaded {
		return fmt.Errorf("haldev: instance range %v outside %d uploaded", instances, d.uploaded)
	}
	if instances.Count == 0 {
		return nil
	}
	target, err := d.lookup(d.target)
	if err != nil {
		return err
	}
	pipe, err := d.pipeline(id, p, blend, target.format)
	if err != nil {
		return err
	}

	flagsBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "wr_flags",
		Size:  flagsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("haldev: create uniform buffer: %w", err)
	}
	if err := d.queue.WriteBuffer(flagsBuf, 0, d.flags(target)); err != nil {
		d.dev.DestroyBuffer(flagsBuf)
		return fmt.Errorf("haldev: write uniforms: %w", err)
	}
	entries := make([]gputypes.BindGroupEntry, 0, numTextureBindings+1)
	for i := range numTextureBindings {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.TextureViewBinding{TextureView: d.view(device.Sampler(i)).view.NativeHandle()},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  flagsBinding,
		Resource: gputypes.BufferBinding{Buffer: flagsBuf.NativeHandle(), Size: flagsSize},
	})
	group, err := d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "wr_bind_group",
		Layout:  d.bindLayout,
		Entries: entries,
	})
	if err != nil {
		d.dev.DestroyBuffer(flagsBuf)
		return fmt.Errorf("haldev: create bind group: %w", err)
	}

	w, h := uint32(target.width), uint32(target.height)
	return d.encode("wr_draw", func(enc hal.CommandEncoder) {
		pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "wr_" + p.kind.String(),
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		pass.SetPipeline(pipe)
		pass.SetBindGroup(0, group, nil)
		pass.SetVertexBuffer(0, d.instances, 0)
		pass.SetViewport(0, 0, float32(w), float32(h), 0, 1)
		pass.SetScissorRect(0, 0, w, h)
		pass.Draw(uint32(vertices.Count), uint32(instances.Count), uint32(vertices.Start), uint32(instances.Start))
		pass.End()
	}, garbage{groups: []hal.BindGroup{group}, buffers: []hal.Buffer{flagsBuf}})
}

// Clear implements device.Device. Whole render targets are cleared by a
// render pass; partial rects are written through the queue.
func (d *Device) Clear(target device.TextureID, rect image.Rectangle, c geom.ColorF) error {
	t, err := d.lookup(target)
	if err != nil {
		return err
	}
	if rect.Empty() {
		rect = t.bounds()
	}
	rect = rect.Intersect(t.bounds())
	if rect.Empty() {
		return nil
	}
	if rect != t.bounds() || !t.target {
		return d.write(t, rect, fill(t.format, c, rect.Dx()*rect.Dy()))
	}
	return d.encode("wr_clear", func(enc hal.CommandEncoder) {
		pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "wr_clear",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       t.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)},
			}},
		})
		pass.End()
	}, garbage{})
}

// Resize implements device.Device. The overlapping part of the old
// framebuffer is kept.
func (d *Device) Resize(width, height int) error {
	if d.closed {
		return device.ErrClosed
	}
	if width <= 0 || height <= 0 || width > d.maxSize || height > d.maxSize {
		return fmt.Errorf("%w: %dx%d", device.ErrTextureTooBig, width, height)
	}
	old := d.textures[device.Framebuffer]
	fb, err := d.newTexture("wr_framebuffer", width, height, device.FormatRGBA8, true)
	if err != nil {
		return fmt.Errorf("haldev: resize framebuffer: %w", err)
	}
	d.textures[device.Framebuffer] = fb
	if err := d.Clear(device.Framebuffer, image.Rectangle{}, geom.ColorF{}); err != nil {
		return err
	}
	keep := old.bounds().Intersect(fb.bounds())
	err = d.encode("wr_resize", func(enc hal.CommandEncoder) {
		enc.CopyTextureToTexture(old.tex, fb.tex, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{Texture: old.tex, Aspect: gputypes.TextureAspectAll},
			DstBase: hal.ImageCopyTexture{Texture: fb.tex, Aspect: gputypes.TextureAspectAll},
			Size:    hal.Extent3D{Width: uint32(keep.Dx()), Height: uint32(keep.Dy()), DepthOrArrayLayers: 1},
		}})
	}, garbage{textures: []*texture{old}})
	return err
}

// ReadPixels implements device.Device. It waits for the GPU.
func (d *Device) ReadPixels(rect image.Rectangle) ([]byte, error) {
	if d.closed {
		return nil, device.ErrClosed
	}
	fb := d.textures[device.Framebuffer]
	if !rect.In(fb.bounds()) {
		return nil, fmt.Errorf("haldev: read %v outside framebuffer %v", rect, fb.bounds())
	}
	if rect.Empty() {
		return nil, nil
	}
	bytesPerRow := uint32(rect.Dx() * 4)
	aligned := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(aligned) * uint64(rect.Dy())
	staging, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "wr_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("haldev: create staging buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(staging)

	err = d.encode("wr_readback", func(enc hal.CommandEncoder) {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: fb.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		enc.CopyTextureToBuffer(fb.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: aligned, RowsPerImage: uint32(rect.Dy())},
			TextureBase: hal.ImageCopyTexture{
				Texture: fb.tex,
				Origin:  hal.Origin3D{X: uint32(rect.Min.X), Y: uint32(rect.Min.Y)},
				Aspect:  gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: uint32(rect.Dx()), Height: uint32(rect.Dy()), DepthOrArrayLayers: 1},
		}})
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: fb.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
	}, garbage{})
	if err != nil {
		return nil, err
	}
	if err := d.dev.WaitIdle(); err != nil {
		return nil, fmt.Errorf("haldev: wait for GPU: %w", err)
	}
	d.retire()

	mapping, err := d.dev.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("haldev: map staging buffer: %w", err)
	}
	mapped := unsafe.Slice((*byte)(mapping.Ptr), size)
	out := make([]byte, 0, int(bytesPerRow)*rect.Dy())
	for row := range rect.Dy() {
		off := row * int(aligned)
		out = append(out, mapped[off:off+int(bytesPerRow)]...)
	}
	if err := d.dev.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("haldev: unmap staging buffer: %w", err)
	}
	return out, nil
}

// encode records one command buffer with fn and submits it. g is
// released together with everything deleted since the last submission
// once the GPU is done with it.
func (d *Device) encode(label string, fn func(hal.CommandEncoder), g garbage) error {
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		d.release(g)
		return fmt.Errorf("haldev: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		d.release(g)
		return fmt.Errorf("haldev: begin encoding: %w", err)
	}
	fn(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		d.release(g)
		return fmt.Errorf("haldev: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.dev.FreeCommandBuffer(cmd)
		d.release(g)
		return fmt.Errorf("haldev: submit: %w", err)
	}
	g.groups = append(g.groups, d.garbage.groups...)
	g.buffers = append(g.buffers, d.garbage.buffers...)
	g.textures = append(g.textures, d.garbage.textures...)
	d.garbage = garbage{}
	d.pending = append(d.pending, submission{index: index, cmd: cmd, garbage: g})
	d.retire()
	return nil
}

// retire frees submissions the queue has completed.
func (d *Device) retire() {
	done := d.queue.PollCompleted()
	n := 0
	for _, s := range d.pending {
		if s.index > done {
			d.pending[n] = s
			n++
			continue
		}
		d.dev.FreeCommandBuffer(s.cmd)
		d.release(s.garbage)
	}
	clear(d.pending[n:])
	d.pending = d.pending[:n]
}

func (d *Device) release(g garbage) {
	for _, bg := range g.groups {
		d.dev.DestroyBindGroup(bg)
	}
	for _, b := range g.buffers {
		d.dev.DestroyBuffer(b)
	}
	for _, t := range g.textures {
		d.destroyTexture(t)
	}
}

// flush waits for all submitted work and frees it.
func (d *Device) flush() {
	if len(d.pending) == 0 {
		return
	}
	if err := d.dev.WaitIdle(); err != nil {
		d.log.Warn("haldev: wait idle", "err", err)
	}
	d.retire()
}

// Pending returns the number of submissions not yet retired.
func (d *Device) Pending() int { return len(d.pending) }

// Close implements device.Device. The HAL device and queue stay owned by
// the caller.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if err := d.dev.WaitIdle(); err != nil {
		d.log.Warn("haldev: wait idle", "err", err)
	}
	d.retire()
	d.release(d.garbage)
	d.garbage = garbage{}
	for id, p := range d.programs {
		d.destroyProgram(id, p)
	}
	clear(d.programs)
	for _, t := range d.textures {
		d.destroyTexture(t)
	}
	clear(d.textures)
	if d.instances != nil {
		d.dev.DestroyBuffer(d.instances)
		d.instances = nil
	}
	d.destroyTexture(d.blankColor)
	d.destroyTexture(d.blankData)
	d.dev.DestroyPipelineLayout(d.pipeLayout)
	d.dev.DestroyBindGroupLayout(d.bindLayout)
	d.log.Debug("haldev: closed")
}
