package wr

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/frame"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/texcache"
)

// Renderer draws frames built by the backend. It must be used from the
// goroutine that owns the device.
type Renderer struct {
	log  *slog.Logger
	opts options
	dev  device.Device

	programs map[device.ShaderKind]device.ProgramID
	textures *texcache.Textures
	gpu      gpucache.Texture
	pending  gpucache.UpdateList
	targets  targetPool
	taskData dataTexture
	xfData   dataTexture

	current *frame.Frame
	fbSize  image.Point

	results   <-chan result
	quit      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewRenderer compiles the built-in shaders and starts the backend
// goroutine. A shader that fails to compile is fatal.
func NewRenderer(dev device.Device, opts ...Option) (*Renderer, *API, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}

	r := &Renderer{
		log:      log,
		opts:     o,
		dev:      dev,
		programs: make(map[device.ShaderKind]device.ProgramID),
		textures: texcache.NewTextures(),
	}
	for _, kind := range device.ShaderKinds() {
		id, err := dev.CompileProgram(kind, "")
		if err != nil {
			r.deletePrograms()
			return nil, nil, fmt.Errorf("wr: compile %v: %w", kind, err)
		}
		r.programs[kind] = id
	}

	maxSize := dev.MaxTextureSize()
	if o.maxTextureSize > 0 {
		maxSize = min(maxSize, o.maxTextureSize)
	}
	msgs := make(chan message, 64)
	results := make(chan result, o.frameQueue)
	r.results = results
	r.quit = make(chan struct{})
	r.finished = make(chan struct{})

	b := newBackend(o, maxSize, log)
	b.msgs, b.results, b.quit, b.finished = msgs, results, r.quit, r.finished
	go b.run()

	log.Info("wr: renderer started", "workers", o.workers, "max_texture_size", maxSize)
	return r, &API{msgs: msgs, done: r.quit}, nil
}

// Update applies everything the backend produced since the last call
// without blocking. Texture and GPU cache updates of every frame are
// applied in order, but only the newest frame becomes current. It
// reports whether a new frame became current; build failures are
// returned wrapped in ErrBuildFailed.
func (r *Renderer) Update() (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	var (
		errs   []error
		newest *frame.Frame
	)
drain:
	for {
		select {
		case res := <-r.results:
			if res.err != nil {
				errs = append(errs, res.err)
			}
			f := res.frame
			if f == nil {
				continue
			}
			r.pending.Merge(f.GPUUpdates)
			// A frame whose textures are incomplete is never drawn.
			if err := r.textures.Apply(r.dev, f.TextureUpdates); err != nil {
				errs = append(errs, err)
				continue
			}
			newest = f
		default:
			break drain
		}
	}
	if !r.pending.IsEmpty() {
		if err := r.gpu.Apply(r.dev, r.pending); err != nil {
			errs = append(errs, err)
		} else {
			r.pending = gpucache.UpdateList{}
		}
	}
	updated := false
	if newest != nil && (r.current == nil || newest.Generation > r.current.Generation) {
		if r.current != nil && newest.Generation > r.current.Generation+1 {
			r.log.Debug("wr: frames skipped", "from", r.current.Generation, "to", newest.Generation)
		}
		r.current = newest
		updated = true
	}
	return updated, errors.Join(errs...)
}

// Generation returns the generation of the current frame, or 0.
func (r *Renderer) Generation() uint64 {
	if r.current == nil {
		return 0
	}
	return r.current.Generation
}

// Frame returns the current frame, or nil.
func (r *Renderer) Frame() *frame.Frame { return r.current }

// Render draws the current frame to the framebuffer.
func (r *Renderer) Render() error {
	if r.closed {
		return ErrClosed
	}
	f := r.current
	if f == nil {
		return ErrNoFrame
	}
	if f.DeviceSize != r.fbSize {
		if err := r.dev.Resize(f.DeviceSize.X, f.DeviceSize.Y); err != nil {
			return fmt.Errorf("wr: resize framebuffer: %w", err)
		}
		r.fbSize = f.DeviceSize
	}
	if err := r.taskData.upload(r.dev, f.TaskData); err != nil {
		return fmt.Errorf("wr: task data: %w", err)
	}
	if err := r.xfData.upload(r.dev, f.TransformData); err != nil {
		return fmt.Errorf("wr: transform data: %w", err)
	}
	r.dev.BindTexture(device.SamplerGPUCache, r.gpu.ID)
	r.dev.BindTexture(device.SamplerRenderTasks, r.taskData.id)
	r.dev.BindTexture(device.SamplerTransforms, r.xfData.id)

	if r.opts.clearFramebuffer {
		if err := r.dev.Clear(device.Framebuffer, image.Rectangle{}, f.Background); err != nil {
			return fmt.Errorf("wr: clear framebuffer: %w", err)
		}
	}

	r.targets.begin()
	defer r.targets.end(r.dev)
	for i := range f.Passes {
		p := &f.Passes[i]
		for j := range p.ColorTargets {
			if err := r.drawOffscreen(p.Index, uint32(j), &p.ColorTargets[j]); err != nil {
				return err
			}
		}
		for j := range p.AlphaTargets {
			if err := r.drawOffscreen(p.Index, uint32(j), &p.AlphaTargets[j]); err != nil {
				return err
			}
		}
		if p.Framebuffer != nil {
			if err := r.dev.BindTarget(device.Framebuffer); err != nil {
				return err
			}
			if err := r.drawTarget(p.Framebuffer); err != nil {
				return fmt.Errorf("wr: pass %d framebuffer: %w", p.Index, err)
			}
		}
	}
	return nil
}

func targetFormat(k rendertask.TargetKind) device.TextureFormat {
	if k == rendertask.AlphaTarget {
		return device.FormatAlpha8
	}
	return device.FormatRGBA8
}

func (r *Renderer) drawOffscreen(pass int, index uint32, t *frame.TargetOutput) error {
	id, err := r.targets.acquire(r.dev, targetKey{pass: int32(pass), alpha: t.Kind == rendertask.AlphaTarget, index: index}, t.Size, targetFormat(t.Kind))
	if err != nil {
		return fmt.Errorf("wr: pass %d target: %w", pass, err)
	}
	if err := r.dev.BindTarget(id); err != nil {
		return err
	}
	if err := r.dev.Clear(id, image.Rectangle{}, geom.ColorF{}); err != nil {
		return err
	}
	for _, rect := range t.MaskRects {
		if err := r.dev.Clear(id, rect, geom.RGBA(1, 1, 1, 1)); err != nil {
			return err
		}
	}
	if err := r.drawTarget(t); err != nil {
		return fmt.Errorf("wr: pass %d %v target %d: %w", pass, t.Kind, index, err)
	}
	return nil
}

// drawTarget issues the batches of one bound target: clips, then blurs,
// then primitives.
func (r *Renderer) drawTarget(t *frame.TargetOutput) error {
	for _, list := range [][]*batch.Batch{t.ClipBatches, t.BlurBatches, t.AlphaBatches} {
		for _, b := range list {
			if err := r.drawBatch(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) drawBatch(b *batch.Batch) error {
	if len(b.Instances) == 0 {
		return nil
	}
	prog, ok := r.programs[b.Key.Shader]
	if !ok {
		return fmt.Errorf("%w: %v", device.ErrInvalidProgram, b.Key.Shader)
	}
	for s, src := range b.Key.Textures {
		id, err := r.resolve(src)
		if err != nil {
			return fmt.Errorf("batch %v: %w", b.Key, err)
		}
		r.dev.BindTexture(batch.Slots[s], id)
	}
	if err := r.dev.UploadInstances(b.Instances); err != nil {
		return err
	}
	return r.dev.Draw(prog, b.Key.Blend, device.QuadVertices, device.Range{Count: len(b.Instances)})
}

// resolve maps a batch texture source to the device texture behind it.
func (r *Renderer) resolve(src batch.TextureSource) (device.TextureID, error) {
	switch src.Kind {
	case batch.SourceInvalid:
		return 0, nil
	case batch.SourceCache:
		id, ok := r.textures.Lookup(texcache.TextureID(src.Index))
		if !ok {
			return 0, fmt.Errorf("%w: %v", device.ErrInvalidTexture, src)
		}
		return id, nil
	}
	key := targetKey{pass: src.Pass, alpha: src.Kind == batch.SourceAlphaTarget, index: src.Index}
	id, ok := r.targets.lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %v not drawn yet", device.ErrInvalidTexture, src)
	}
	return id, nil
}

// ReloadShader recompiles kind from source, or from the built-in shader
// when source is empty. On failure the previous program stays in use.
func (r *Renderer) ReloadShader(kind device.ShaderKind, source string) error {
	if r.closed {
		return ErrClosed
	}
	id, err := r.dev.CompileProgram(kind, source)
	if err != nil {
		r.log.Warn("wr: shader reload failed", "kind", kind, "err", err)
		return fmt.Errorf("wr: reload %v: %w", kind, err)
	}
	if old, ok := r.programs[kind]; ok {
		r.dev.DeleteProgram(old)
	}
	r.programs[kind] = id
	r.log.Info("wr: shader reloaded", "kind", kind)
	return nil
}

// ReadPixels returns premultiplied RGBA8 rows of the framebuffer. It is
// the only call that waits for the device.
func (r *Renderer) ReadPixels(rect image.Rectangle) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	return r.dev.ReadPixels(rect)
}

// Close stops the backend and releases every device object the renderer
// created. The device itself stays open.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
		<-r.finished
		r.textures.Release(r.dev)
		if r.gpu.ID != 0 {
			r.dev.DeleteTexture(r.gpu.ID)
		}
		r.taskData.release(r.dev)
		r.xfData.release(r.dev)
		r.targets.release(r.dev)
		r.deletePrograms()
		r.current = nil
		r.closed = true
		r.log.Info("wr: renderer closed")
	})
}

func (r *Renderer) deletePrograms() {
	for kind, id := range r.programs {
		r.dev.DeleteProgram(id)
		delete(r.programs, kind)
	}
}
