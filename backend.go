package wr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/wr/frame"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/parallel"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/texcache"
)

// Notifier receives backend events. Methods are called on the backend
// goroutine.
type Notifier interface {
	// NewFrameReady reports that a frame is waiting for Renderer.Update.
	NewFrameReady(generation uint64)
	// BuildFailed reports a message the backend could not apply. The
	// previous frame stays current.
	BuildFailed(err error)
}

// result is a backend reply: a frame, an error, or both once queued
// results have been folded together.
type result struct {
	frame *frame.Frame
	err   error
}

// backend owns the scene and every CPU-side cache. It runs on its own
// goroutine and only talks to the renderer through results.
type backend struct {
	log      *slog.Logger
	opts     options
	msgs     <-chan message
	results  chan result
	quit     <-chan struct{}
	finished chan<- struct{}

	gpu      *gpucache.Cache
	textures *texcache.Cache
	res      *resource.Cache
	pool     *parallel.WorkerPool
	builder  *frame.Builder
	scene    *frame.Scene
}

func newBackend(opts options, maxTextureSize int, log *slog.Logger) *backend {
	b := &backend{
		log:  log,
		opts: opts,
		gpu:  gpucache.New(gpucache.DefaultMaxRows),
		textures: texcache.New(texcache.Config{
			InitialSize: opts.atlasSize,
			MaxSize:     min(maxTextureSize, texcache.DefaultMaxSize),
			Logger:      log,
		}),
	}
	b.res = resource.New(b.textures, resource.Config{Logger: log})
	if opts.workers > 1 {
		b.pool = parallel.NewWorkerPool(opts.workers)
	}
	b.builder = frame.NewBuilder(frame.Config{
		Debug:      opts.debug,
		SubpixelAA: opts.subpixelAA,
		TargetSize: min(maxTextureSize, frame.DefaultTargetSize),
		Logger:     log,
	}, b.gpu, b.textures, b.res, b.pool)
	return b
}

func (b *backend) run() {
	defer close(b.finished)
	defer func() {
		if b.pool != nil {
			b.pool.Close()
		}
	}()
	for {
		select {
		case m := <-b.msgs:
			m.apply(b)
		case <-b.quit:
			return
		}
	}
}

// reply hands r to the renderer. When the frame queue is full the queued
// results are folded into r, so the backend never waits for Update.
func (b *backend) reply(r result) {
	if r.err != nil {
		r.err = fmt.Errorf("%w: %w", ErrBuildFailed, r.err)
		b.log.Warn("wr: build failed", "err", r.err)
	}
	select {
	case b.results <- r:
	default:
		b.coalesce(r)
	}
	if n := b.opts.notifier; n != nil {
		if r.err != nil {
			n.BuildFailed(r.err)
		} else {
			n.NewFrameReady(r.frame.Generation)
		}
	}
}

// coalesce replaces everything still queued with a single result ending
// in r. Only the backend sends on results, so the queue has room for it.
func (b *backend) coalesce(r result) {
	var queued []result
drain:
	for {
		select {
		case q := <-b.results:
			queued = append(queued, q)
		default:
			break drain
		}
	}
	merged := foldResults(append(queued, r))
	b.log.Debug("wr: frame queue full, results folded", "results", len(queued)+1)
	select {
	case b.results <- merged:
	case <-b.quit:
	}
}

// foldResults merges rs, oldest first. The newest frame survives and
// carries the cache updates of the frames it replaces; errors are joined.
func foldResults(rs []result) result {
	var (
		out  result
		errs []error
	)
	for _, r := range rs {
		if r.err != nil {
			errs = append(errs, r.err)
		}
		if r.frame == nil {
			continue
		}
		if out.frame != nil {
			r.frame.Supersede(out.frame)
		}
		out.frame = r.frame
	}
	out.err = errors.Join(errs...)
	return out
}

func (b *backend) fail(err error) { b.reply(result{err: err}) }

func (m setDisplayList) apply(b *backend) {
	scene, err := frame.Flatten(m.list, frame.FlattenOptions{
		Viewport:         geom.R(0, 0, m.viewport.W, m.viewport.H),
		DevicePixelRatio: b.opts.devicePixelRatio,
		Background:       b.opts.clearColor.Premultiplied(),
		Logger:           b.log,
	})
	if err != nil {
		b.fail(err)
		return
	}
	if old := b.scene; old != nil {
		scene.Tree.RestoreScrollOffsets(old.Tree.ScrollOffsets())
		old.Release(b.gpu)
	}
	b.scene = scene
	b.log.Debug("wr: scene set", "items", len(m.list.Items), "nodes", scene.Tree.Len(), "dropped", scene.Dropped)
}

func (m scrollTo) apply(b *backend) {
	if b.scene != nil {
		b.scene.Tree.ScrollTo(m.id, m.offset)
	}
}

func (m scroll) apply(b *backend) {
	if b.scene != nil {
		b.scene.Tree.Scroll(m.delta, m.cursor)
	}
}

func (m updateProperties) apply(b *backend) {
	if b.scene == nil {
		b.fail(ErrNoDisplayList)
		return
	}
	if err := b.scene.ApplyProperties(m.props); err != nil {
		b.fail(err)
	}
}

func (m addImage) apply(b *backend) {
	var err error
	if m.update {
		err = b.res.UpdateImage(m.key, m.desc, m.pixels)
	} else {
		err = b.res.AddImage(m.key, m.desc, m.pixels)
	}
	if err != nil {
		b.fail(err)
	}
}

func (m deleteImage) apply(b *backend) {
	if err := b.res.DeleteImage(m.key); err != nil {
		b.fail(err)
	}
}

func (m addFont) apply(b *backend) {
	if err := b.res.AddFont(m.key, m.data); err != nil {
		b.fail(err)
	}
}

func (m deleteFont) apply(b *backend) {
	if err := b.res.DeleteFont(m.key); err != nil {
		b.fail(err)
	}
}

func (generateFrame) apply(b *backend) {
	if b.scene == nil {
		b.fail(ErrNoDisplayList)
		return
	}
	f, err := b.builder.Build(b.scene)
	if err != nil {
		b.fail(err)
		return
	}
	st := f.Stats()
	b.log.Debug("wr: frame built",
		"generation", f.Generation,
		"tasks", st.Tasks,
		"passes", st.Passes,
		"batches", st.Batches,
		"instances", st.Instances)
	b.reply(result{frame: f})
}

func (m flush) apply(*backend) { close(m.done) }
