package frame

import (
	"image"
	"log/slog"
	"math"

	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/parallel"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/texcache"
)

// Resources resolves images and glyphs to texture cache entries,
// regenerating entries that were evicted. Every returned entry must have
// been touched in the current frame.
type Resources interface {
	Image(key display.ImageKey) (texcache.Entry, bool)
	Glyph(font display.FontKey, size float32, index uint32) (Glyph, bool)
}

// Glyph is a rasterised glyph in the texture cache.
type Glyph struct {
	Entry texcache.Entry
	// Origin is the offset of the bitmap's top-left corner from the pen
	// position, in pixels.
	Origin geom.Point
}

// DefaultTargetSize is the edge length of offscreen render targets.
const DefaultTargetSize = 2048

// Config configures a Builder.
type Config struct {
	// Debug panics on internal invariant violations.
	Debug      bool
	SubpixelAA bool
	// TargetSize bounds offscreen targets; zero selects DefaultTargetSize.
	TargetSize int
	Logger     *slog.Logger
}

// Builder builds frames. It owns the CPU side of the GPU cache and the
// texture cache for the duration of a build and must be used from one
// goroutine.
type Builder struct {
	cfg        Config
	log        *slog.Logger
	gpu        *gpucache.Cache
	textures   *texcache.Cache
	res        Resources
	pool       *parallel.WorkerPool
	frameID    texcache.FrameID
	generation uint64
}

// NewBuilder returns a builder. pool may be nil to cull on the calling
// goroutine.
func NewBuilder(cfg Config, gpu *gpucache.Cache, textures *texcache.Cache, res Resources, pool *parallel.WorkerPool) *Builder {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = DefaultTargetSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{cfg: cfg, log: cfg.Logger, gpu: gpu, textures: textures, res: res, pool: pool}
}

// Generation returns the generation of the last built frame.
func (b *Builder) Generation() uint64 { return b.generation }

// Build produces the frame for the current state of scene.
//
// Primitives whose resources cannot be made resident are dropped for
// this frame only. A build error leaves the texture and GPU cache update
// lists pending for the next successful build.
func (b *Builder) Build(scene *Scene) (*Frame, error) {
	b.frameID++
	b.gpu.BeginFrame()
	b.textures.BeginFrame(b.frameID)
	if scene.Tree.Dirty() {
		scene.Tree.UpdateTransforms()
	}

	fs := &frameState{
		b:     b,
		scene: scene,
		vis:   b.cull(scene),
		graph: rendertask.NewGraph(b.cfg.Debug, b.log),
	}
	fs.identityLayer = int32(scene.Tree.Len())

	viewport := scene.Tree.Viewport().RoundOut()
	root := fs.graph.Add(rendertask.Task{
		Kind:     rendertask.Picture,
		Location: rendertask.Location{Fixed: true, Rect: viewport},
	})
	fs.emitContext(0, root)

	size := image.Pt(b.cfg.TargetSize, b.cfg.TargetSize)
	passes, err := fs.graph.AssignPasses(root, size)
	if err != nil {
		return nil, err
	}

	b.generation++
	f := fs.assemble(passes, viewport.Size())
	f.Generation = b.generation
	f.Background = scene.Background
	f.Dropped += scene.Dropped
	f.TextureUpdates = b.textures.TakeUpdates()
	f.GPUUpdates = b.gpu.TakeUpdates()
	if f.Dropped > 0 {
		b.log.Debug("frame: primitives dropped", "generation", f.Generation, "count", f.Dropped)
	}
	return f, nil
}

// worldScale approximates the scale factor of a transform.
func worldScale(t geom.Transform) float32 {
	det := float64(t.A*t.E - t.B*t.D)
	return float32(max(math.Sqrt(math.Abs(det)), 1e-3))
}
