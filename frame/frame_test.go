package frame

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/parallel"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/texcache"
)

// =============================================================================
// Helpers
// =============================================================================

type glyphKey struct {
	font  display.FontKey
	index uint32
}

type fakeResources struct {
	cache  *texcache.Cache
	images map[display.ImageKey]texcache.Handle
	glyphs map[glyphKey]texcache.Handle
}

func (r *fakeResources) addImage(t *testing.T, key display.ImageKey, w, h int) {
	t.Helper()
	hd, err := r.cache.Allocate(w, h, device.FormatRGBA8, true)
	if err != nil {
		t.Fatal(err)
	}
	r.images[key] = hd
}

func (r *fakeResources) Image(key display.ImageKey) (texcache.Entry, bool) {
	h, ok := r.images[key]
	if !ok || !r.cache.Touch(h) {
		return texcache.Entry{}, false
	}
	return r.cache.Get(h)
}

func (r *fakeResources) Glyph(font display.FontKey, size float32, index uint32) (Glyph, bool) {
	k := glyphKey{font, index}
	h, ok := r.glyphs[k]
	if !ok {
		var err error
		if h, err = r.cache.Allocate(8, 8, device.FormatAlpha8, true); err != nil {
			return Glyph{}, false
		}
		r.glyphs[k] = h
	}
	r.cache.Touch(h)
	e, ok := r.cache.Get(h)
	return Glyph{Entry: e, Origin: geom.Pt(0, -8)}, ok
}

func newTestBuilder(pool *parallel.WorkerPool) (*Builder, *fakeResources) {
	tc := texcache.New(texcache.Config{InitialSize: 256, MaxSize: 1024})
	res := &fakeResources{
		cache:  tc,
		images: make(map[display.ImageKey]texcache.Handle),
		glyphs: make(map[glyphKey]texcache.Handle),
	}
	return NewBuilder(Config{TargetSize: 512}, gpucache.New(0), tc, res, pool), res
}

var viewport = geom.R(0, 0, 100, 100)

func flatten(t *testing.T, b *display.Builder) *Scene {
	t.Helper()
	s, err := Flatten(b.Finalize(), FlattenOptions{Viewport: viewport})
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}
	return s
}

func build(t *testing.T, fb *Builder, s *Scene) *Frame {
	t.Helper()
	f, err := fb.Build(s)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return f
}

func checkPassOrdering(t *testing.T, f *Frame) {
	t.Helper()
	for i, task := range f.Tasks {
		if task.Pass < 0 {
			continue
		}
		for _, d := range task.Children {
			dep := f.Tasks[d]
			if task.Kind == rendertask.Alias {
				if dep.Pass != task.Pass {
					t.Errorf("alias %d in pass %d, aliased task in pass %d", i, task.Pass, dep.Pass)
				}
				continue
			}
			if dep.Pass >= task.Pass {
				t.Errorf("task %d (%v, pass %d) depends on task %d (%v, pass %d)",
					i, task.Kind, task.Pass, d, dep.Kind, dep.Pass)
			}
		}
	}
}

var (
	red  = geom.RGBA(1, 0, 0, 1)
	blue = geom.RGBA(0, 0, 1, 1)
)

// =============================================================================
// Scenarios
// =============================================================================

func TestTwoOpaqueRectsOneBatch(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushStackingContext(display.StackingContext{})
	db.PushRect(geom.R(0, 0, 20, 20), red)
	db.PushRect(geom.R(50, 50, 20, 20), blue)
	db.PopStackingContext()

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))

	if len(f.Passes) != 1 {
		t.Fatalf("len(Passes) = %d, want 1", len(f.Passes))
	}
	fbuf := f.Passes[0].Framebuffer
	if fbuf == nil || len(fbuf.AlphaBatches) != 1 {
		t.Fatalf("framebuffer batches = %v, want 1", fbuf)
	}
	b := fbuf.AlphaBatches[0]
	if len(b.Instances) != 2 {
		t.Errorf("batch has %d instances, want 2", len(b.Instances))
	}
	if b.Key.Shader != device.ShaderRectangle {
		t.Errorf("batch shader = %v, want rectangle", b.Key.Shader)
	}
	if b.Instances[0].Z >= b.Instances[1].Z {
		t.Errorf("z order = %d, %d, want increasing", b.Instances[0].Z, b.Instances[1].Z)
	}
}

func TestBlurredBoxShadowProfiles(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushBoxShadow(geom.R(0, 0, 80, 80), geom.R(20, 20, 40, 40), geom.Pt(0, 0), geom.Black, 4, 0, display.ShadowOutset)

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))

	if len(f.Passes) != 2 {
		t.Fatalf("len(Passes) = %d, want 2", len(f.Passes))
	}
	var h, v int
	for _, task := range f.Tasks {
		switch task.Kind {
		case rendertask.HorizontalBlur:
			h++
			if task.Pass != 0 {
				t.Errorf("horizontal profile in pass %d, want 0", task.Pass)
			}
		case rendertask.VerticalBlur:
			v++
			if task.Pass != 0 {
				t.Errorf("vertical profile in pass %d, want 0", task.Pass)
			}
		}
	}
	if h != 1 || v != 1 {
		t.Fatalf("blur tasks = %d horizontal, %d vertical, want 1, 1", h, v)
	}

	alpha := f.Passes[0].AlphaTargets
	if len(alpha) != 1 || len(alpha[0].BlurBatches) != 1 || len(alpha[0].BlurBatches[0].Instances) != 2 {
		t.Fatalf("pass 0 should hold one profile batch with two instances: %+v", alpha)
	}

	fbuf := f.Passes[1].Framebuffer
	if fbuf == nil || len(fbuf.AlphaBatches) != 1 {
		t.Fatal("pass 1 should composite the shadow into the framebuffer")
	}
	b := fbuf.AlphaBatches[0]
	if b.Key.Shader != device.ShaderBoxShadow {
		t.Errorf("composite shader = %v, want box_shadow", b.Key.Shader)
	}
	inst := b.Instances[0]
	if f.Tasks[inst.User0].Kind != rendertask.HorizontalBlur || f.Tasks[inst.User1].Kind != rendertask.VerticalBlur {
		t.Errorf("composite references tasks %d, %d", inst.User0, inst.User1)
	}
	want := batch.TextureSource{Kind: batch.SourceAlphaTarget, Pass: 0, Index: 0}
	if b.Key.Textures[0] != want || b.Key.Textures[1] != want {
		t.Errorf("composite textures = %v, want profile target", b.Key.Textures)
	}
	checkPassOrdering(t, f)
}

func TestUnbalancedListFailsFlatten(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushRect(geom.R(0, 0, 10, 10), red)
	db.PopStackingContext()
	if _, err := Flatten(db.Finalize(), FlattenOptions{Viewport: viewport}); !errors.Is(err, display.ErrUnbalanced) {
		t.Errorf("Flatten() error = %v, want ErrUnbalanced", err)
	}
}

// =============================================================================
// Properties
// =============================================================================

func complexScene(t *testing.T) *display.Builder {
	t.Helper()
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushRect(geom.R(0, 0, 100, 100), geom.White)
	db.PushStackingContext(display.StackingContext{Filters: []display.Filter{{Kind: display.FilterOpacity, Value: 0.5}}})
	db.PushClip(display.ClipRegion{Complex: []display.ComplexClip{{Rect: geom.R(10, 10, 60, 60), Radii: geom.UniformRadius(12)}}})
	db.PushRect(geom.R(0, 0, 80, 80), red)
	db.PushStackingContext(display.StackingContext{Filters: []display.Filter{{Kind: display.FilterBlur, Value: 2}}})
	db.PushRect(geom.R(30, 30, 20, 20), blue)
	db.PushBoxShadow(geom.R(20, 20, 60, 60), geom.R(30, 30, 30, 30), geom.Pt(2, 2), geom.Black, 3, 1, display.ShadowOutset)
	db.PopStackingContext()
	db.PopClip()
	db.PopStackingContext()
	db.PushText(geom.R(0, 80, 100, 20), 1, 12, geom.Black, []display.GlyphInstance{
		{Index: 1, Point: geom.Pt(5, 95)},
		{Index: 2, Point: geom.Pt(15, 95)},
	})
	return db
}

func frameShape(f *Frame) []string {
	var out []string
	add := func(prefix string, batches []*batch.Batch) {
		for _, b := range batches {
			out = append(out, prefix+b.Key.String())
		}
	}
	for _, p := range f.Passes {
		for _, tg := range p.ColorTargets {
			add("c:", tg.BlurBatches)
			add("c:", tg.AlphaBatches)
		}
		for _, tg := range p.AlphaTargets {
			add("a:", tg.ClipBatches)
			add("a:", tg.BlurBatches)
		}
		if p.Framebuffer != nil {
			add("f:", p.Framebuffer.AlphaBatches)
		}
	}
	return out
}

func equalShape(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildIsIdempotent(t *testing.T) {
	fb, _ := newTestBuilder(nil)
	s := flatten(t, complexScene(t))
	f1 := build(t, fb, s)
	f2 := build(t, fb, s)

	if f1.Stats() != f2.Stats() {
		t.Errorf("Stats() differ: %+v vs %+v", f1.Stats(), f2.Stats())
	}
	if a, b := frameShape(f1), frameShape(f2); !equalShape(a, b) {
		t.Errorf("batch keys differ:\n%v\n%v", a, b)
	}
	if f2.Generation != f1.Generation+1 {
		t.Errorf("generations = %d, %d", f1.Generation, f2.Generation)
	}
}

func TestParallelCullingMatchesSerial(t *testing.T) {
	pool := parallel.NewWorkerPool(4)
	defer pool.Close()

	serial, _ := newTestBuilder(nil)
	par, _ := newTestBuilder(pool)
	f1 := build(t, serial, flatten(t, complexScene(t)))
	f2 := build(t, par, flatten(t, complexScene(t)))
	if a, b := frameShape(f1), frameShape(f2); !equalShape(a, b) {
		t.Errorf("parallel build differs:\n%v\n%v", a, b)
	}
}

func TestPassOrderingComplexScene(t *testing.T) {
	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, complexScene(t)))
	checkPassOrdering(t, f)
	if f.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", f.Dropped)
	}
	last := f.Passes[len(f.Passes)-1]
	if last.Framebuffer == nil {
		t.Error("last pass does not draw the framebuffer")
	}
}

// =============================================================================
// Classification and culling
// =============================================================================

func TestOpacityUsesPictureTask(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushStackingContext(display.StackingContext{Filters: []display.Filter{{Kind: display.FilterOpacity, Value: 0.5}}})
	db.PushRect(geom.R(10, 10, 20, 20), red)
	db.PushRect(geom.R(15, 15, 20, 20), blue)
	db.PopStackingContext()

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))
	if len(f.Tasks) != 2 || f.Tasks[1].Kind != rendertask.Picture {
		t.Fatalf("tasks = %d, want root and one picture", len(f.Tasks))
	}
	if got := f.Tasks[1].Location.Rect.Size(); got != image.Pt(25, 25) {
		t.Errorf("picture size = %v, want content bounds (25,25)", got)
	}
	if len(f.Passes) != 2 {
		t.Fatalf("len(Passes) = %d, want 2", len(f.Passes))
	}
	if n := len(f.Passes[0].ColorTargets); n != 1 {
		t.Fatalf("pass 0 colour targets = %d, want 1", n)
	}
	comp := f.Passes[1].Framebuffer.AlphaBatches
	if len(comp) != 1 || comp[0].Key.Shader != device.ShaderComposite || len(comp[0].Instances) != 1 {
		t.Errorf("framebuffer should hold one composite instance, got %v", frameShape(f))
	}
}

func TestFilterBlurChain(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushStackingContext(display.StackingContext{Filters: []display.Filter{{Kind: display.FilterBlur, Value: 2}}})
	db.PushRect(geom.R(40, 40, 20, 20), red)
	db.PopStackingContext()

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))
	kinds := []rendertask.Kind{rendertask.Picture, rendertask.Picture, rendertask.HorizontalBlur, rendertask.VerticalBlur}
	if len(f.Tasks) != len(kinds) {
		t.Fatalf("len(Tasks) = %d, want %d", len(f.Tasks), len(kinds))
	}
	for i, k := range kinds {
		if f.Tasks[i].Kind != k {
			t.Errorf("task %d kind = %v, want %v", i, f.Tasks[i].Kind, k)
		}
	}
	if len(f.Passes) != 4 {
		t.Errorf("len(Passes) = %d, want 4", len(f.Passes))
	}
	// The picture is padded by three blur radii on each side.
	if got := f.Tasks[1].Location.Rect.Size(); got != image.Pt(32, 32) {
		t.Errorf("picture size = %v, want (32,32)", got)
	}
	comp := f.Passes[3].Framebuffer.AlphaBatches[0]
	if comp.Instances[0].User0 != 3 {
		t.Errorf("composite reads task %d, want the vertical blur", comp.Instances[0].User0)
	}
	checkPassOrdering(t, f)
}

func TestRoundedClipCreatesMask(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushClip(display.ClipRegion{Complex: []display.ComplexClip{{Rect: geom.R(0, 0, 50, 50), Radii: geom.UniformRadius(10)}}})
	db.PushRect(geom.R(0, 0, 50, 50), red)
	db.PopClip()

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))
	if len(f.Tasks) != 2 || f.Tasks[1].Kind != rendertask.CacheMask {
		t.Fatalf("tasks = %+v, want root and a mask", f.Tasks)
	}
	mask := f.Passes[0].AlphaTargets
	if len(mask) != 1 || len(mask[0].MaskRects) != 1 || len(mask[0].ClipBatches) != 1 {
		t.Fatalf("pass 0 alpha targets = %+v", mask)
	}
	inst := f.Passes[1].Framebuffer.AlphaBatches[0].Instances[0]
	if inst.ClipTask != 1 {
		t.Errorf("ClipTask = %d, want 1", inst.ClipTask)
	}
}

func TestSameClipSharesMask(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushClip(display.ClipRegion{Complex: []display.ComplexClip{{Rect: geom.R(0, 0, 50, 50), Radii: geom.UniformRadius(10)}}})
	db.PushRect(geom.R(0, 0, 50, 50), red)
	db.PushRect(geom.R(0, 0, 50, 50), blue)
	db.PopClip()

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))
	if len(f.Tasks) != 3 || f.Tasks[1].Kind != rendertask.CacheMask || f.Tasks[2].Kind != rendertask.Alias {
		t.Fatalf("tasks = %+v, want root, mask and alias", f.Tasks)
	}
	if f.Tasks[2].Location != f.Tasks[1].Location {
		t.Errorf("alias location = %+v, want %+v", f.Tasks[2].Location, f.Tasks[1].Location)
	}
	if n := len(f.Passes[0].AlphaTargets[0].MaskRects); n != 1 {
		t.Errorf("%d mask rects rendered, want 1", n)
	}
	checkPassOrdering(t, f)
}

func TestDroppedImageLeavesNoMask(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushClip(display.ClipRegion{Complex: []display.ComplexClip{{Rect: geom.R(0, 0, 50, 50), Radii: geom.UniformRadius(10)}}})
	db.PushImage(geom.R(0, 0, 50, 50), 7)
	db.PopClip()

	fb, _ := newTestBuilder(nil)
	f := build(t, fb, flatten(t, db))
	if f.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", f.Dropped)
	}
	if len(f.Tasks) != 1 {
		t.Errorf("len(Tasks) = %d, want only the root", len(f.Tasks))
	}
}

func TestOffscreenContextSkipped(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushStackingContext(display.StackingContext{Bounds: geom.R(200, 200, 50, 50)})
	db.PushRect(geom.R(200, 200, 50, 50), red)
	db.PushStackingContext(display.StackingContext{Filters: []display.Filter{{Kind: display.FilterBlur, Value: 2}}})
	db.PushRect(geom.R(0, 0, 10, 10), red)
	db.PopStackingContext()
	db.PopStackingContext()
	db.PushRect(geom.R(0, 0, 0, 10), red)

	s := flatten(t, db)
	if s.Store.Len() != 2 {
		t.Errorf("store holds %d primitives, want 2 (zero-area rect dropped)", s.Store.Len())
	}
	fb, _ := newTestBuilder(nil)
	f := build(t, fb, s)
	if st := f.Stats(); st.Instances != 0 || st.Tasks != 1 {
		t.Errorf("Stats() = %+v, want nothing drawn", st)
	}
}

func TestImagesAndText(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushImage(geom.R(0, 0, 32, 32), 1)
	db.PushImage(geom.R(40, 0, 32, 32), 2)
	db.PushText(geom.R(0, 50, 100, 20), 1, 12, geom.Black, []display.GlyphInstance{
		{Index: 5, Point: geom.Pt(5, 65)},
		{Index: 6, Point: geom.Pt(20, 65)},
	})

	fb, res := newTestBuilder(nil)
	res.addImage(t, 1, 32, 32)
	f := build(t, fb, flatten(t, db))

	if f.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1 for the missing image", f.Dropped)
	}
	batches := f.Passes[0].Framebuffer.AlphaBatches
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want image and text", len(batches))
	}
	if k := batches[0].Key; k.Shader != device.ShaderImage || k.Textures[0].Kind != batch.SourceCache {
		t.Errorf("image batch key = %v", k)
	}
	if n := len(batches[1].Instances); n != 2 {
		t.Errorf("text batch has %d glyph instances, want 2", n)
	}
	var created bool
	for _, u := range f.TextureUpdates {
		created = created || u.Op == texcache.OpCreate
	}
	if !created {
		t.Error("TextureUpdates lacks the atlas creation")
	}
	if f.GPUUpdates.IsEmpty() {
		t.Error("GPUUpdates is empty")
	}
}

func TestApplyProperties(t *testing.T) {
	db := display.NewBuilder(geom.Sz(100, 100))
	db.PushStackingContext(display.StackingContext{TransformKey: 5})
	db.PushRect(geom.R(0, 0, 10, 10), red)
	db.PopStackingContext()
	s := flatten(t, db)

	err := s.ApplyProperties(Properties{Transforms: map[display.PropertyKey]geom.Transform{5: geom.Translation(30, 0)}})
	if err != nil {
		t.Fatal(err)
	}
	fb, _ := newTestBuilder(nil)
	f := build(t, fb, s)
	node := s.Contexts[1].Node
	if got := f.TransformData[int(node)*8+2]; got != 30 {
		t.Errorf("transform x offset = %v, want 30", got)
	}

	err = s.ApplyProperties(Properties{Opacities: map[display.PropertyKey]float32{9: 0.5}})
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("ApplyProperties(unknown) error = %v, want ErrUnknownProperty", err)
	}
}
