package wr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/device/soft"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/frame"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/texcache"
)

// =============================================================================
// Helpers
// =============================================================================

var (
	red  = geom.RGBA(1, 0, 0, 1)
	blue = geom.RGBA(0, 0, 1, 1)
	size = geom.Sz(100, 100)
)

func newRenderer(t *testing.T, opts ...Option) (*Renderer, *API, *soft.Device) {
	t.Helper()
	dev := soft.New(1, 1)
	opts = append([]Option{WithClearColor(geom.White), WithWorkers(1)}, opts...)
	r, api, err := NewRenderer(dev, opts...)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r, api, dev
}

func waitIdle(t *testing.T, api *API) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// present sends list, builds a frame and renders it.
func present(t *testing.T, r *Renderer, api *API, list *display.List) {
	t.Helper()
	if err := api.SetDisplayList(list, size); err != nil {
		t.Fatal(err)
	}
	if err := api.GenerateFrame(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, api)
	updated, err := r.Update()
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated {
		t.Fatal("Update() = false, want a new frame")
	}
	if err := r.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func pixel(t *testing.T, r *Renderer, x, y int) [4]uint8 {
	t.Helper()
	p, err := r.ReadPixels(image.Rect(x, y, x+1, y+1))
	if err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	return [4]uint8(p)
}

func near(a, b [4]uint8, tol int) bool {
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

func twoRects() *display.List {
	db := display.NewBuilder(size)
	db.PushStackingContext(display.StackingContext{})
	db.PushRect(geom.R(0, 0, 20, 20), red)
	db.PushRect(geom.R(50, 50, 20, 20), blue)
	db.PopStackingContext()
	return db.Finalize()
}

type recorder struct {
	mu     sync.Mutex
	frames []uint64
	errs   []error
}

func (n *recorder) NewFrameReady(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, gen)
}

func (n *recorder) BuildFailed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

// =============================================================================
// Rendering
// =============================================================================

func TestRenderRects(t *testing.T) {
	r, api, dev := newRenderer(t)
	present(t, r, api, twoRects())

	tests := []struct {
		x, y int
		want [4]uint8
	}{
		{5, 5, [4]uint8{255, 0, 0, 255}},
		{60, 60, [4]uint8{0, 0, 255, 255}},
		{35, 35, [4]uint8{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := pixel(t, r, tt.x, tt.y); got != tt.want {
			t.Errorf("pixel(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if dev.Draws() != 1 {
		t.Errorf("Draws() = %d, want one batch", dev.Draws())
	}
}

func TestRenderOpacityComposite(t *testing.T) {
	r, api, _ := newRenderer(t)
	db := display.NewBuilder(size)
	db.PushStackingContext(display.StackingContext{Filters: []display.Filter{{Kind: display.FilterOpacity, Value: 0.5}}})
	db.PushRect(geom.R(10, 10, 20, 20), red)
	db.PopStackingContext()
	present(t, r, api, db.Finalize())

	if got, want := pixel(t, r, 15, 15), [4]uint8{255, 128, 128, 255}; !near(got, want, 2) {
		t.Errorf("composited pixel = %v, want %v", got, want)
	}
	if got, want := pixel(t, r, 50, 50), [4]uint8{255, 255, 255, 255}; got != want {
		t.Errorf("background pixel = %v, want %v", got, want)
	}
	if len(r.Frame().Passes) != 2 {
		t.Errorf("len(Passes) = %d, want 2", len(r.Frame().Passes))
	}
}

func TestRenderImage(t *testing.T) {
	r, api, _ := newRenderer(t)
	pixels := make([]byte, 4*4*4)
	for i := 0; i < len(pixels); i += 4 {
		copy(pixels[i:], []byte{0, 255, 0, 255})
	}
	if err := api.AddImage(7, resource.ImageDescriptor{Width: 4, Height: 4, Format: device.FormatRGBA8}, pixels); err != nil {
		t.Fatal(err)
	}
	db := display.NewBuilder(size)
	db.PushImage(geom.R(40, 40, 20, 20), 7)
	present(t, r, api, db.Finalize())

	if got, want := pixel(t, r, 45, 45), [4]uint8{0, 255, 0, 255}; got != want {
		t.Errorf("image pixel = %v, want %v", got, want)
	}
	if got, want := pixel(t, r, 10, 10), [4]uint8{255, 255, 255, 255}; got != want {
		t.Errorf("background pixel = %v, want %v", got, want)
	}
}

func TestScrollOffsetsSurviveNewDisplayList(t *testing.T) {
	r, api, _ := newRenderer(t)
	list := func() *display.List {
		db := display.NewBuilder(size)
		db.PushScrollFrame(display.ScrollFrame{ID: 3, Frame: geom.R(0, 0, 100, 100), ContentSize: geom.Sz(100, 300)})
		db.PushRect(geom.R(0, 100, 20, 20), red)
		db.PopScrollFrame()
		return db.Finalize()
	}
	present(t, r, api, list())
	if got := pixel(t, r, 5, 5); got != [4]uint8{255, 255, 255, 255} {
		t.Errorf("before scrolling pixel = %v, want background", got)
	}

	if err := api.ScrollTo(3, geom.Pt(0, 100)); err != nil {
		t.Fatal(err)
	}
	present(t, r, api, list())
	if got := pixel(t, r, 5, 5); got != [4]uint8{255, 0, 0, 255} {
		t.Errorf("after scrolling pixel = %v, want red", got)
	}
}

// =============================================================================
// Backend protocol
// =============================================================================

func TestUnbalancedListKeepsPreviousFrame(t *testing.T) {
	rec := &recorder{}
	r, api, _ := newRenderer(t, WithNotifier(rec))
	present(t, r, api, twoRects())
	gen := r.Generation()

	db := display.NewBuilder(size)
	db.PushRect(geom.R(0, 0, 10, 10), blue)
	db.PopStackingContext()
	if err := api.SetDisplayList(db.Finalize(), size); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, api)

	updated, err := r.Update()
	if updated {
		t.Error("Update() = true after a failed build")
	}
	if !errors.Is(err, ErrBuildFailed) || !errors.Is(err, display.ErrUnbalanced) {
		t.Errorf("Update() error = %v, want ErrBuildFailed wrapping ErrUnbalanced", err)
	}
	if r.Generation() != gen {
		t.Errorf("Generation() = %d, want %d", r.Generation(), gen)
	}
	if err := r.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := pixel(t, r, 5, 5); got != [4]uint8{255, 0, 0, 255} {
		t.Errorf("pixel after failed build = %v, want previous frame", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.frames) != 1 || len(rec.errs) != 1 {
		t.Errorf("notifier saw %d frames and %d errors, want 1 and 1", len(rec.frames), len(rec.errs))
	}
}

func TestUpdateKeepsNewestFrame(t *testing.T) {
	r, api, _ := newRenderer(t)
	if err := api.SetDisplayList(twoRects(), size); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := api.GenerateFrame(); err != nil {
			t.Fatal(err)
		}
	}
	waitIdle(t, api)

	updated, err := r.Update()
	if err != nil || !updated {
		t.Fatalf("Update() = %v, %v, want true, nil", updated, err)
	}
	if r.Generation() != 3 {
		t.Errorf("Generation() = %d, want 3", r.Generation())
	}
	updated, err = r.Update()
	if updated || err != nil {
		t.Errorf("second Update() = %v, %v, want false, nil", updated, err)
	}
}

// More frames than the queue holds must not stall the backend; the
// newest frame still renders with the cache updates of the ones it
// replaced.
func TestFrameQueueOverflowFolds(t *testing.T) {
	n := &recorder{}
	r, api, _ := newRenderer(t, WithFrameQueue(2), WithNotifier(n))
	if err := api.SetDisplayList(twoRects(), size); err != nil {
		t.Fatal(err)
	}
	for range 5 {
		if err := api.GenerateFrame(); err != nil {
			t.Fatal(err)
		}
	}
	waitIdle(t, api)

	updated, err := r.Update()
	if err != nil || !updated {
		t.Fatalf("Update() = %v, %v, want true, nil", updated, err)
	}
	if r.Generation() != 5 {
		t.Errorf("Generation() = %d, want 5", r.Generation())
	}
	if err := r.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := pixel(t, r, 5, 5); got != [4]uint8{255, 0, 0, 255} {
		t.Errorf("pixel(5,5) = %v, want red", got)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.frames) != 5 {
		t.Errorf("NewFrameReady called %d times, want 5", len(n.frames))
	}
}

func TestUpdateSkipsFrameWithFailedTextures(t *testing.T) {
	results := make(chan result, 2)
	r := &Renderer{
		log:      slog.New(slog.DiscardHandler),
		dev:      soft.New(1, 1),
		textures: texcache.NewTextures(),
		results:  results,
	}
	results <- result{frame: &frame.Frame{Generation: 1}}
	results <- result{frame: &frame.Frame{
		Generation: 2,
		TextureUpdates: []texcache.Update{
			{Op: texcache.OpUpload, Texture: 9, Rect: image.Rect(0, 0, 1, 1), Data: make([]byte, 4)},
		},
	}}

	updated, err := r.Update()
	if !updated {
		t.Error("Update() = false, want the intact frame")
	}
	if !errors.Is(err, device.ErrInvalidTexture) {
		t.Errorf("Update() error = %v, want ErrInvalidTexture", err)
	}
	if r.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", r.Generation())
	}
}

func TestUpdateDoesNotBlock(t *testing.T) {
	r, _, _ := newRenderer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if updated, err := r.Update(); updated || err != nil {
			t.Errorf("Update() = %v, %v, want false, nil", updated, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Update() blocked with no backend results")
	}
}

func TestRenderWithoutFrame(t *testing.T) {
	r, api, _ := newRenderer(t)
	if err := r.Render(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Render() error = %v, want ErrNoFrame", err)
	}
	if err := api.GenerateFrame(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, api)
	if _, err := r.Update(); !errors.Is(err, ErrNoDisplayList) {
		t.Errorf("Update() error = %v, want ErrNoDisplayList", err)
	}
}

func TestUpdatePropertiesUnknownKey(t *testing.T) {
	r, api, _ := newRenderer(t)
	if err := api.SetDisplayList(twoRects(), size); err != nil {
		t.Fatal(err)
	}
	err := api.UpdateProperties(frame.Properties{Opacities: map[display.PropertyKey]float32{42: 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	waitIdle(t, api)
	if _, err := r.Update(); !errors.Is(err, frame.ErrUnknownProperty) {
		t.Errorf("Update() error = %v, want ErrUnknownProperty", err)
	}
}

func TestReloadShaderFailureKeepsProgram(t *testing.T) {
	r, api, _ := newRenderer(t)
	before := r.programs[device.ShaderRectangle]

	// The CPU device has no shader compiler, so any source fails.
	if err := r.ReloadShader(device.ShaderRectangle, "fn fs_main() {}"); !errors.Is(err, device.ErrShaderCompile) {
		t.Errorf("ReloadShader() error = %v, want ErrShaderCompile", err)
	}
	if r.programs[device.ShaderRectangle] != before {
		t.Error("failed reload replaced the program")
	}
	present(t, r, api, twoRects())
	if got := pixel(t, r, 5, 5); got != [4]uint8{255, 0, 0, 255} {
		t.Errorf("pixel after failed reload = %v, want red", got)
	}

	if err := r.ReloadShader(device.ShaderRectangle, ""); err != nil {
		t.Fatalf("ReloadShader(built-in) error = %v", err)
	}
	if r.programs[device.ShaderRectangle] == before {
		t.Error("successful reload kept the old program")
	}
}

func TestClose(t *testing.T) {
	r, api, dev := newRenderer(t)
	present(t, r, api, twoRects())
	r.Close()
	r.Close()

	if err := api.GenerateFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("GenerateFrame() after Close error = %v, want ErrClosed", err)
	}
	if err := r.Render(); !errors.Is(err, ErrClosed) {
		t.Errorf("Render() after Close error = %v, want ErrClosed", err)
	}
	// Only the framebuffer remains.
	if n := dev.Textures(); n != 1 {
		t.Errorf("device holds %d textures after Close, want 1", n)
	}
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithDevicePixelRatio(2),
		WithDevicePixelRatio(-1),
		WithFrameQueue(0),
		WithWorkers(8),
		WithClearFramebuffer(false),
	} {
		opt(&o)
	}
	if o.devicePixelRatio != 2 {
		t.Errorf("devicePixelRatio = %v, want 2", o.devicePixelRatio)
	}
	if o.frameQueue != DefaultFrameQueue {
		t.Errorf("frameQueue = %d, want default", o.frameQueue)
	}
	if o.workers != 8 || o.clearFramebuffer {
		t.Errorf("options = %+v", o)
	}
}
