package frame

import (
	"image"
	"math"
	"slices"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/cliptree"
	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/texcache"
)

var noSlots = [3]rendertask.ID{rendertask.NoTask, rendertask.NoTask, rendertask.NoTask}

// pending is an instance waiting for pass assignment. Texture slots
// that read other tasks are resolved once targets are known.
type pending struct {
	key   batch.Key
	slots [3]rendertask.ID
	inst  device.Instance
	world geom.Rect
}

type clipInstance struct {
	inst  device.Instance
	image batch.TextureSource
}

// taskWork is the draw work recorded for one task.
type taskWork struct {
	prims []pending
	clips []clipInstance
	blur  *device.Instance
}

// sharedMask is a clip mask task that later primitives with the same
// area and clips can alias.
type sharedMask struct {
	area  image.Rectangle
	clips []cliptree.MaskClip
	id    rendertask.ID
}

type frameState struct {
	b             *Builder
	scene         *Scene
	vis           []contextVis
	graph         *rendertask.Graph
	work          []taskWork
	masks         []sharedMask
	z             int32
	dropped       int
	identityLayer int32
}

func (fs *frameState) workFor(id rendertask.ID) *taskWork {
	for int(id) >= len(fs.work) {
		fs.work = append(fs.work, taskWork{})
	}
	return &fs.work[id]
}

func (fs *frameState) nextZ() int32 {
	z := fs.z
	fs.z++
	return z
}

func (fs *frameState) push(task rendertask.ID, p pending) {
	p.inst.Task = int32(task)
	p.inst.Z = fs.nextZ()
	w := fs.workFor(task)
	w.prims = append(w.prims, p)
}

func (fs *frameState) drop(reason string, args ...any) {
	fs.dropped++
	fs.b.log.Debug("frame: "+reason, args...)
}

func cacheSource(e texcache.Entry) batch.TextureSource {
	return batch.TextureSource{Kind: batch.SourceCache, Index: uint32(e.Texture)}
}

func uvBlock(r image.Rectangle) gpucache.Block {
	return gpucache.Block{float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)}
}

// emitContext records the content of context ci into task.
func (fs *frameState) emitContext(ci int, task rendertask.ID) {
	ctx := &fs.scene.Contexts[ci]
	v := &fs.vis[ci]
	for j, e := range ctx.Entries {
		if e.Child >= 0 {
			fs.emitChild(e.Child, task)
			continue
		}
		if ve := v.entries[j]; ve.ok {
			fs.emitPrim(e.Prim, ve, task)
		}
	}
}

// emitChild draws a nested context either inline or, when it is
// isolated, through a picture task composited into task.
func (fs *frameState) emitChild(ci int, task rendertask.ID) {
	v := &fs.vis[ci]
	if v.culled || v.bounds.IsEmpty() {
		return
	}
	ctx := &fs.scene.Contexts[ci]
	if !ctx.Isolated {
		fs.emitContext(ci, task)
		return
	}
	if ctx.Opacity <= 0 {
		return
	}

	node, _ := fs.scene.Tree.Node(ctx.Node)
	blur := ctx.Blur * worldScale(node.World)
	pad := float32(math.Ceil(float64(3 * blur)))
	viewport := fs.scene.Tree.Viewport().Inflate(pad, pad)
	area := v.bounds.Inflate(pad, pad).Intersect(viewport).RoundOut()
	if area.Empty() {
		return
	}
	origin := geom.Pt(float32(area.Min.X), float32(area.Min.Y))
	pic := fs.graph.Add(rendertask.Task{
		Kind:    rendertask.Picture,
		Target:  rendertask.ColorTarget,
		Size:    area.Size(),
		Origin:  origin,
		Picture: ci,
	})
	fs.emitContext(ci, pic)

	src := pic
	if blur > 0 {
		h := fs.blurTask(rendertask.HorizontalBlur, src, area.Size(), origin, blur)
		src = fs.blurTask(rendertask.VerticalBlur, h, area.Size(), origin, blur)
	}
	fs.graph.AddDependency(task, src)

	rect := geom.FromImageRect(area)
	pm := prim.EncodePicture(rect, ci, ctx.Opacity)
	addr, err := fs.b.gpu.PushTransient(pm.Data...)
	if err != nil {
		fs.drop("picture dropped", "context", ci, "err", err)
		return
	}
	slots := noSlots
	slots[0] = src
	fs.push(task, pending{
		key:   batch.Key{Shader: device.ShaderComposite, Blend: blendFor(ctx.Blend)},
		slots: slots,
		inst: device.Instance{
			Address:  addr.Pack(),
			ClipTask: device.NoClip,
			Layer:    fs.identityLayer,
			User0:    int32(src),
		},
		world: rect,
	})
}

func blendFor(m display.MixBlendMode) device.BlendMode {
	switch m {
	case display.BlendMultiply:
		return device.BlendMixMultiply
	case display.BlendScreen:
		return device.BlendScreen
	}
	return device.BlendAlpha
}

// blurTask adds one direction of a separable Gaussian blur of src.
func (fs *frameState) blurTask(kind rendertask.Kind, src rendertask.ID, size image.Point, origin geom.Point, radius float32) rendertask.ID {
	id := fs.graph.Add(rendertask.Task{
		Kind:       kind,
		Target:     rendertask.ColorTarget,
		Size:       size,
		Origin:     origin,
		BlurRadius: radius,
		Params:     [2]float32{radius, 0},
	}, src)
	dir := device.DirectionHorizontal
	if kind == rendertask.VerticalBlur {
		dir = device.DirectionVertical
	}
	fs.workFor(id).blur = &device.Instance{
		Task:     int32(id),
		ClipTask: device.NoClip,
		User0:    int32(src),
		User1:    dir,
	}
	return id
}

func (fs *frameState) emitPrim(idx prim.Index, ve visibleEntry, task rendertask.ID) {
	scene := fs.scene
	m := scene.Store.Get(idx)
	addr, err := scene.Store.Prepare(fs.b.gpu, idx)
	if err != nil {
		fs.drop("primitive dropped", "kind", m.Kind, "err", err)
		return
	}

	slots := noSlots
	base := device.Instance{
		Address:  addr.Pack(),
		ClipTask: device.NoClip,
		Layer:    int32(m.Node),
		User0:    -1,
		User1:    -1,
	}
	key := batch.Key{Shader: m.Kind.Shader(), Blend: device.BlendAlpha}

	// Resources first, so a dropped primitive leaves no mask behind.
	if m.Kind == prim.Image {
		it := m.Source.(display.Image)
		entry, ok := fs.b.res.Image(it.Key)
		if !ok {
			fs.drop("image unavailable", "key", it.Key)
			return
		}
		uv, err := fs.b.gpu.PushTransient(uvBlock(entry.Rect))
		if err != nil {
			fs.drop("image dropped", "key", it.Key, "err", err)
			return
		}
		base.User0 = uv.Pack()
		key.Textures[0] = cacheSource(entry)
	}
	if len(ve.masks) > 0 {
		mask, ok := fs.maskTask(ve.world, ve.masks)
		if !ok {
			fs.drop("clip mask unavailable", "kind", m.Kind)
			return
		}
		fs.graph.AddDependency(task, mask)
		base.ClipTask = int32(mask)
		slots[2] = mask
	}

	switch m.Kind {
	case prim.TextRun:
		fs.emitText(m, ve, task, base, key, slots)
		return
	case prim.BoxShadow:
		fs.shadowProfiles(m, addr, task, &base, &slots)
	}
	fs.push(task, pending{key: key, slots: slots, inst: base, world: ve.world})
}

func (fs *frameState) emitText(m *prim.Metadata, ve visibleEntry, task rendertask.ID, base device.Instance, key batch.Key, slots [3]rendertask.ID) {
	it := m.Source.(display.Text)
	node, _ := fs.scene.Tree.Node(m.Node)
	scale := worldScale(node.World)
	if fs.b.cfg.SubpixelAA {
		key.Blend = device.BlendSubpixel
	}
	for i, g := range it.Glyphs {
		gl, ok := fs.b.res.Glyph(it.Font, it.Size*scale, g.Index)
		if !ok {
			continue
		}
		size := gl.Entry.Rect.Size()
		if size.X == 0 || size.Y == 0 {
			continue
		}
		pos := g.Point.Add(gl.Origin.Mul(1 / scale))
		local := geom.Rect{Min: pos, Max: pos.Add(geom.Pt(float32(size.X)/scale, float32(size.Y)/scale))}
		world := node.World.ApplyRect(local).Intersect(ve.world)
		if world.IsEmpty() {
			continue
		}
		addr, err := fs.b.gpu.PushTransient(prim.RectBlock(local), uvBlock(gl.Entry.Rect))
		if err != nil {
			fs.drop("glyph dropped", "font", it.Font, "glyph", g.Index, "err", err)
			continue
		}
		inst := base
		inst.Sub = int32(i)
		inst.User0 = addr.Pack()
		k := key
		k.Textures[0] = cacheSource(gl.Entry)
		fs.push(task, pending{key: k, slots: slots, inst: inst, world: world})
	}
}

// shadowProfiles adds the horizontal and vertical blur profile tasks of
// a blurred box shadow. The tasks are independent, so both land in the
// first pass and the shadow samples their product.
func (fs *frameState) shadowProfiles(m *prim.Metadata, addr gpucache.Address, task rendertask.ID, inst *device.Instance, slots *[3]rendertask.ID) {
	it := m.Source.(display.BoxShadow)
	if it.BlurRadius <= 0 {
		return
	}
	node, _ := fs.scene.Tree.Node(m.Node)
	scale := worldScale(node.World)
	w := max(1, int(math.Ceil(float64(m.LocalRect.Width()*scale))))
	h := max(1, int(math.Ceil(float64(m.LocalRect.Height()*scale))))

	profile := func(kind rendertask.Kind, size image.Point, dir int32) rendertask.ID {
		id := fs.graph.Add(rendertask.Task{
			Kind:       kind,
			Target:     rendertask.AlphaTarget,
			Size:       size,
			BlurRadius: it.BlurRadius,
			Profile:    addr.Pack(),
			Params:     [2]float32{scale, 0},
		})
		fs.workFor(id).blur = &device.Instance{
			Address:  addr.Pack(),
			Task:     int32(id),
			ClipTask: device.NoClip,
			Layer:    int32(m.Node),
			User0:    -1,
			User1:    dir,
		}
		fs.graph.AddDependency(task, id)
		return id
	}
	hp := profile(rendertask.HorizontalBlur, image.Pt(w, 1), device.DirectionHorizontal)
	vp := profile(rendertask.VerticalBlur, image.Pt(1, h), device.DirectionVertical)
	inst.User0, inst.User1 = int32(hp), int32(vp)
	slots[0], slots[1] = hp, vp
}

// maskTask renders the clips that cut into world into an alpha mask. A
// mask already rendered this frame for the same area and clips is shared
// through an alias. Nothing is added to the graph when a clip cannot be
// prepared.
func (fs *frameState) maskTask(world geom.Rect, masks []cliptree.MaskClip) (rendertask.ID, bool) {
	area := world.RoundOut()
	for _, m := range fs.masks {
		if m.area == area && slices.Equal(m.clips, masks) {
			return fs.graph.AddAlias(m.id), true
		}
	}

	clips := make([]clipInstance, 0, len(masks))
	gpu := fs.b.gpu
	for _, mc := range masks {
		inst := device.Instance{ClipTask: device.NoClip, Layer: int32(mc.Layer), User0: -1, User1: -1}
		if mc.Image != nil {
			entry, ok := fs.b.res.Image(mc.Image.Key)
			if !ok {
				return rendertask.NoTask, false
			}
			var repeat float32
			if mc.Image.Repeat {
				repeat = 1
			}
			addr, err := gpu.PushTransient(prim.RectBlock(mc.Rect), uvBlock(entry.Rect), gpucache.Block{repeat})
			if err != nil {
				return rendertask.NoTask, false
			}
			inst.Address = addr.Pack()
			clips = append(clips, clipInstance{inst: inst, image: cacheSource(entry)})
			continue
		}
		r := mc.Radii
		addr, err := gpu.PushTransient(
			prim.RectBlock(mc.Rect),
			gpucache.Block{r.TopLeft.W, r.TopLeft.H, r.TopRight.W, r.TopRight.H},
			gpucache.Block{r.BottomLeft.W, r.BottomLeft.H, r.BottomRight.W, r.BottomRight.H},
		)
		if err != nil {
			return rendertask.NoTask, false
		}
		inst.Address = addr.Pack()
		clips = append(clips, clipInstance{inst: inst})
	}

	id := fs.graph.Add(rendertask.Task{
		Kind:   rendertask.CacheMask,
		Target: rendertask.AlphaTarget,
		Size:   area.Size(),
		Origin: geom.Pt(float32(area.Min.X), float32(area.Min.Y)),
		Clips:  masks,
	})
	for i := range clips {
		clips[i].inst.Task = int32(id)
	}
	fs.workFor(id).clips = clips
	fs.masks = append(fs.masks, sharedMask{area: area, clips: masks, id: id})
	return id, true
}
