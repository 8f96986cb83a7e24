package frame

import (
	"image"
	"slices"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/cliptree"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/texcache"
)

// Frame is a fully built frame. It holds no device objects and can be
// sent to the renderer goroutine as is.
type Frame struct {
	Generation uint64
	DeviceSize image.Point
	Background geom.ColorF

	Tasks []rendertask.Task
	// TaskData and TransformData are the contents of the render task and
	// transform data textures.
	TaskData      []float32
	TransformData []float32
	Passes        []PassOutput

	TextureUpdates []texcache.Update
	GPUUpdates     gpucache.UpdateList
	Dropped        int
}

// Supersede folds the cache updates of older, a frame that will never be
// rendered, into f ahead of f's own updates.
func (f *Frame) Supersede(older *Frame) {
	f.TextureUpdates = slices.Concat(older.TextureUpdates, f.TextureUpdates)
	gpu := older.GPUUpdates
	gpu.Merge(f.GPUUpdates)
	f.GPUUpdates = gpu
}

// PassOutput is the draw work of one pass.
type PassOutput struct {
	Index        int
	ColorTargets []TargetOutput
	AlphaTargets []TargetOutput
	// Framebuffer is nil unless the pass draws to the framebuffer.
	Framebuffer *TargetOutput
}

// TargetOutput is the draw work for one render target. Targets are
// cleared to transparent; MaskRects are then cleared to opaque so clip
// coverage can be multiplied in. Blur and clip batches run before the
// alpha batches.
type TargetOutput struct {
	Kind         rendertask.TargetKind
	Size         image.Point
	MaskRects    []image.Rectangle
	ClipBatches  []*batch.Batch
	BlurBatches  []*batch.Batch
	AlphaBatches []*batch.Batch
}

// Stats summarises a frame for logging and tests.
type Stats struct {
	Tasks     int
	Passes    int
	Batches   int
	Instances int
}

// Stats counts the work in f.
func (f *Frame) Stats() Stats {
	s := Stats{Tasks: len(f.Tasks), Passes: len(f.Passes)}
	count := func(t *TargetOutput) {
		for _, list := range [][]*batch.Batch{t.ClipBatches, t.BlurBatches, t.AlphaBatches} {
			s.Batches += len(list)
			for _, b := range list {
				s.Instances += len(b.Instances)
			}
		}
	}
	for i := range f.Passes {
		p := &f.Passes[i]
		for j := range p.ColorTargets {
			count(&p.ColorTargets[j])
		}
		for j := range p.AlphaTargets {
			count(&p.AlphaTargets[j])
		}
		if p.Framebuffer != nil {
			count(p.Framebuffer)
		}
	}
	return s
}

func (fs *frameState) source(id rendertask.ID) batch.TextureSource {
	if id == rendertask.NoTask {
		return batch.TextureSource{}
	}
	t := fs.graph.Get(id)
	kind := batch.SourceColorTarget
	if t.Target == rendertask.AlphaTarget {
		kind = batch.SourceAlphaTarget
	}
	return batch.TextureSource{Kind: kind, Pass: int32(t.Pass), Index: uint32(t.Location.Target)}
}

// resolveSlots fills the texture slots of p that read task outputs. ok
// is false when one of those tasks was not scheduled.
func (fs *frameState) resolveSlots(p pending) (batch.Key, bool) {
	key := p.key
	for s, src := range p.slots {
		if src == rendertask.NoTask {
			continue
		}
		if fs.graph.Get(src).Pass < 0 {
			return key, false
		}
		key.Textures[s] = fs.source(src)
	}
	return key, true
}

// assemble batches the recorded work now that every task has a pass and
// a target.
func (fs *frameState) assemble(passes []rendertask.Pass, deviceSize image.Point) *Frame {
	f := &Frame{
		DeviceSize:    deviceSize,
		Tasks:         fs.graph.Tasks(),
		TaskData:      fs.graph.TaskData(),
		TransformData: fs.transformData(),
		Passes:        make([]PassOutput, len(passes)),
	}
	for i := range passes {
		p := &passes[i]
		out := &f.Passes[i]
		out.Index = p.Index
		for _, tg := range p.ColorTargets {
			out.ColorTargets = append(out.ColorTargets, fs.target(tg.Kind, tg.Used, tg.Tasks))
		}
		for _, tg := range p.AlphaTargets {
			out.AlphaTargets = append(out.AlphaTargets, fs.target(tg.Kind, tg.Used, tg.Tasks))
		}
		if len(p.Framebuffer) > 0 {
			fb := fs.target(rendertask.ColorTarget, f.DeviceSize, p.Framebuffer)
			out.Framebuffer = &fb
		}
	}
	f.Dropped = fs.dropped + fs.graph.Skipped()
	return f
}

func (fs *frameState) target(kind rendertask.TargetKind, size image.Point, tasks []rendertask.ID) TargetOutput {
	out := TargetOutput{Kind: kind, Size: size}
	alpha := batch.NewAlphaBatcher()
	var (
		clips batch.ClipBatcher
		blurs batch.BlurBatcher
	)
	for _, id := range tasks {
		if int(id) >= len(fs.work) {
			continue
		}
		t := fs.graph.Get(id)
		w := &fs.work[id]
		// Overlap tests run in target space.
		offset := geom.Pt(float32(t.Location.Rect.Min.X), float32(t.Location.Rect.Min.Y)).Sub(t.Origin)
		for _, p := range w.prims {
			key, ok := fs.resolveSlots(p)
			if !ok {
				fs.dropped++
				continue
			}
			alpha.Add(key, p.inst, p.world.Translate(offset))
		}
		if t.Kind == rendertask.CacheMask {
			out.MaskRects = append(out.MaskRects, t.Location.Rect)
			for _, c := range w.clips {
				if c.image.Kind == batch.SourceInvalid {
					clips.AddRect(c.inst)
				} else {
					clips.AddImage(c.image, c.inst)
				}
			}
		}
		if w.blur != nil {
			if src := rendertask.ID(w.blur.User0); src >= 0 && fs.graph.Get(src).Pass < 0 {
				fs.dropped++
			} else if src >= 0 {
				blurs.AddBlur(fs.source(src), *w.blur)
			} else {
				blurs.AddProfile(*w.blur)
			}
		}
	}
	out.ClipBatches = clips.Batches
	out.BlurBatches = blurs.Batches
	out.AlphaBatches = alpha.Batches
	return out
}

// transformData packs each clip/scroll node's world transform, followed
// by the identity used for composites.
func (fs *frameState) transformData() []float32 {
	tree := fs.scene.Tree
	out := make([]float32, 0, (tree.Len()+1)*8)
	appendT := func(t geom.Transform) {
		out = append(out, t.A, t.B, t.C, 0, t.D, t.E, t.F, 0)
	}
	for i := range tree.Len() {
		n, _ := tree.Node(cliptree.NodeID(i))
		appendT(n.World)
	}
	appendT(geom.Identity())
	return out
}
