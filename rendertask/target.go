// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendertask

import (
	"image"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/internal/atlas"
)

// Target is one offscreen texture of a pass.
type Target struct {
	Kind  TargetKind
	Tasks []ID
	// Used is the extent actually covered by tasks; the renderer sizes
	// the texture to it.
	Used  image.Point
	alloc *atlas.Allocator
}

// Format returns the texture format of the target.
func (t *Target) Format() device.TextureFormat {
	if t.Kind == AlphaTarget {
		return device.FormatAlpha8
	}
	return device.FormatRGBA8
}

// Pass is a set of tasks with no dependencies among themselves.
type Pass struct {
	Index        int
	Tasks        []ID
	ColorTargets []*Target
	AlphaTargets []*Target
	// Framebuffer lists the fixed tasks drawn into the framebuffer.
	Framebuffer []ID
}

// Targets returns the targets of kind k.
func (p *Pass) Targets(k TargetKind) []*Target {
	if k == AlphaTarget {
		return p.AlphaTargets
	}
	return p.ColorTargets
}

func (g *Graph) allocateTargets(p *Pass, size image.Point) {
	for _, id := range p.Tasks {
		t := &g.tasks[id]
		switch {
		case t.Kind == Alias:
			continue
		case t.Location.Fixed:
			p.Framebuffer = append(p.Framebuffer, id)
			continue
		}
		w := min(max(t.Size.X, 1), size.X)
		h := min(max(t.Size.Y, 1), size.Y)
		if w != t.Size.X || h != t.Size.Y {
			g.logger.Debug("rendertask: task clamped to target size",
				"task", id, "kind", t.Kind, "size", t.Size, "target", size)
			t.Size = image.Pt(w, h)
		}

		targets := &p.ColorTargets
		if t.Target == AlphaTarget {
			targets = &p.AlphaTargets
		}
		placed := false
		for i, tg := range *targets {
			if r, ok := tg.alloc.Allocate(w, h); ok {
				g.place(t, id, tg, i, r)
				placed = true
				break
			}
		}
		if !placed {
			tg := &Target{Kind: t.Target, alloc: atlas.New(size.X, size.Y, 0)}
			*targets = append(*targets, tg)
			r, _ := tg.alloc.Allocate(w, h)
			g.place(t, id, tg, len(*targets)-1, r)
		}
	}
}

func (g *Graph) place(t *Task, id ID, tg *Target, index int, r image.Rectangle) {
	t.Location = Location{Target: index, Rect: r}
	tg.Tasks = append(tg.Tasks, id)
	tg.Used.X = max(tg.Used.X, r.Max.X)
	tg.Used.Y = max(tg.Used.Y, r.Max.Y)
}

// TaskData encodes the task table sampled by shaders: per task, the
// target rect followed by the content origin and two parameters.
func (g *Graph) TaskData() []float32 {
	out := make([]float32, 0, len(g.tasks)*8)
	for i := range g.tasks {
		t := g.resolve(ID(i))
		r := t.Location.Rect
		out = append(out,
			float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y),
			t.Origin.X, t.Origin.Y, g.tasks[i].Params[0], g.tasks[i].Params[1],
		)
	}
	return out
}
