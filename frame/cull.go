package frame

import (
	"github.com/gogpu/wr/cliptree"
	"github.com/gogpu/wr/geom"
)

type visibleEntry struct {
	ok    bool
	world geom.Rect
	masks []cliptree.MaskClip
}

type contextVis struct {
	culled  bool
	entries []visibleEntry // parallel to StackingContext.Entries
	// bounds is the world rect of all visible content, children
	// included.
	bounds geom.Rect
}

// cull computes the visible world rect and clip masks of every
// primitive. Contexts are independent, so each is handled by one pool
// worker writing only its own contextVis.
func (b *Builder) cull(scene *Scene) []contextVis {
	vis := make([]contextVis, len(scene.Contexts))
	tree := scene.Tree
	// Contexts are stored in pre-order, so parents come first.
	for i := range scene.Contexts {
		ctx := &scene.Contexts[i]
		if ctx.Parent >= 0 && vis[ctx.Parent].culled {
			vis[i].culled = true
			continue
		}
		if !ctx.Bounds.IsEmpty() {
			if _, ok := tree.WorldRect(ctx.Node, ctx.Bounds); !ok {
				vis[i].culled = true
			}
		}
	}

	work := func(i int) {
		if vis[i].culled {
			return
		}
		cullContext(scene, &scene.Contexts[i], &vis[i])
	}
	if b.pool != nil && len(scene.Contexts) > 1 {
		b.pool.ForEach(len(scene.Contexts), work)
	} else {
		for i := range scene.Contexts {
			work(i)
		}
	}

	for i := len(scene.Contexts) - 1; i > 0; i-- {
		if p := scene.Contexts[i].Parent; !vis[i].culled {
			vis[p].bounds = vis[p].bounds.Union(vis[i].bounds)
		}
	}
	return vis
}

func cullContext(scene *Scene, ctx *StackingContext, v *contextVis) {
	tree := scene.Tree
	chains := make(map[cliptree.NodeID]cliptree.ClipChain)
	v.entries = make([]visibleEntry, len(ctx.Entries))
	for j, e := range ctx.Entries {
		if e.Child >= 0 {
			continue
		}
		m := scene.Store.Get(e.Prim)
		if m == nil {
			continue
		}
		world, ok := tree.WorldRect(m.Node, m.LocalRect.Intersect(m.ClipRect))
		if !ok {
			continue
		}
		chain, seen := chains[m.Node]
		if !seen {
			chain = tree.CombinedClip(m.Node)
			chains[m.Node] = chain
		}
		world = world.Intersect(chain.Rect)
		if world.IsEmpty() {
			continue
		}
		v.entries[j] = visibleEntry{ok: true, world: world, masks: chain.MasksFor(world)}
		v.bounds = v.bounds.Union(world)
	}
}
