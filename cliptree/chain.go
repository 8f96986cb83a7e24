package cliptree

import (
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
)

// MaskClip is a clip that needs a mask to be applied exactly: a rounded
// rect, an image mask, or a rect under a rotating transform.
type MaskClip struct {
	Node NodeID
	// Layer is the node whose world transform is Transform.
	Layer NodeID
	// Transform maps the clip's local space to world space.
	Transform geom.Transform
	Rect      geom.Rect
	Radii     geom.BorderRadius
	Image     *display.ImageMask
	// Inner is a world rect known to be fully inside the clip; it is
	// empty when no such rect is cheap to compute.
	Inner geom.Rect
}

// ClipChain is the combined clip of a node and its ancestors.
type ClipChain struct {
	// Rect is the world-space rect every clip in the chain contains.
	Rect  geom.Rect
	Masks []MaskClip
}

// MasksFor returns the masks that still cut into world rect r.
func (c ClipChain) MasksFor(r geom.Rect) []MaskClip {
	var out []MaskClip
	for _, m := range c.Masks {
		if !m.Inner.IsEmpty() && m.Inner.Contains(r) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// CombinedClip collects the clip regions on the path from the root to
// id. The path is applied root first; a clip that already contains
// everything its ancestors let through adds nothing and is skipped.
func (t *Tree) CombinedClip(id NodeID) ClipChain {
	if !t.valid(id) {
		return ClipChain{}
	}
	if t.dirty {
		t.UpdateTransforms()
	}
	var chain ClipChain
	acc := t.viewport
	var path []NodeID
	for cur := id; cur != Root; cur = t.nodes[cur].Parent {
		path = append(path, cur)
	}
	for i := len(path) - 1; i >= 0; i-- {
		cur := path[i]
		n := &t.nodes[cur]
		if n.Kind == ReferenceFrame {
			continue
		}
		parentWorld := t.nodes[n.Parent].World
		var local geom.Rect
		if n.Kind == ScrollFrame {
			local = n.FrameRect
		} else {
			local = n.Region.Rect
		}
		world := parentWorld.ApplyRect(local)
		rotated := !parentWorld.IsAxisAligned()
		if !local.IsEmpty() && !world.Contains(acc) {
			acc = acc.Intersect(world)
			if rotated {
				chain.Masks = append(chain.Masks, MaskClip{Node: cur, Layer: n.Parent, Transform: parentWorld, Rect: local})
			}
		}
		if n.Kind != Clip {
			continue
		}
		for _, c := range n.Region.Complex {
			cw := parentWorld.ApplyRect(c.Rect)
			var inner geom.Rect
			if !rotated {
				inner = parentWorld.ApplyRect(c.Radii.InnerRect(c.Rect))
			}
			if !inner.IsEmpty() && inner.Contains(acc) {
				continue
			}
			acc = acc.Intersect(cw)
			if !c.Radii.IsZero() || rotated {
				chain.Masks = append(chain.Masks, MaskClip{
					Node: cur, Layer: n.Parent, Transform: parentWorld,
					Rect: c.Rect, Radii: c.Radii, Inner: inner,
				})
			}
		}
		if m := n.Region.Mask; m != nil {
			acc = acc.Intersect(parentWorld.ApplyRect(m.Rect))
			chain.Masks = append(chain.Masks, MaskClip{
				Node: cur, Layer: n.Parent, Transform: parentWorld, Rect: m.Rect, Image: m,
			})
		}
	}
	chain.Rect = acc
	return chain
}
