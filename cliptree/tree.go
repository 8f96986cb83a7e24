// Package cliptree maintains the clip/scroll tree: reference frames,
// scroll frames and clip nodes that map primitive local coordinates to
// world space and accumulate clipping.
package cliptree

import (
	"errors"
	"fmt"

	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
)

// ErrInvalidNode is returned for a node id that does not belong to the
// tree.
var ErrInvalidNode = errors.New("cliptree: invalid node")

// NodeID indexes a node. IDs are assigned in creation order and stay
// valid for the lifetime of the tree.
type NodeID int32

// Root is the root reference frame of every tree.
const Root NodeID = 0

// NodeKind distinguishes the three node variants.
type NodeKind uint8

const (
	ReferenceFrame NodeKind = iota
	ScrollFrame
	Clip
)

func (k NodeKind) String() string {
	switch k {
	case ReferenceFrame:
		return "reference_frame"
	case ScrollFrame:
		return "scroll_frame"
	case Clip:
		return "clip"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// Node is one tree node. Fields below the separator are recomputed by
// UpdateTransforms.
type Node struct {
	Kind   NodeKind
	Parent NodeID

	// Transform is the reference frame transform into the parent.
	Transform geom.Transform

	// Scroll frame state. FrameRect is in the parent's space; content is
	// positioned in the same space and moved by -Offset.
	ScrollID    display.ScrollID
	FrameRect   geom.Rect
	ContentSize geom.Size
	Sensitivity display.ScrollSensitivity
	Offset      geom.Point

	// Region is the clip of a clip node, in the parent's space. An empty
	// Region.Rect does not clip.
	Region display.ClipRegion

	// World maps this node's local space to world space.
	World geom.Transform
	// WorldClip bounds, in world space, everything this node may draw.
	WorldClip geom.Rect

	children []NodeID
}

// MaxOffset returns the largest valid scroll offset of a scroll frame.
func (n *Node) MaxOffset() geom.Point {
	return geom.Point{
		X: max(0, n.ContentSize.W-n.FrameRect.Width()),
		Y: max(0, n.ContentSize.H-n.FrameRect.Height()),
	}
}

// clampOffset keeps an offset inside the scrollable range. NaN maps to
// zero.
func (n *Node) clampOffset(p geom.Point) geom.Point {
	m := n.MaxOffset()
	return geom.Point{X: geom.Clamp(p.X, 0, m.X), Y: geom.Clamp(p.Y, 0, m.Y)}
}

// Tree is a clip/scroll tree. It is not safe for concurrent mutation;
// readers may share it once UpdateTransforms has run.
type Tree struct {
	nodes    []Node
	viewport geom.Rect
	scrolls  map[display.ScrollID]NodeID
	dirty    bool
}

// New creates a tree whose root reference frame is clipped to viewport.
func New(viewport geom.Rect) *Tree {
	t := &Tree{
		viewport: viewport,
		scrolls:  make(map[display.ScrollID]NodeID),
		dirty:    true,
	}
	t.nodes = append(t.nodes, Node{Kind: ReferenceFrame, Parent: -1, Transform: geom.Identity()})
	t.UpdateTransforms()
	return t
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Viewport returns the root clip.
func (t *Tree) Viewport() geom.Rect { return t.viewport }

// Node returns a node. The pointer is valid until the next Add call.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	if !t.valid(id) {
		return nil, false
	}
	return &t.nodes[id], true
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) add(parent NodeID, n Node) (NodeID, error) {
	if !t.valid(parent) {
		return 0, fmt.Errorf("%w: parent %d", ErrInvalidNode, parent)
	}
	n.Parent = parent
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	t.dirty = true
	return id, nil
}

// AddReferenceFrame adds a node whose content is transformed by tr.
func (t *Tree) AddReferenceFrame(parent NodeID, tr geom.Transform) (NodeID, error) {
	return t.add(parent, Node{Kind: ReferenceFrame, Transform: tr})
}

// AddScrollFrame adds a scrollable viewport. A zero id makes the frame
// unaddressable by ScrollTo.
func (t *Tree) AddScrollFrame(parent NodeID, sf display.ScrollFrame) (NodeID, error) {
	id, err := t.add(parent, Node{
		Kind:        ScrollFrame,
		ScrollID:    sf.ID,
		FrameRect:   sf.Frame,
		ContentSize: sf.ContentSize,
		Sensitivity: sf.Sensitivity,
	})
	if err == nil && sf.ID != 0 {
		t.scrolls[sf.ID] = id
	}
	return id, err
}

// AddClip adds a clip node.
func (t *Tree) AddClip(parent NodeID, region display.ClipRegion) (NodeID, error) {
	return t.add(parent, Node{Kind: Clip, Region: region})
}

// SetTransform replaces the transform of a reference frame.
func (t *Tree) SetTransform(id NodeID, tr geom.Transform) error {
	if !t.valid(id) || t.nodes[id].Kind != ReferenceFrame {
		return fmt.Errorf("%w: %d is not a reference frame", ErrInvalidNode, id)
	}
	t.nodes[id].Transform = tr
	t.dirty = true
	return nil
}

// ScrollFrameByID finds the node of an external scroll id.
func (t *Tree) ScrollFrameByID(id display.ScrollID) (NodeID, bool) {
	n, ok := t.scrolls[id]
	return n, ok
}

// ScrollTo sets the offset of a scroll frame, clamped to its range.
// It reports whether the offset changed.
func (t *Tree) ScrollTo(id display.ScrollID, offset geom.Point) bool {
	nid, ok := t.scrolls[id]
	if !ok {
		return false
	}
	n := &t.nodes[nid]
	next := n.clampOffset(offset)
	if next == n.Offset {
		return false
	}
	n.Offset = next
	t.dirty = true
	return true
}

// Scroll moves the deepest input-sensitive scroll frame under cursor by
// delta. Transforms must be current. It reports whether anything moved.
func (t *Tree) Scroll(delta, cursor geom.Point) bool {
	if t.dirty {
		t.UpdateTransforms()
	}
	target := NodeID(-1)
	depth := -1
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.Kind != ScrollFrame || n.Sensitivity != display.ScrollInputEvents {
			continue
		}
		if !t.frameWorldRect(n).ContainsPoint(cursor) {
			continue
		}
		if d := t.depth(NodeID(i)); d > depth {
			target, depth = NodeID(i), d
		}
	}
	if target < 0 {
		return false
	}
	n := &t.nodes[target]
	next := n.clampOffset(n.Offset.Add(delta))
	if next == n.Offset {
		return false
	}
	n.Offset = next
	t.dirty = true
	return true
}

func (t *Tree) frameWorldRect(n *Node) geom.Rect {
	parent := &t.nodes[n.Parent]
	return parent.World.ApplyRect(n.FrameRect).Intersect(parent.WorldClip)
}

func (t *Tree) depth(id NodeID) int {
	d := 0
	for id != Root {
		id = t.nodes[id].Parent
		d++
	}
	return d
}

// ScrollOffsets returns the offsets of all addressable scroll frames.
func (t *Tree) ScrollOffsets() map[display.ScrollID]geom.Point {
	out := make(map[display.ScrollID]geom.Point, len(t.scrolls))
	for sid, nid := range t.scrolls {
		if off := t.nodes[nid].Offset; off != (geom.Point{}) {
			out[sid] = off
		}
	}
	return out
}

// RestoreScrollOffsets reapplies offsets saved from a previous tree.
// Unknown ids are ignored.
func (t *Tree) RestoreScrollOffsets(offsets map[display.ScrollID]geom.Point) {
	for sid, off := range offsets {
		t.ScrollTo(sid, off)
	}
}

// UpdateTransforms recomputes world transforms and accumulated clips in
// a pre-order walk from the root, so every parent is final before its
// children are visited.
func (t *Tree) UpdateTransforms() {
	stack := []NodeID{Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.updateNode(id)
		children := t.nodes[id].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	t.dirty = false
}

func (t *Tree) updateNode(id NodeID) {
	n := &t.nodes[id]
	if id == Root {
		n.World = n.Transform
		n.WorldClip = t.viewport
		return
	}
	parent := &t.nodes[n.Parent]
	switch n.Kind {
	case ReferenceFrame:
		n.World = parent.World.Mul(n.Transform)
		n.WorldClip = parent.WorldClip
	case ScrollFrame:
		n.World = parent.World.Mul(geom.Translation(-n.Offset.X, -n.Offset.Y))
		n.WorldClip = parent.World.ApplyRect(n.FrameRect).Intersect(parent.WorldClip)
	case Clip:
		n.World = parent.World
		n.WorldClip = parent.WorldClip
		if !n.Region.Rect.IsEmpty() {
			n.WorldClip = n.WorldClip.Intersect(parent.World.ApplyRect(n.Region.Rect))
		}
		for _, c := range n.Region.Complex {
			n.WorldClip = n.WorldClip.Intersect(parent.World.ApplyRect(c.Rect))
		}
	}
}

// Dirty reports whether transforms are stale.
func (t *Tree) Dirty() bool { return t.dirty }

// WorldRect projects a local rect of node into world space and clips it
// by the node's accumulated clip. The result is false when nothing
// remains visible.
func (t *Tree) WorldRect(id NodeID, local geom.Rect) (geom.Rect, bool) {
	if !t.valid(id) {
		return geom.Rect{}, false
	}
	n := &t.nodes[id]
	r := n.World.ApplyRect(local).Intersect(n.WorldClip)
	return r, !r.IsEmpty()
}
