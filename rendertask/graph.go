// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rendertask builds the per-frame render task graph: offscreen
// work (pictures, blurs, clip masks) that must finish before the tasks
// that sample it, grouped into passes and packed into render targets.
package rendertask

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/wr/cliptree"
	"github.com/gogpu/wr/geom"
)

// ErrCycle reports a dependency cycle. Construction never creates one,
// so it indicates a bug in the caller. Outside debug mode only a cycle
// through the root is fatal; other cycles are dropped.
var ErrCycle = errors.New("rendertask: dependency cycle")

// Kind tags a task.
type Kind uint8

const (
	CacheMask Kind = iota
	VerticalBlur
	HorizontalBlur
	// Readback copies framebuffer content for blend modes the device
	// cannot do in fixed function. The supported modes never need it.
	Readback
	Picture
	// Alias shares the output of another task and draws nothing.
	Alias
)

var kindNames = [...]string{"cache_mask", "vertical_blur", "horizontal_blur", "readback", "picture", "alias"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ID indexes a task in its graph. NoTask is -1 so that IDs can be stored
// directly in instance records.
type ID int32

const NoTask ID = -1

// TargetKind selects colour (RGBA8) or alpha (Alpha8) targets.
type TargetKind uint8

const (
	ColorTarget TargetKind = iota
	AlphaTarget
)

// Location is where a task writes its output.
type Location struct {
	// Fixed targets the framebuffer; Rect is then the viewport.
	Fixed  bool
	Target int // index into the pass's targets of the task's kind
	Rect   image.Rectangle
}

// Task is one node of the graph.
type Task struct {
	Kind     Kind
	Target   TargetKind
	Size     image.Point
	Location Location
	Children []ID
	Pass     int

	// Origin is the world position drawn at the task's top-left pixel.
	Origin geom.Point

	// Kind payloads.
	Picture    int                 // Picture: stacking context index
	Clips      []cliptree.MaskClip // CacheMask: clips to intersect
	BlurRadius float32             // blurs
	// Profile is the packed GPU cache address of the box shadow whose
	// analytic blur profile a blur task renders; -1 for a Gaussian blur
	// of Children[0].
	Profile int32
	AliasOf ID
	// Params are two kind-specific floats exported with the task data.
	Params [2]float32
}

// Graph is the task DAG of one frame.
type Graph struct {
	tasks   []Task
	debug   bool
	logger  *slog.Logger
	skipped int
}

// NewGraph returns an empty graph. With debug set, AssignPasses panics
// on a cycle or a misordered pass instead of recovering.
func NewGraph(debug bool, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Graph{debug: debug, logger: logger}
}

// Add appends a task that depends on deps.
func (g *Graph) Add(t Task, deps ...ID) ID {
	if t.Kind != VerticalBlur && t.Kind != HorizontalBlur {
		t.Profile = -1
	}
	t.Children = append(t.Children, deps...)
	g.tasks = append(g.tasks, t)
	return ID(len(g.tasks) - 1)
}

// AddAlias adds a task that shares of's output.
func (g *Graph) AddAlias(of ID) ID {
	return g.Add(Task{Kind: Alias, AliasOf: of, Profile: -1}, of)
}

// Get returns a task. The pointer is valid until the next Add.
func (g *Graph) Get(id ID) *Task {
	if id < 0 || int(id) >= len(g.tasks) {
		return nil
	}
	return &g.tasks[id]
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Tasks returns every task in creation order.
func (g *Graph) Tasks() []Task { return g.tasks }

// AddDependency makes task depend on dep.
func (g *Graph) AddDependency(task, dep ID) {
	t := &g.tasks[task]
	t.Children = append(t.Children, dep)
}

const (
	white = iota
	grey
	black
	cyclic // on a dependency cycle, never scheduled
)

// assignPassIndices sets Task.Pass for every task reachable from root in
// a depth-first post-order walk: leaves get pass 0 and every other task
// one more than its deepest dependency. An alias is the exception: it
// takes the pass of the task it aliases, and its dependents come after
// both.
func (g *Graph) assignPassIndices(root ID) (int, error) {
	state := make([]uint8, len(g.tasks))
	type frame struct {
		id   ID
		next int
	}
	stack := []frame{{id: root}}
	state[root] = grey
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		t := &g.tasks[top.id]
		if top.next < len(t.Children) {
			child := t.Children[top.next]
			top.next++
			if child < 0 || int(child) >= len(g.tasks) {
				return 0, fmt.Errorf("rendertask: task %d depends on unknown task %d", top.id, child)
			}
			switch state[child] {
			case grey:
				err := fmt.Errorf("%w: task %d -> task %d", ErrCycle, top.id, child)
				if g.debug {
					return 0, err
				}
				g.logger.Warn("rendertask: dropping tasks on a cycle", "err", err)
				// The cycle is the stack from child up.
				k := len(stack) - 1
				for stack[k].id != child {
					k--
				}
				for _, f := range stack[k:] {
					state[f.id] = cyclic
					g.tasks[f.id].Pass = -1
					g.skipped++
				}
				stack = stack[:k]
			case white:
				state[child] = grey
				stack = append(stack, frame{id: child})
			}
			continue
		}
		pass := 0
		for _, c := range t.Children {
			if state[c] != cyclic {
				pass = max(pass, g.tasks[c].Pass+1)
			}
		}
		if t.Kind == Alias {
			pass = g.tasks[t.AliasOf].Pass
		}
		t.Pass = pass
		state[top.id] = black
		stack = stack[:len(stack)-1]
	}
	if state[root] == cyclic {
		return 0, fmt.Errorf("%w: through root task %d", ErrCycle, root)
	}
	return g.tasks[root].Pass + 1, nil
}

// checkOrder panics when a task is scheduled no later than one of its
// dependencies, or an alias away from the task it aliases.
func (g *Graph) checkOrder() {
	for i := range g.tasks {
		t := &g.tasks[i]
		if t.Pass < 0 {
			continue
		}
		if t.Kind == Alias {
			if p := g.tasks[t.AliasOf].Pass; p != t.Pass {
				panic(fmt.Sprintf("rendertask: alias %d in pass %d, aliased task in pass %d", i, t.Pass, p))
			}
			continue
		}
		for _, c := range t.Children {
			if p := g.tasks[c].Pass; p >= t.Pass {
				panic(fmt.Sprintf("rendertask: task %d in pass %d depends on task %d in pass %d", i, t.Pass, c, p))
			}
		}
	}
}

// Skipped returns the number of tasks dropped from the last AssignPasses
// because they were on a dependency cycle.
func (g *Graph) Skipped() int { return g.skipped }

// AssignPasses assigns every task reachable from root to a pass and
// packs the dynamic tasks of each pass into targets of targetSize.
// Unreachable tasks and tasks on a dependency cycle keep Pass -1 and are
// not scheduled.
func (g *Graph) AssignPasses(root ID, targetSize image.Point) ([]Pass, error) {
	if g.Get(root) == nil {
		return nil, fmt.Errorf("rendertask: unknown root task %d", root)
	}
	for i := range g.tasks {
		g.tasks[i].Pass = -1
	}
	g.skipped = 0
	n, err := g.assignPassIndices(root)
	if err != nil {
		if g.debug {
			panic(err)
		}
		g.logger.Warn("rendertask: pass assignment failed", "err", err)
		return nil, err
	}
	if g.debug {
		g.checkOrder()
	}

	passes := make([]Pass, n)
	for i := range passes {
		passes[i].Index = i
	}
	for i := range g.tasks {
		if p := g.tasks[i].Pass; p >= 0 {
			passes[p].Tasks = append(passes[p].Tasks, ID(i))
		}
	}
	for i := range passes {
		g.allocateTargets(&passes[i], targetSize)
	}
	for i := range g.tasks {
		if t := &g.tasks[i]; t.Kind == Alias && t.Pass >= 0 {
			t.Location = g.resolve(t.AliasOf).Location
			t.Target = g.resolve(t.AliasOf).Target
			t.Origin = g.resolve(t.AliasOf).Origin
		}
	}
	return passes, nil
}

// resolve follows alias chains.
func (g *Graph) resolve(id ID) *Task {
	t := &g.tasks[id]
	for t.Kind == Alias {
		t = &g.tasks[t.AliasOf]
	}
	return t
}
