// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendertask

import (
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/gogpu/wr/geom"
)

var targetSize = image.Pt(256, 256)

func TestLeavesInPassZero(t *testing.T) {
	g := NewGraph(false, nil)
	mask := g.Add(Task{Kind: CacheMask, Target: AlphaTarget, Size: image.Pt(10, 10)})
	root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, mask)

	passes, err := g.AssignPasses(root, targetSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(passes) != 2 {
		t.Fatalf("len(passes) = %d, want 2", len(passes))
	}
	if g.Get(mask).Pass != 0 || g.Get(root).Pass != 1 {
		t.Errorf("passes = %d, %d, want 0, 1", g.Get(mask).Pass, g.Get(root).Pass)
	}
	if len(passes[1].Framebuffer) != 1 || passes[1].Framebuffer[0] != root {
		t.Errorf("framebuffer tasks = %v, want [%d]", passes[1].Framebuffer, root)
	}
	if len(passes[0].AlphaTargets) != 1 || len(passes[0].ColorTargets) != 0 {
		t.Errorf("pass 0 targets: %d alpha, %d colour, want 1, 0",
			len(passes[0].AlphaTargets), len(passes[0].ColorTargets))
	}
}

func TestPassOrderingRandomDAG(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := range 20 {
		g := NewGraph(false, nil)
		var ids []ID
		for i := range 40 {
			var deps []ID
			for j := 0; j < i; j++ {
				if rng.Intn(8) == 0 {
					deps = append(deps, ids[j])
				}
			}
			ids = append(ids, g.Add(Task{Kind: Picture, Size: image.Pt(8, 8)}, deps...))
		}
		root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, ids...)
		if _, err := g.AssignPasses(root, targetSize); err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		for _, task := range g.Tasks() {
			for _, d := range task.Children {
				if g.Get(d).Pass >= task.Pass {
					t.Fatalf("trial %d: dependency in pass %d, dependent in pass %d",
						trial, g.Get(d).Pass, task.Pass)
				}
			}
		}
	}
}

func TestCycle(t *testing.T) {
	build := func(debug bool) (*Graph, ID) {
		g := NewGraph(debug, nil)
		a := g.Add(Task{Kind: HorizontalBlur})
		b := g.Add(Task{Kind: VerticalBlur}, a)
		g.AddDependency(a, b)
		root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, b)
		return g, root
	}

	g, root := build(false)
	passes, err := g.AssignPasses(root, targetSize)
	if err != nil {
		t.Fatalf("AssignPasses() error = %v, want the cycle skipped", err)
	}
	if len(passes) != 1 || len(passes[0].Framebuffer) != 1 {
		t.Errorf("passes = %+v, want only the root", passes)
	}
	for id := range ID(2) {
		if p := g.Get(id).Pass; p != -1 {
			t.Errorf("task %d on the cycle has pass %d", id, p)
		}
	}
	if g.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", g.Skipped())
	}

	g, root = build(true)
	defer func() {
		if recover() == nil {
			t.Error("AssignPasses() with debug did not panic on a cycle")
		}
	}()
	g.AssignPasses(root, targetSize)
}

func TestCycleThroughRoot(t *testing.T) {
	g := NewGraph(false, nil)
	a := g.Add(Task{Kind: Picture, Size: image.Pt(8, 8)})
	root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, a)
	g.AddDependency(a, root)
	if _, err := g.AssignPasses(root, targetSize); !errors.Is(err, ErrCycle) {
		t.Errorf("AssignPasses() error = %v, want ErrCycle", err)
	}
}

func TestAliasSharesLocationAndPass(t *testing.T) {
	g := NewGraph(true, nil)
	pic := g.Add(Task{Kind: Picture, Size: image.Pt(20, 20), Origin: geom.Pt(5, 5)})
	alias := g.AddAlias(pic)
	user := g.Add(Task{Kind: HorizontalBlur, Size: image.Pt(20, 20)}, alias)
	root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, user)

	passes, err := g.AssignPasses(root, targetSize)
	if err != nil {
		t.Fatal(err)
	}
	a, p := g.Get(alias), g.Get(pic)
	if a.Pass != p.Pass {
		t.Errorf("alias pass = %d, want %d", a.Pass, p.Pass)
	}
	if a.Location != p.Location || a.Origin != p.Origin {
		t.Errorf("alias location = %+v, want %+v", a.Location, p.Location)
	}
	if g.Get(user).Pass != p.Pass+1 {
		t.Errorf("user pass = %d, want %d", g.Get(user).Pass, p.Pass+1)
	}
	if n := len(passes[p.Pass].ColorTargets[0].Tasks); n != 1 {
		t.Errorf("alias took target space: %d tasks in target", n)
	}
}

func TestTargetPackingNoOverlap(t *testing.T) {
	g := NewGraph(false, nil)
	var deps []ID
	for i := range 30 {
		deps = append(deps, g.Add(Task{Kind: Picture, Size: image.Pt(40+i, 30)}))
	}
	root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, deps...)
	passes, err := g.AssignPasses(root, image.Pt(128, 128))
	if err != nil {
		t.Fatal(err)
	}
	targets := passes[0].ColorTargets
	if len(targets) < 2 {
		t.Fatalf("expected spill into a second target, got %d", len(targets))
	}
	for ti, tg := range targets {
		for i, a := range tg.Tasks {
			ra := g.Get(a).Location.Rect
			if g.Get(a).Location.Target != ti {
				t.Errorf("task %d target = %d, want %d", a, g.Get(a).Location.Target, ti)
			}
			if !ra.In(image.Rect(0, 0, tg.Used.X, tg.Used.Y)) {
				t.Errorf("task %d rect %v outside used extent %v", a, ra, tg.Used)
			}
			for _, b := range tg.Tasks[i+1:] {
				if rb := g.Get(b).Location.Rect; ra.Overlaps(rb) {
					t.Errorf("tasks %d and %d overlap: %v %v", a, b, ra, rb)
				}
			}
		}
	}
}

func TestOversizedTaskClamped(t *testing.T) {
	g := NewGraph(false, nil)
	big := g.Add(Task{Kind: Picture, Size: image.Pt(1000, 50)})
	root := g.Add(Task{Kind: Picture, Location: Location{Fixed: true}}, big)
	if _, err := g.AssignPasses(root, targetSize); err != nil {
		t.Fatal(err)
	}
	if got := g.Get(big).Location.Rect.Size(); got != image.Pt(256, 50) {
		t.Errorf("clamped size = %v, want (256,50)", got)
	}
}

func TestTaskData(t *testing.T) {
	g := NewGraph(false, nil)
	mask := g.Add(Task{Kind: CacheMask, Target: AlphaTarget, Size: image.Pt(8, 4), Origin: geom.Pt(100, 50)})
	root := g.Add(Task{
		Kind:     Picture,
		Location: Location{Fixed: true, Rect: image.Rect(0, 0, 64, 64)},
		Params:   [2]float32{1, 2},
	}, mask)
	if _, err := g.AssignPasses(root, targetSize); err != nil {
		t.Fatal(err)
	}
	data := g.TaskData()
	if len(data) != 16 {
		t.Fatalf("len(TaskData()) = %d, want 16", len(data))
	}
	want := []float32{0, 0, 8, 4, 100, 50, 0, 0, 0, 0, 64, 64, 0, 0, 1, 2}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("TaskData()[%d] = %v, want %v", i, data[i], want[i])
		}
	}
}

func TestUnknownRoot(t *testing.T) {
	g := NewGraph(false, nil)
	if _, err := g.AssignPasses(3, targetSize); err == nil {
		t.Error("AssignPasses(unknown) = nil error")
	}
}
