// Package wr is a retained-mode, tile-based GPU renderer for 2D scenes.
//
// # Overview
//
// Clients describe what to draw as a display list: stacking contexts,
// clips, scroll frames and a handful of primitive kinds (rectangles,
// images, text, borders, gradients and box shadows). wr flattens the list
// into a scene, builds frames from it on a backend goroutine and draws
// them with a small set of instanced shaders through an abstract device.
//
// # Quick Start
//
//	dev := soft.New(800, 600) // or haldev.New(halDevice, halQueue, 800, 600)
//	r, api, err := wr.NewRenderer(dev, wr.WithClearColor(geom.White))
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	db := display.NewBuilder(geom.Sz(800, 600))
//	db.PushRect(geom.R(10, 10, 100, 50), geom.RGBA(1, 0, 0, 1))
//	api.SetDisplayList(db.Finalize(), geom.Sz(800, 600))
//	api.GenerateFrame()
//
//	// On the goroutine that owns the device, once per vsync:
//	if _, err := r.Update(); err != nil {
//		log.Print(err)
//	}
//	r.Render()
//
// # Threads
//
// The API may be used from any goroutine. Scene building, culling,
// batching and all cache bookkeeping happen on the backend goroutine.
// Update and Render run on the device goroutine; Update never blocks and
// Render waits for the device only in ReadPixels.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Renderer, API, Option, Notifier
//   - Scene: display (display lists), cliptree (clip/scroll tree), prim (primitive store)
//   - Frame building: frame, rendertask (task graph and passes), batch
//   - Caches: texcache (texture atlas cache), gpucache (data texture), resource (images, fonts, glyphs)
//   - Devices: device (interface), device/soft (CPU reference), device/haldev (wgpu HAL)
//
// # Coordinate System
//
// Uses standard computer graphics coordinates:
//   - Origin (0,0) at top-left
//   - X increases right
//   - Y increases down
//
// Display list coordinates are scaled by the device pixel ratio.
// Colours in display lists are straight alpha; everything past the
// primitive store is premultiplied.
package wr

// Version is the current version of the library.
const Version = "0.1.0"
