// Command wrshot renders a demo scene on the CPU device and writes it to
// a PNG file.
package main

import (
	"context"
	"flag"
	"image"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/wr"
	"github.com/gogpu/wr/device/soft"
	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/internal/reftest"
	"github.com/gogpu/wr/resource"
)

const fontKey display.FontKey = 1

func main() {
	var (
		width   = flag.Int("width", 640, "image width in CSS pixels")
		height  = flag.Int("height", 400, "image height in CSS pixels")
		dpr     = flag.Float64("dpr", 1, "device pixel ratio")
		output  = flag.String("output", "wrshot.png", "output file")
		text    = flag.String("text", "Hello from wr", "caption")
		verbose = flag.Bool("v", false, "log frame statistics")
	)
	flag.Parse()

	if *verbose {
		wr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	font, err := resource.ParseFont(goregular.TTF)
	if err != nil {
		log.Fatalf("Failed to parse font: %v", err)
	}

	scale := float32(*dpr)
	devW, devH := int(float32(*width)*scale), int(float32(*height)*scale)
	dev := soft.New(devW, devH)
	defer dev.Close()

	r, api, err := wr.NewRenderer(dev,
		wr.WithDevicePixelRatio(scale),
		wr.WithClearColor(geom.RGBA(0.96, 0.96, 0.94, 1)))
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Close()

	if err := api.AddFont(fontKey, goregular.TTF); err != nil {
		log.Fatal(err)
	}
	list := demoScene(geom.Sz(float32(*width), float32(*height)), font, *text)
	if err := api.SetDisplayList(list, geom.Sz(float32(devW), float32(devH))); err != nil {
		log.Fatal(err)
	}
	if err := api.GenerateFrame(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := api.Flush(ctx); err != nil {
		log.Fatalf("Backend did not finish: %v", err)
	}
	if _, err := r.Update(); err != nil {
		log.Fatalf("Frame failed: %v", err)
	}
	if err := r.Render(); err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	pix, err := r.ReadPixels(image.Rect(0, 0, devW, devH))
	if err != nil {
		log.Fatalf("Readback failed: %v", err)
	}
	img, err := reftest.FromPixels(devW, devH, pix)
	if err != nil {
		log.Fatal(err)
	}
	if err := reftest.SavePNG(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	st := r.Frame().Stats()
	log.Printf("Frame saved to %s (%dx%d, %d passes, %d batches)\n", *output, devW, devH, st.Passes, st.Batches)
}

func demoScene(size geom.Size, font *resource.Font, caption string) *display.List {
	db := display.NewBuilder(size)

	// Header gradient
	db.PushGradient(geom.R(0, 0, size.W, 80), geom.Pt(0, 0), geom.Pt(size.W, 0), []display.GradientStop{
		{Offset: 0, Color: geom.RGBA(0.16, 0.32, 0.62, 1)},
		{Offset: 1, Color: geom.RGBA(0.42, 0.18, 0.55, 1)},
	})

	// Card with a soft shadow and a rounded border
	card := geom.R(40, 110, 260, 160)
	db.PushBoxShadow(card.Inflate(30, 30), card, geom.Pt(4, 6), geom.RGBA(0, 0, 0, 0.35), 12, 0, display.ShadowOutset)
	db.PushClip(display.ClipRegion{Complex: []display.ComplexClip{{Rect: card, Radii: geom.UniformRadius(16)}}})
	db.PushRect(card, geom.White)
	db.PushRect(geom.R(card.Min.X, card.Min.Y, card.Width(), 40), geom.RGBA(0.95, 0.6, 0.2, 1))
	db.PopClip()
	db.PushBorder(card, geom.Uniform(2), geom.RGBA(0.2, 0.2, 0.2, 1), geom.UniformRadius(16))

	// Translucent overlapping group
	db.PushStackingContext(display.StackingContext{
		Bounds:  geom.R(340, 110, 260, 160),
		Filters: []display.Filter{{Kind: display.FilterOpacity, Value: 0.7}},
	})
	db.PushRect(geom.R(340, 110, 160, 110), geom.RGBA(0.1, 0.6, 0.3, 1))
	db.PushRect(geom.R(420, 160, 160, 110), geom.RGBA(0.1, 0.3, 0.8, 1))
	db.PopStackingContext()

	// Blurred group
	db.PushStackingContext(display.StackingContext{
		Bounds:  geom.R(340, 290, 120, 80),
		Filters: []display.Filter{{Kind: display.FilterBlur, Value: 3}},
	})
	db.PushRect(geom.R(360, 300, 80, 60), geom.RGBA(0.8, 0.1, 0.1, 1))
	db.PopStackingContext()

	const textSize = 24
	origin := geom.Pt(40, 50)
	glyphs := font.Layout(caption, textSize, origin)
	db.PushText(geom.R(0, 0, size.W, 80), fontKey, textSize, geom.White, glyphs)

	return db.Finalize()
}
