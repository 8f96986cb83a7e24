package wr

import (
	"log/slog"

	"github.com/gogpu/wr/geom"
)

// Option configures a Renderer during creation.
// Use functional options to customize renderer behavior.
//
// Example:
//
//	// Defaults: 4 build workers, transparent clear colour
//	r, api, err := wr.NewRenderer(dev)
//
//	// HiDPI output with a white background
//	r, api, err := wr.NewRenderer(dev,
//		wr.WithDevicePixelRatio(2),
//		wr.WithClearColor(geom.RGBA(1, 1, 1, 1)))
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	devicePixelRatio float32
	clearColor       geom.ColorF
	clearFramebuffer bool
	maxTextureSize   int
	atlasSize        int
	workers          int
	debug            bool
	subpixelAA       bool
	notifier         Notifier
	frameQueue       int
	logger           *slog.Logger
}

// Defaults used when an option is not given.
const (
	DefaultWorkers    = 4
	DefaultFrameQueue = 4
)

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		devicePixelRatio: 1,
		clearFramebuffer: true,
		workers:          DefaultWorkers,
		frameQueue:       DefaultFrameQueue,
	}
}

// WithDevicePixelRatio scales display list coordinates to device pixels.
func WithDevicePixelRatio(ratio float32) Option {
	return func(o *options) {
		if ratio > 0 {
			o.devicePixelRatio = ratio
		}
	}
}

// WithClearColor sets the colour the framebuffer is cleared to before
// each frame. Like display list colours it is not premultiplied.
func WithClearColor(c geom.ColorF) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithClearFramebuffer controls whether Render clears the framebuffer.
// Disable it when the caller composites the frame over existing content.
func WithClearFramebuffer(clear bool) Option {
	return func(o *options) {
		o.clearFramebuffer = clear
	}
}

// WithMaxTextureSize lowers the texture size limit below the device's.
// The texture cache and render targets never exceed it.
func WithMaxTextureSize(n int) Option {
	return func(o *options) {
		o.maxTextureSize = n
	}
}

// WithAtlasSize sets the initial edge length of texture cache layers.
func WithAtlasSize(n int) Option {
	return func(o *options) {
		o.atlasSize = n
	}
}

// WithWorkers sets the number of frame building workers. One or less
// builds on the backend goroutine alone.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDebug enables internal consistency checks that panic on failure.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithEnableSubpixelAA enables subpixel glyph positioning.
func WithEnableSubpixelAA(enable bool) Option {
	return func(o *options) {
		o.subpixelAA = enable
	}
}

// WithNotifier registers callbacks for backend events. Callbacks run on
// the backend goroutine and must not block.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithFrameQueue sets how many backend results may wait for Update
// before the backend blocks.
func WithFrameQueue(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.frameQueue = n
		}
	}
}

// WithLogger sets the logger for the renderer and its backend. Without
// it the package logger (see SetLogger) is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
