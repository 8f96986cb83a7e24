package wr

import "errors"

// Errors returned by the renderer and its API.
var (
	// ErrClosed is returned after Renderer.Close.
	ErrClosed = errors.New("wr: renderer closed")

	// ErrNoFrame is returned by Render before the first frame arrives.
	ErrNoFrame = errors.New("wr: no frame to render")

	// ErrNoDisplayList is reported when a frame is requested before any
	// display list was set.
	ErrNoDisplayList = errors.New("wr: no display list")

	// ErrBuildFailed wraps every error the backend reports through
	// Update, so callers can tell scene errors from device errors.
	ErrBuildFailed = errors.New("wr: build failed")
)
