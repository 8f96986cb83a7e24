package wr

import (
	"context"

	"github.com/gogpu/wr/display"
	"github.com/gogpu/wr/frame"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/resource"
)

// API sends scene and resource changes to the backend goroutine. It is
// safe for concurrent use. Messages are applied in the order they are
// sent; errors surface through Renderer.Update and Notifier.BuildFailed.
type API struct {
	msgs chan<- message
	done <-chan struct{}
}

// message is handled by the backend goroutine.
type message interface {
	apply(b *backend)
}

type (
	setDisplayList struct {
		list     *display.List
		viewport geom.Size
	}
	scrollTo struct {
		id     display.ScrollID
		offset geom.Point
	}
	scroll struct {
		delta, cursor geom.Point
	}
	updateProperties struct {
		props frame.Properties
	}
	addImage struct {
		key    display.ImageKey
		desc   resource.ImageDescriptor
		pixels []byte
		update bool
	}
	deleteImage struct {
		key display.ImageKey
	}
	addFont struct {
		key  display.FontKey
		data []byte
	}
	deleteFont struct {
		key display.FontKey
	}
	generateFrame struct{}
	flush         struct {
		done chan struct{}
	}
)

func (a *API) send(m message) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	select {
	case a.msgs <- m:
		return nil
	case <-a.done:
		return ErrClosed
	}
}

// SetDisplayList replaces the scene. viewport is the output size in
// device pixels. Scroll offsets of frames that keep their ScrollID carry
// over to the new scene. A malformed list is reported as a build failure
// and the previous scene stays current.
func (a *API) SetDisplayList(list *display.List, viewport geom.Size) error {
	return a.send(setDisplayList{list: list, viewport: viewport})
}

// ScrollTo sets the offset of the scroll frame id.
func (a *API) ScrollTo(id display.ScrollID, offset geom.Point) error {
	return a.send(scrollTo{id: id, offset: offset})
}

// Scroll scrolls the innermost input-sensitive scroll frame under cursor
// by delta.
func (a *API) Scroll(delta, cursor geom.Point) error {
	return a.send(scroll{delta: delta, cursor: cursor})
}

// UpdateProperties applies animated transforms and opacities to the
// current scene without rebuilding it.
func (a *API) UpdateProperties(props frame.Properties) error {
	return a.send(updateProperties{props: props})
}

// AddImage registers an image. The pixels must not be modified after the
// call.
func (a *API) AddImage(key display.ImageKey, desc resource.ImageDescriptor, pixels []byte) error {
	return a.send(addImage{key: key, desc: desc, pixels: pixels})
}

// UpdateImage replaces the pixels of an image.
func (a *API) UpdateImage(key display.ImageKey, desc resource.ImageDescriptor, pixels []byte) error {
	return a.send(addImage{key: key, desc: desc, pixels: pixels, update: true})
}

// DeleteImage removes an image.
func (a *API) DeleteImage(key display.ImageKey) error {
	return a.send(deleteImage{key: key})
}

// AddFont registers an OpenType or TrueType font.
func (a *API) AddFont(key display.FontKey, data []byte) error {
	return a.send(addFont{key: key, data: data})
}

// DeleteFont removes a font and its cached glyphs.
func (a *API) DeleteFont(key display.FontKey) error {
	return a.send(deleteFont{key: key})
}

// GenerateFrame builds a frame from the current scene.
func (a *API) GenerateFrame() error {
	return a.send(generateFrame{})
}

// Flush waits until the backend has handled every message sent before
// it. The results of those messages are then visible to Update.
func (a *API) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := a.send(flush{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-a.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
