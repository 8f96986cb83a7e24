// Package geom holds the small geometry vocabulary shared by every stage
// of the frame pipeline: float points and rects in layout space, 2D affine
// transforms, and premultiplied colours.
//
// Device pixel rectangles use image.Rectangle from the standard library.
package geom
