// Package device defines the abstract GPU device the renderer drives.
//
// The frame pipeline never talks to a graphics API directly. It creates
// and updates textures, binds targets and samplers, uploads instance
// records and issues instanced draws, all through the Device interface.
// Two implementations live below this package: soft, a CPU reference
// device used for pixel readback tests, and haldev, which drives
// github.com/gogpu/wgpu/hal.
//
// # Data textures
//
// Shaders read their parameters from three RGBAF32 data textures, each
// DataTextureWidth texels wide and addressed linearly (texel i lives at
// column i%DataTextureWidth, row i/DataTextureWidth):
//
//   - SamplerGPUCache holds primitive and clip blocks written by the GPU
//     cache. An Instance.Address is a packed block address.
//   - SamplerRenderTasks holds TaskTexels texels per render task: the
//     task rect in its target (x0, y0, x1, y1), then the world-space
//     content origin and two kind-specific parameters.
//   - SamplerTransforms holds TransformTexels texels per layer: the rows
//     (A, B, C, 0) and (D, E, F, 0) of the local-to-world transform.
package device

import (
	"errors"
	"image"

	"github.com/gogpu/wr/geom"
)

// DataTextureWidth is the width in texels of every data texture. It
// matches the widest vertex texture fetch supported by all targets.
const DataTextureWidth = 1024

// Texels per record in the task and transform data textures.
const (
	TaskTexels      = 2
	TransformTexels = 2
)

// Errors returned by devices.
var (
	ErrInvalidFormat  = errors.New("device: invalid texture format")
	ErrInvalidTexture = errors.New("device: unknown texture")
	ErrInvalidProgram = errors.New("device: unknown program")
	ErrTextureTooBig  = errors.New("device: texture exceeds max texture size")
	ErrShaderCompile  = errors.New("device: shader compilation failed")
	ErrClosed         = errors.New("device: closed")
)

// TextureID names a device texture. The zero value is the framebuffer
// when used as a render target and "nothing" when used as a source.
type TextureID uint32

// Framebuffer is the default render target.
const Framebuffer TextureID = 0

// ProgramID names a compiled shader program.
type ProgramID uint32

// Range is a half-open run of vertices or instances.
type Range struct {
	Start, Count int
}

// QuadVertices is the vertex range every instanced draw uses.
var QuadVertices = Range{Start: 0, Count: 6}

// Device is the capability set the renderer needs from a graphics API.
//
// A Device is used from a single goroutine, the one that owns the GPU
// context.
type Device interface {
	// MaxTextureSize is the largest width or height CreateTexture accepts.
	MaxTextureSize() int

	CreateTexture(width, height int, format TextureFormat, renderTarget bool) (TextureID, error)
	UpdateTexture(id TextureID, rect image.Rectangle, pixels []byte) error
	CopyTexture(dst TextureID, dstPt image.Point, src TextureID, srcRect image.Rectangle) error
	DeleteTexture(id TextureID)

	// CompileProgram builds the program for kind. An empty source selects
	// the device's built-in shader.
	CompileProgram(kind ShaderKind, source string) (ProgramID, error)
	DeleteProgram(id ProgramID)

	// BindTarget directs subsequent draws and clears at target.
	BindTarget(target TextureID) error
	BindTexture(slot Sampler, id TextureID)
	UploadInstances(instances []Instance) error
	Draw(program ProgramID, blend BlendMode, vertices, instances Range) error
	// Clear fills rect of target with a premultiplied colour. An empty
	// rect clears the whole target.
	Clear(target TextureID, rect image.Rectangle, color geom.ColorF) error

	// Resize sets the framebuffer size.
	Resize(width, height int) error
	// ReadPixels returns premultiplied RGBA8 rows of the framebuffer.
	ReadPixels(rect image.Rectangle) ([]byte, error)

	Close()
}
