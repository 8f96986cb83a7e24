package device

import "fmt"

// ShaderKind selects a shader program.
type ShaderKind uint8

const (
	ShaderRectangle ShaderKind = iota
	ShaderImage
	ShaderText
	ShaderBorder
	ShaderGradient
	ShaderBoxShadow
	// ShaderComposite draws a finished picture task into its parent.
	ShaderComposite
	// ShaderClipRect writes rounded-rect coverage into a mask task.
	ShaderClipRect
	// ShaderClipImage writes image-mask coverage into a mask task.
	ShaderClipImage
	// ShaderBlur runs one direction of a separable Gaussian blur.
	ShaderBlur
	// ShaderShadowProfile writes one axis of an analytic box-shadow blur.
	ShaderShadowProfile

	numShaderKinds
)

// ShaderKinds lists every program the renderer compiles at start-up.
func ShaderKinds() []ShaderKind {
	kinds := make([]ShaderKind, numShaderKinds)
	for i := range kinds {
		kinds[i] = ShaderKind(i)
	}
	return kinds
}

var shaderNames = [numShaderKinds]string{
	"rectangle", "image", "text", "border", "gradient", "box_shadow",
	"composite", "clip_rect", "clip_image", "blur", "shadow_profile",
}

func (k ShaderKind) String() string {
	if k < numShaderKinds {
		return shaderNames[k]
	}
	return fmt.Sprintf("ShaderKind(%d)", uint8(k))
}

// BlendMode is the fixed-function blend state of a draw.
type BlendMode uint8

const (
	// BlendNone overwrites the target.
	BlendNone BlendMode = iota
	// BlendAlpha is premultiplied source-over.
	BlendAlpha
	// BlendMultiply multiplies the target by the source. Clip masks use it
	// to intersect coverage.
	BlendMultiply
	// BlendMixMultiply is the multiply mix-blend mode for premultiplied
	// colour: src*dst + dst*(1-srcAlpha). It is exact over an opaque
	// backdrop.
	BlendMixMultiply
	// BlendScreen is src + dst - src*dst.
	BlendScreen
	// BlendSubpixel is per-channel source-over for subpixel text.
	BlendSubpixel
)

func (b BlendMode) String() string {
	switch b {
	case BlendNone:
		return "none"
	case BlendAlpha:
		return "alpha"
	case BlendMultiply:
		return "multiply"
	case BlendMixMultiply:
		return "mix_multiply"
	case BlendScreen:
		return "screen"
	case BlendSubpixel:
		return "subpixel"
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(b))
}

// Sampler is a texture binding slot.
type Sampler uint8

const (
	SamplerColor0 Sampler = iota
	SamplerColor1
	// SamplerMask is the clip mask target of the previous passes.
	SamplerMask
	SamplerGPUCache
	SamplerRenderTasks
	SamplerTransforms

	NumSamplers
)
