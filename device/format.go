package device

import "fmt"

// TextureFormat is the closed set of texel formats the pipeline uses.
type TextureFormat uint8

const (
	FormatInvalid TextureFormat = iota
	// FormatAlpha8 holds coverage: glyph bitmaps, clip masks, shadow profiles.
	FormatAlpha8
	// FormatRGBA8 holds premultiplied colour.
	FormatRGBA8
	// FormatRGBAF32 holds shader data blocks.
	FormatRGBAF32
)

// BytesPerPixel returns the texel size, or 0 for an invalid format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatAlpha8:
		return 1
	case FormatRGBA8:
		return 4
	case FormatRGBAF32:
		return 16
	}
	return 0
}

// Valid reports whether f is one of the defined formats.
func (f TextureFormat) Valid() bool { return f.BytesPerPixel() != 0 }

func (f TextureFormat) String() string {
	switch f {
	case FormatAlpha8:
		return "Alpha8"
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBAF32:
		return "RGBAF32"
	}
	return fmt.Sprintf("TextureFormat(%d)", uint8(f))
}

// CheckFormat returns ErrInvalidFormat unless f is a defined format.
func CheckFormat(f TextureFormat) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, f)
	}
	return nil
}
