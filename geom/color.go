package geom

// ColorF is a straight-alpha RGBA colour with components in [0, 1].
type ColorF struct {
	R, G, B, A float32
}

var (
	White       = ColorF{1, 1, 1, 1}
	Black       = ColorF{0, 0, 0, 1}
	Transparent = ColorF{}
)

// RGBA is shorthand for ColorF{r, g, b, a}.
func RGBA(r, g, b, a float32) ColorF { return ColorF{r, g, b, a} }

// IsOpaque reports whether the colour fully covers what is behind it.
func (c ColorF) IsOpaque() bool { return c.A >= 1 }

// Premultiplied returns c with RGB scaled by alpha.
func (c ColorF) Premultiplied() ColorF {
	return ColorF{c.R * c.A, c.G * c.A, c.B * c.A, c.A}
}

// Scale multiplies the alpha channel by a.
func (c ColorF) Scale(a float32) ColorF {
	return ColorF{c.R, c.G, c.B, c.A * a}
}

// ToRGBA8 returns the premultiplied colour quantised to 8 bits.
func (c ColorF) ToRGBA8() [4]uint8 {
	p := c.Premultiplied()
	return [4]uint8{unorm8(p.R), unorm8(p.G), unorm8(p.B), unorm8(p.A)}
}

func unorm8(v float32) uint8 {
	return uint8(Clamp(v, 0, 1)*255 + 0.5)
}
