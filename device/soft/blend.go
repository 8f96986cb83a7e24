// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import "github.com/gogpu/wr/device"

// color is a premultiplied RGBA value in [0, 1].
type color [4]float32

func (c color) scale(s float32) color {
	return color{c[0] * s, c[1] * s, c[2] * s, c[3] * s}
}

func lerp(a, b color, t float32) color {
	var out color
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
	return out
}

// blend combines a source fragment with the destination texel.
func blend(mode device.BlendMode, src, dst color) color {
	var out color
	switch mode {
	case device.BlendNone:
		return src
	case device.BlendMultiply:
		for i := range out {
			out[i] = src[i] * dst[i]
		}
	case device.BlendMixMultiply:
		for i := range out {
			out[i] = src[i]*dst[i] + dst[i]*(1-src[3])
		}
		out[3] = src[3] + dst[3]*(1-src[3])
	case device.BlendScreen:
		for i := range out {
			out[i] = src[i] + dst[i] - src[i]*dst[i]
		}
	default:
		// Alpha and subpixel. Coverage is greyscale here, so subpixel
		// text reduces to source-over.
		for i := range out {
			out[i] = src[i] + dst[i]*(1-src[3])
		}
	}
	return out
}
