// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldev

import (
	"embed"
	"fmt"
	"strings"

	"github.com/gogpu/naga"

	"github.com/gogpu/wr/device"
)

// Embedded WGSL. Every program is prelude + vertex stage + fragment stage.
//
//go:embed shaders/*.wgsl
var shaderFS embed.FS

// fillsTask reports whether kind covers a whole render task rather than
// a primitive's local rect.
func fillsTask(kind device.ShaderKind) bool {
	switch kind {
	case device.ShaderClipRect, device.ShaderClipImage, device.ShaderBlur, device.ShaderShadowProfile:
		return true
	}
	return false
}

func readShader(name string) (string, error) {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		return "", fmt.Errorf("haldev: missing shader %s: %w", name, err)
	}
	return string(b), nil
}

// Source returns the WGSL module for kind. A non-empty fragment replaces
// the built-in fragment stage; it sees the shared declarations and the
// kind's vertex outputs.
func Source(kind device.ShaderKind, fragment string) (string, error) {
	if kind >= device.ShaderKind(len(device.ShaderKinds())) {
		return "", fmt.Errorf("%w: unknown shader %v", device.ErrShaderCompile, kind)
	}
	prelude, err := readShader("prelude.wgsl")
	if err != nil {
		return "", err
	}
	stage := "prim.wgsl"
	if fillsTask(kind) {
		stage = "task.wgsl"
	}
	vertex, err := readShader(stage)
	if err != nil {
		return "", err
	}
	if fragment == "" {
		if fragment, err = readShader(kind.String() + ".wgsl"); err != nil {
			return "", err
		}
	}
	var sb strings.Builder
	for _, part := range []string{prelude, vertex, fragment} {
		sb.WriteString(part)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// compileSPIRV translates WGSL to SPIR-V words.
func compileSPIRV(src string) ([]uint32, error) {
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}
