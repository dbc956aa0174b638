package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/convolve.wgsl
var convolveShaderSource string

// Workgroup dimensions of the convolution shader.
const (
	workgroupX = 8
	workgroupY = 8
)

// compileShader compiles WGSL source to SPIR-V words.
func compileShader(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not a multiple of 4", len(spirv))
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

// workgroups returns the dispatch size covering width x height pixels.
func workgroups(width, height int) (uint32, uint32) {
	return uint32((width + workgroupX - 1) / workgroupX), uint32((height + workgroupY - 1) / workgroupY)
}
