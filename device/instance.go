package device

import "encoding/binary"

// Instance is the per-instance record every program reads. Field meaning
// per program:
//
//	primitives:      Address = primitive blocks, Task = target task,
//	                 ClipTask = mask task or -1, Layer = transform,
//	                 Sub = glyph or segment index, User0/User1 = kind data
//	ShaderClipRect:  Address = clip blocks, Task = mask task, Layer = transform
//	ShaderClipImage: as ShaderClipRect, User0 = uv block address
//	ShaderBlur:      Task = blur task, User0 = source task, User1 = direction
//	ShaderShadowProfile: Address = box shadow blocks, Task = profile task,
//	                 User1 = direction
type Instance struct {
	Address  int32
	Task     int32
	ClipTask int32
	Layer    int32
	Z        int32
	Sub      int32
	User0    int32
	User1    int32
}

// InstanceSize is the encoded size of an Instance in bytes.
const InstanceSize = 32

// NoClip marks an instance without a clip mask.
const NoClip int32 = -1

// Blur and shadow profile directions.
const (
	DirectionHorizontal int32 = 0
	DirectionVertical   int32 = 1
)

// AppendInstances encodes instances as little-endian int32 octets, the
// vertex buffer layout of the instanced programs.
func AppendInstances(dst []byte, instances []Instance) []byte {
	for _, in := range instances {
		for _, v := range [8]int32{in.Address, in.Task, in.ClipTask, in.Layer, in.Z, in.Sub, in.User0, in.User1} {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	}
	return dst
}

// TexelCoord maps a linear data-texture index to its column and row.
func TexelCoord(index int) (x, y int) {
	return index % DataTextureWidth, index / DataTextureWidth
}
