package wr

import (
	"image"

	"github.com/gogpu/wr/device"
	"github.com/gogpu/wr/gpucache"
)

// targetKey names an offscreen target of the frame being drawn, in the
// terms batch texture sources use.
type targetKey struct {
	pass  int32
	alpha bool
	index uint32
}

type poolKey struct {
	size   image.Point
	format device.TextureFormat
}

// targetGranularity rounds target sizes up so that frames with slightly
// different target extents reuse the same textures.
const targetGranularity = 64

// targetPool recycles render target textures across frames. Targets not
// used by a frame are deleted when it ends.
type targetPool struct {
	free  map[poolKey][]device.TextureID
	used  map[poolKey][]device.TextureID
	bound map[targetKey]device.TextureID
}

func (p *targetPool) begin() {
	if p.free == nil {
		p.free = make(map[poolKey][]device.TextureID)
		p.used = make(map[poolKey][]device.TextureID)
		p.bound = make(map[targetKey]device.TextureID)
	}
	clear(p.bound)
}

func roundUp(v, limit int) int {
	v = (max(v, 1) + targetGranularity - 1) / targetGranularity * targetGranularity
	return min(v, limit)
}

func (p *targetPool) acquire(dev device.Device, key targetKey, size image.Point, format device.TextureFormat) (device.TextureID, error) {
	limit := dev.MaxTextureSize()
	pk := poolKey{size: image.Pt(roundUp(size.X, limit), roundUp(size.Y, limit)), format: format}
	var id device.TextureID
	if list := p.free[pk]; len(list) > 0 {
		id = list[len(list)-1]
		p.free[pk] = list[:len(list)-1]
	} else {
		var err error
		if id, err = dev.CreateTexture(pk.size.X, pk.size.Y, format, true); err != nil {
			return 0, err
		}
	}
	p.used[pk] = append(p.used[pk], id)
	p.bound[key] = id
	return id, nil
}

func (p *targetPool) lookup(key targetKey) (device.TextureID, bool) {
	id, ok := p.bound[key]
	return id, ok
}

// end deletes targets the frame did not need and returns the rest to
// the free list.
func (p *targetPool) end(dev device.Device) {
	for pk, list := range p.free {
		for _, id := range list {
			dev.DeleteTexture(id)
		}
		delete(p.free, pk)
	}
	p.free, p.used = p.used, p.free
}

func (p *targetPool) release(dev device.Device) {
	p.end(dev)
	p.end(dev)
}

// dataTexture is an RGBAF32 texture holding per-frame float data, laid
// out DataTextureWidth texels per row.
type dataTexture struct {
	id   device.TextureID
	rows int
	buf  []gpucache.Block
	enc  []byte
}

func (t *dataTexture) upload(dev device.Device, data []float32) error {
	texels := (len(data) + 3) / 4
	rows := max((texels+device.DataTextureWidth-1)/device.DataTextureWidth, 1)
	if rows > t.rows {
		if t.id != 0 {
			dev.DeleteTexture(t.id)
			t.id, t.rows = 0, 0
		}
		id, err := dev.CreateTexture(device.DataTextureWidth, rows, device.FormatRGBAF32, false)
		if err != nil {
			return err
		}
		t.id, t.rows = id, rows
	}
	if len(data) == 0 {
		return nil
	}
	n := rows * device.DataTextureWidth
	t.buf = append(t.buf[:0], make([]gpucache.Block, n)...)
	for i := range texels {
		copy(t.buf[i][:], data[i*4:])
	}
	t.enc = gpucache.EncodeBlocks(t.enc[:0], t.buf)
	return dev.UpdateTexture(t.id, image.Rect(0, 0, device.DataTextureWidth, rows), t.enc)
}

func (t *dataTexture) release(dev device.Device) {
	if t.id != 0 {
		dev.DeleteTexture(t.id)
	}
	*t = dataTexture{}
}
