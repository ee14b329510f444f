package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/metaballs/metaballrt/rt/core"
)

const (
	MetaballParamsSize = 32
	SceneParamsSize    = 48
)

// MetaballParams mirrors the WGSL uniform block in metaball.wgsl.
//
//	struct MetaballParams {
//	  count: u32;          -- 0
//	  outline_size: f32;   -- 4
//	  camera_size: f32;    -- 8
//	  use_noise: u32;      -- 12
//	  viewport: vec2<f32>; -- 16
//	  time: f32;           -- 24
//	  _pad: f32;           -- 28
//	} -> 32 bytes
type MetaballParams struct {
	Count       uint32
	OutlineSize float32
	CameraSize  float32
	UseNoise    bool
	Viewport    [2]float32
	Time        float32
}

func ParamsFromComposite(p core.CompositeParams, viewportW, viewportH, time float32) MetaballParams {
	count := p.ParticleCount
	if count < 0 {
		count = 0
	}
	return MetaballParams{
		Count:       uint32(count),
		OutlineSize: clamp01(p.OutlineWidth),
		CameraSize:  p.SurfaceScale,
		UseNoise:    !p.Distortion.Empty(),
		Viewport:    [2]float32{viewportW, viewportH},
		Time:        time,
	}
}

func (p MetaballParams) Encode(buf []byte) []byte {
	if cap(buf) < MetaballParamsSize {
		buf = make([]byte, MetaballParamsSize)
	}
	buf = buf[:MetaballParamsSize]

	useNoise := uint32(0)
	if p.UseNoise {
		useNoise = 1
	}
	binary.LittleEndian.PutUint32(buf[0:], p.Count)
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.OutlineSize))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.CameraSize))
	binary.LittleEndian.PutUint32(buf[12:], useNoise)
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(p.Viewport[0]))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(p.Viewport[1]))
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(p.Time))
	binary.LittleEndian.PutUint32(buf[28:], 0)
	return buf
}

// SceneParams mirrors SceneParams in scene.wgsl.
type SceneParams struct {
	TopColor    [4]float32
	BottomColor [4]float32
	// Vignette is strength, radius, softness.
	Vignette [3]float32
}

func DefaultSceneParams() SceneParams {
	return SceneParams{
		TopColor:    [4]float32{0.08, 0.09, 0.14, 1},
		BottomColor: [4]float32{0.02, 0.02, 0.04, 1},
		Vignette:    [3]float32{0.6, 0.35, 0.5},
	}
}

func (p SceneParams) Encode() []byte {
	buf := make([]byte, SceneParamsSize)
	put := func(offset int, v float32) {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
	}
	for i, v := range p.TopColor {
		put(i*4, v)
	}
	for i, v := range p.BottomColor {
		put(16+i*4, v)
	}
	for i, v := range p.Vignette {
		put(32+i*4, v)
	}
	return buf
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
