package core

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"math"
	"math/rand"
	"os"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// NoiseTexture is the distortion texture handed through to the compositor.
// Texels are tightly packed RGBA8. A nil *NoiseTexture means no distortion.
type NoiseTexture struct {
	ID     AssetId
	Width  uint32
	Height uint32
	Texels []uint8
}

func (t *NoiseTexture) Empty() bool {
	return t == nil || t.Width == 0 || t.Height == 0 || len(t.Texels) == 0
}

// NewNoiseTexture wraps an image, converting to RGBA8 if needed.
func NewNoiseTexture(img image.Image) *NoiseTexture {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &NoiseTexture{
		ID:     makeAssetId(),
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Texels: rgba.Pix,
	}
}

// LoadNoiseTexture decodes a PNG, BMP, TIFF or WebP file.
func LoadNoiseTexture(path string) (*NoiseTexture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open noise texture: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode noise texture %q: %w", path, err)
	}
	tex := NewNoiseTexture(img)
	if tex.Empty() {
		return nil, fmt.Errorf("noise texture %q (%s) is empty", path, format)
	}
	return tex, nil
}

// NewProceduralNoise builds a tileable value-noise texture. The red and green
// channels carry two decorrelated octaves so the shader can offset in x and y.
func NewProceduralNoise(width, height int, seed int64) *NoiseTexture {
	if width <= 0 || height <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))

	const lattice = 8
	var gridR, gridG [lattice][lattice]float32
	for y := 0; y < lattice; y++ {
		for x := 0; x < lattice; x++ {
			gridR[y][x] = rng.Float32()
			gridG[y][x] = rng.Float32()
		}
	}

	sample := func(grid *[lattice][lattice]float32, u, v float32) float32 {
		fx := u * lattice
		fy := v * lattice
		x0 := int(math.Floor(float64(fx)))
		y0 := int(math.Floor(float64(fy)))
		tx := smoothstep(fx - float32(x0))
		ty := smoothstep(fy - float32(y0))
		x0 %= lattice
		y0 %= lattice
		x1 := (x0 + 1) % lattice
		y1 := (y0 + 1) % lattice
		a := lerp(grid[y0][x0], grid[y0][x1], tx)
		b := lerp(grid[y1][x0], grid[y1][x1], tx)
		return lerp(a, b, ty)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u := float32(x) / float32(width)
			v := float32(y) / float32(height)
			o := img.PixOffset(x, y)
			img.Pix[o+0] = uint8(sample(&gridR, u, v) * 255)
			img.Pix[o+1] = uint8(sample(&gridG, u, v) * 255)
			img.Pix[o+2] = 0
			img.Pix[o+3] = 255
		}
	}
	return NewNoiseTexture(img)
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func smoothstep(t float32) float32 { return t * t * (3 - 2*t) }
