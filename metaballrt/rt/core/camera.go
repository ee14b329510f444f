package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// View is the render context the packer projects particles with.
type View interface {
	// WorldToScreen maps a world point to surface pixels.
	WorldToScreen(p mgl32.Vec3) mgl32.Vec2
	// OrthographicSize is passed through to the compositor as the surface scale.
	OrthographicSize() float32
}

// Camera2D is an orthographic camera looking down -Z at the XY plane.
// Screen space is in pixels with the origin at the top-left, matching
// @builtin(position) in WGSL fragment shaders.
type Camera2D struct {
	Position mgl32.Vec2
	// Size is half the visible height in world units.
	Size float32

	ViewportW, ViewportH float32
}

func NewCamera2D(size, viewportW, viewportH float32) *Camera2D {
	return &Camera2D{
		Size:      size,
		ViewportW: viewportW,
		ViewportH: viewportH,
	}
}

func (c *Camera2D) OrthographicSize() float32 { return c.Size }

func (c *Camera2D) Resize(w, h float32) {
	if w > 0 && h > 0 {
		c.ViewportW = w
		c.ViewportH = h
	}
}

func (c *Camera2D) aspect() float32 {
	if c.ViewportH == 0 {
		return 1.0
	}
	return c.ViewportW / c.ViewportH
}

func (c *Camera2D) ViewMatrix() mgl32.Mat4 {
	return mgl32.Translate3D(-c.Position.X(), -c.Position.Y(), 0)
}

func (c *Camera2D) ProjectionMatrix() mgl32.Mat4 {
	halfH := c.Size
	halfW := c.Size * c.aspect()
	return mgl32.Ortho(-halfW, halfW, -halfH, halfH, -1000, 1000)
}

func (c *Camera2D) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

func (c *Camera2D) WorldToScreen(p mgl32.Vec3) mgl32.Vec2 {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1.0))
	ndc := clip.Vec3()
	if w := clip.W(); w != 0 && w != 1 {
		ndc = ndc.Mul(1.0 / w)
	}

	// NDC to pixels, y down
	x := (ndc.X()*0.5 + 0.5) * c.ViewportW
	y := (1.0 - (ndc.Y()*0.5 + 0.5)) * c.ViewportH
	return mgl32.Vec2{x, y}
}

func (c *Camera2D) ScreenToWorld(s mgl32.Vec2) mgl32.Vec3 {
	if c.ViewportW == 0 || c.ViewportH == 0 {
		return mgl32.Vec3{c.Position.X(), c.Position.Y(), 0}
	}
	ndcX := s.X()/c.ViewportW*2 - 1
	ndcY := 1 - s.Y()/c.ViewportH*2
	inv := c.ViewProjection().Inv()
	w := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, 0, 1})
	return w.Vec3()
}
