// Package viewport owns the camera and the pan, zoom and fit operations that
// mutate it.
package viewport

import (
	"math"

	"liner-layout/pkg/geometry"
)

// Config holds the camera limits.
type Config struct {
	// WorldScale is pixels per foot at camera scale 1.
	WorldScale float64
	MinScale   float64
	MaxScale   float64
	// Bounds, when set, keeps the visible area inside a finite site.
	Bounds *geometry.Rect
}

// DefaultConfig returns limits suited to sites from a few feet to a few
// thousand feet across.
func DefaultConfig() Config {
	return Config{
		WorldScale: 10,
		MinScale:   0.01,
		MaxScale:   40,
	}
}

// Controller owns the camera state for one canvas.
type Controller struct {
	cfg       Config
	cam       geometry.Camera
	viewportW float64
	viewportH float64
}

// NewController creates a controller with the identity camera.
func NewController(cfg Config) *Controller {
	if cfg.WorldScale <= 0 || !geometry.IsFinite(cfg.WorldScale) {
		cfg.WorldScale = 1
	}
	if cfg.MinScale <= 0 {
		cfg.MinScale = DefaultConfig().MinScale
	}
	if cfg.MaxScale < cfg.MinScale {
		cfg.MaxScale = cfg.MinScale
	}
	c := &Controller{cfg: cfg}
	c.Reset()
	return c
}

// Config returns the controller limits.
func (c *Controller) Config() Config {
	return c.cfg
}

// Camera returns the current camera.
func (c *Controller) Camera() geometry.Camera {
	return c.cam
}

// WorldScale returns pixels per foot at camera scale 1.
func (c *Controller) WorldScale() float64 {
	return c.cfg.WorldScale
}

// PixelsPerUnit returns the current total world-to-pixel factor.
func (c *Controller) PixelsPerUnit() float64 {
	return c.cam.PixelsPerUnit(c.cfg.WorldScale)
}

// Viewport returns the viewport size in pixels.
func (c *Controller) Viewport() (w, h float64) {
	return c.viewportW, c.viewportH
}

// SetViewport records the canvas size in pixels.
func (c *Controller) SetViewport(w, h float64) {
	if !geometry.IsFinite(w) || !geometry.IsFinite(h) || w < 0 || h < 0 {
		return
	}
	c.viewportW, c.viewportH = w, h
	c.clampOffset()
}

// Reset restores the identity camera.
func (c *Controller) Reset() {
	c.cam = geometry.Camera{Scale: c.clampScale(1)}
	c.clampOffset()
}

// SetCamera installs a camera, typically restored from the local cache. The
// scale is clamped; a camera with non-finite fields is rejected.
func (c *Controller) SetCamera(cam geometry.Camera) bool {
	if !cam.IsValid() {
		return false
	}
	cam.Scale = c.clampScale(cam.Scale)
	c.cam = cam
	c.clampOffset()
	return true
}

// ScreenToWorld maps a screen point using the current camera.
func (c *Controller) ScreenToWorld(p geometry.Point2D) geometry.Point2D {
	return geometry.ScreenToWorld(p.X, p.Y, c.cfg.WorldScale, c.cam)
}

// WorldToScreen maps a world point using the current camera.
func (c *Controller) WorldToScreen(p geometry.Point2D) geometry.Point2D {
	return geometry.WorldToScreen(p.X, p.Y, c.cfg.WorldScale, c.cam)
}

// VisibleWorldRect returns the buffered visible world rectangle.
func (c *Controller) VisibleWorldRect(bufferPx float64) geometry.Rect {
	return geometry.VisibleWorldRect(c.viewportW, c.viewportH, c.cfg.WorldScale, c.cam, bufferPx)
}

// ZoomAt scales the camera by factor while keeping the world point under
// pivot fixed on screen. It reports whether the camera changed.
func (c *Controller) ZoomAt(pivot geometry.Point2D, factor float64) bool {
	if !geometry.IsFinite(factor) || factor <= 0 || !pivot.IsFinite() {
		return false
	}
	newScale := c.clampScale(c.cam.Scale * factor)
	if newScale == c.cam.Scale {
		return false
	}
	anchor := c.ScreenToWorld(pivot)
	k := c.cfg.WorldScale * newScale
	c.cam = geometry.Camera{
		Scale:   newScale,
		OffsetX: pivot.X - anchor.X*k,
		OffsetY: pivot.Y - anchor.Y*k,
	}
	c.clampOffset()
	return true
}

// ZoomBy zooms around the viewport center.
func (c *Controller) ZoomBy(factor float64) bool {
	return c.ZoomAt(geometry.Point2D{X: c.viewportW / 2, Y: c.viewportH / 2}, factor)
}

// PanBy moves the camera by a screen-space delta.
func (c *Controller) PanBy(dx, dy float64) bool {
	if !geometry.IsFinite(dx) || !geometry.IsFinite(dy) || (dx == 0 && dy == 0) {
		return false
	}
	before := c.cam
	c.cam.OffsetX += dx
	c.cam.OffsetY += dy
	c.clampOffset()
	return c.cam != before
}

// FitToContent picks the largest scale at which bounds fit inside the
// viewport with paddingPx on every side, and centers bounds.
func (c *Controller) FitToContent(bounds geometry.Rect, paddingPx float64) bool {
	if !bounds.IsFinite() || bounds.Width < 0 || bounds.Height < 0 {
		return false
	}
	if c.viewportW <= 0 || c.viewportH <= 0 {
		return false
	}
	availW := math.Max(c.viewportW-2*paddingPx, 1)
	availH := math.Max(c.viewportH-2*paddingPx, 1)

	scale := c.cfg.MaxScale
	if bounds.Width > 0 {
		scale = math.Min(scale, availW/(bounds.Width*c.cfg.WorldScale))
	}
	if bounds.Height > 0 {
		scale = math.Min(scale, availH/(bounds.Height*c.cfg.WorldScale))
	}
	scale = c.clampScale(scale)

	center := bounds.Center()
	k := c.cfg.WorldScale * scale
	c.cam = geometry.Camera{
		Scale:   scale,
		OffsetX: c.viewportW/2 - center.X*k,
		OffsetY: c.viewportH/2 - center.Y*k,
	}
	c.clampOffset()
	return true
}

func (c *Controller) clampScale(s float64) float64 {
	return math.Max(c.cfg.MinScale, math.Min(c.cfg.MaxScale, s))
}

// clampOffset keeps the visible area inside the configured bounds. An
// unbounded world is never clamped.
func (c *Controller) clampOffset() {
	b := c.cfg.Bounds
	if b == nil || c.viewportW <= 0 || c.viewportH <= 0 {
		return
	}
	k := c.cfg.WorldScale * c.cam.Scale
	c.cam.OffsetX = clampAxis(c.cam.OffsetX, c.viewportW, b.X, b.Width, k)
	c.cam.OffsetY = clampAxis(c.cam.OffsetY, c.viewportH, b.Y, b.Height, k)
}

func clampAxis(offset, viewport, lo, extent, k float64) float64 {
	maxOff := -lo * k
	minOff := viewport - (lo+extent)*k
	if minOff > maxOff {
		// Viewport larger than the site: center it.
		return (minOff + maxOff) / 2
	}
	return math.Max(minOff, math.Min(maxOff, offset))
}
