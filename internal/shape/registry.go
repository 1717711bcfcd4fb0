package shape

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"gonum.org/v1/gonum/spatial/r2"

	"liner-layout/internal/panel"
	"liner-layout/pkg/geometry"
)

// Handles configures handle placement in screen pixels.
type Handles struct {
	RotationOffsetPx float64
	RotationRadiusPx float64
	ResizeSizePx     float64
}

// DefaultHandles returns the stock handle geometry.
func DefaultHandles() Handles {
	return Handles{
		RotationOffsetPx: 24,
		RotationRadiusPx: 7,
		ResizeSizePx:     8,
	}
}

// Registry dispatches draw and hit-test calls to the panel's shape.
type Registry struct {
	behaviors map[panel.Shape]Behavior
	handles   Handles
}

// NewRegistry creates a registry with the built-in shapes registered.
func NewRegistry(h Handles) *Registry {
	r := &Registry{
		behaviors: make(map[panel.Shape]Behavior),
		handles:   h,
	}
	r.Register(panel.Rectangle, rectangle{})
	r.Register(panel.RightTriangle, rightTriangle{})
	r.Register(panel.Patch, patch{})
	return r
}

// Register installs or replaces the behavior for a shape.
func (r *Registry) Register(s panel.Shape, b Behavior) {
	r.behaviors[s] = b
}

// Handles returns the handle configuration.
func (r *Registry) Handles() Handles {
	return r.handles
}

func (r *Registry) behavior(s panel.Shape) (Behavior, error) {
	b, ok := r.behaviors[s]
	if !ok {
		return nil, fmt.Errorf("no behavior for shape %q", s)
	}
	return b, nil
}

// Draw fills and outlines p. The context must already map world units to
// pixels; Draw adds the center-pivot rotation and the reference-corner
// translation around the shape's local path.
func (r *Registry) Draw(ctx *gg.Context, p panel.Panel, style Style) error {
	b, err := r.behavior(p.Shape)
	if err != nil {
		return err
	}
	c := p.Center()

	ctx.Push()
	defer ctx.Pop()
	ctx.RotateAbout(geometry.Radians(p.Rotation), c.X, c.Y)
	ctx.Translate(p.X, p.Y)

	ctx.ClearPath()
	b.Path(ctx, p.Width, p.Height)
	ctx.SetColor(style.Fill.Color())
	if err := ctx.FillPreserve(); err != nil {
		return fmt.Errorf("fill %s: %w", p.ID, err)
	}
	ctx.SetColor(style.Stroke.Color())
	ctx.SetLineWidth(style.LineWidth)
	// Miter tips at acute corners would paint outside the hit region.
	ctx.SetLineJoin(gg.LineJoinBevel)
	if err := ctx.Stroke(); err != nil {
		return fmt.Errorf("stroke %s: %w", p.ID, err)
	}
	return nil
}

// Outline strokes p's outline without filling it.
func (r *Registry) Outline(ctx *gg.Context, p panel.Panel, col gg.RGBA, lineWidth float64) error {
	b, err := r.behavior(p.Shape)
	if err != nil {
		return err
	}
	c := p.Center()

	ctx.Push()
	defer ctx.Pop()
	ctx.RotateAbout(geometry.Radians(p.Rotation), c.X, c.Y)
	ctx.Translate(p.X, p.Y)

	ctx.ClearPath()
	b.Path(ctx, p.Width, p.Height)
	ctx.SetColor(col.Color())
	ctx.SetLineWidth(lineWidth)
	ctx.SetLineJoin(gg.LineJoinBevel)
	return ctx.Stroke()
}

// ToLocal maps a world point into p's unrotated frame with the origin at the
// reference corner.
func ToLocal(p panel.Panel, wx, wy float64) geometry.Point2D {
	c := p.Center()
	v := r2.Vec{X: wx, Y: wy}
	if p.Rotation != 0 {
		v = r2.Rotate(v, -geometry.Radians(p.Rotation), r2.Vec{X: c.X, Y: c.Y})
	}
	return geometry.Point2D{X: v.X - p.X, Y: v.Y - p.Y}
}

// ToWorld maps a local point of p back into world space.
func ToWorld(p panel.Panel, lx, ly float64) geometry.Point2D {
	c := p.Center()
	v := r2.Vec{X: lx + p.X, Y: ly + p.Y}
	if p.Rotation != 0 {
		v = r2.Rotate(v, geometry.Radians(p.Rotation), r2.Vec{X: c.X, Y: c.Y})
	}
	return geometry.Point2D{X: v.X, Y: v.Y}
}

// Contains reports whether the world point falls in the region Draw fills
// for p. Invalid panels contain nothing.
func (r *Registry) Contains(p panel.Panel, wx, wy float64) bool {
	if !panel.IsValid(p) {
		return false
	}
	b, err := r.behavior(p.Shape)
	if err != nil {
		return false
	}
	if p.Rotation == 0 && !p.Bounds().Expand(edgeEps).Contains(geometry.Point2D{X: wx, Y: wy}) {
		return false
	}
	l := ToLocal(p, wx, wy)
	return b.ContainsLocal(l.X, l.Y, p.Width, p.Height)
}

// RotationHandle returns the unrotated handle anchor: centered above the
// bounding box at a fixed pixel distance. pxPerUnit is the current total
// world-to-pixel factor.
func (r *Registry) RotationHandle(p panel.Panel, pxPerUnit float64) geometry.Point2D {
	return geometry.Point2D{
		X: p.X + p.Width/2,
		Y: p.Y - r.handles.RotationOffsetPx/pxPerUnit,
	}
}

// RenderedRotationHandle is the anchor rotated with the panel. It is only
// used for drawing.
func (r *Registry) RenderedRotationHandle(p panel.Panel, pxPerUnit float64) geometry.Point2D {
	a := r.RotationHandle(p, pxPerUnit)
	if p.Rotation == 0 {
		return a
	}
	c := p.Center()
	v := r2.Rotate(r2.Vec{X: a.X, Y: a.Y}, geometry.Radians(p.Rotation), r2.Vec{X: c.X, Y: c.Y})
	return geometry.Point2D{X: v.X, Y: v.Y}
}

// HitRotationHandle tests the world point against the unrotated anchor.
func (r *Registry) HitRotationHandle(p panel.Panel, wx, wy, pxPerUnit float64) bool {
	if !panel.IsValid(p) || pxPerUnit <= 0 {
		return false
	}
	a := r.RotationHandle(p, pxPerUnit)
	d := r2.Norm(r2.Sub(r2.Vec{X: wx, Y: wy}, r2.Vec{X: a.X, Y: a.Y}))
	return d <= r.handles.RotationRadiusPx/pxPerUnit
}

// ResizeHandles returns the world positions of the four bounding-box corners
// rotated with the panel, clockwise from the reference corner.
func ResizeHandles(p panel.Panel) [4]geometry.Point2D {
	corners := p.Bounds().Corners()
	if p.Rotation == 0 {
		return corners
	}
	c := r2.Vec{X: p.Center().X, Y: p.Center().Y}
	alpha := geometry.Radians(p.Rotation)
	for i, k := range corners {
		v := r2.Rotate(r2.Vec{X: k.X, Y: k.Y}, alpha, c)
		corners[i] = geometry.Point2D{X: v.X, Y: v.Y}
	}
	return corners
}

// AngleAt returns the angle in degrees of the world point around p's center,
// measured the same way the renderer rotates.
func AngleAt(p panel.Panel, wx, wy float64) float64 {
	c := p.Center()
	return geometry.Degrees(math.Atan2(wy-c.Y, wx-c.X))
}
