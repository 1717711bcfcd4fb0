// Package shape holds the per-shape draw, hit-test and handle placement
// behavior for panels.
package shape

import (
	"github.com/gogpu/gg"

	"liner-layout/pkg/geometry"
)

// Behavior is implemented by every shape variant. Both methods work in the
// panel's local unrotated frame with the origin at its reference corner.
type Behavior interface {
	// Path appends the outline to the context's current path.
	Path(ctx *gg.Context, w, h float64)
	// ContainsLocal reports whether a local point lies in the filled region.
	ContainsLocal(lx, ly, w, h float64) bool
}

// edgeEps absorbs rounding when a point sits exactly on an outline.
const edgeEps = 1e-9

type rectangle struct{}

func (rectangle) Path(ctx *gg.Context, w, h float64) {
	ctx.DrawRectangle(0, 0, w, h)
}

func (rectangle) ContainsLocal(lx, ly, w, h float64) bool {
	return lx >= -edgeEps && lx <= w+edgeEps && ly >= -edgeEps && ly <= h+edgeEps
}

// rightTriangle has its right angle at the reference corner.
type rightTriangle struct{}

func (rightTriangle) Path(ctx *gg.Context, w, h float64) {
	ctx.MoveTo(0, 0)
	ctx.LineTo(w, 0)
	ctx.LineTo(0, h)
	ctx.ClosePath()
}

func (rightTriangle) ContainsLocal(lx, ly, w, h float64) bool {
	// Bounding box first, then the hypotenuse.
	if !(rectangle{}).ContainsLocal(lx, ly, w, h) {
		return false
	}
	return geometry.ConvexContains(triangleVertices(w, h), geometry.Point2D{X: lx, Y: ly})
}

func triangleVertices(w, h float64) []geometry.Point2D {
	return []geometry.Point2D{{X: 0, Y: 0}, {X: w, Y: 0}, {X: 0, Y: h}}
}

// patch is a circle inscribed in the bounding box; width is the diameter.
type patch struct{}

func (patch) Path(ctx *gg.Context, w, _ float64) {
	r := w / 2
	ctx.DrawCircle(r, r, r)
}

func (patch) ContainsLocal(lx, ly, w, _ float64) bool {
	r := w / 2
	dx, dy := lx-r, ly-r
	return dx*dx+dy*dy <= r*r+edgeEps
}

// Style is the paint used for one panel. LineWidth is in world units.
type Style struct {
	Fill      gg.RGBA
	Stroke    gg.RGBA
	LineWidth float64
}
