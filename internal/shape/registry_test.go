package shape

import (
	"math"
	"testing"

	"github.com/gogpu/gg"
	"gonum.org/v1/gonum/floats/scalar"

	"liner-layout/internal/panel"
)

func TestContainsRectangle(t *testing.T) {
	reg := NewRegistry(DefaultHandles())
	p := panel.Panel{ID: "r", X: 0, Y: 0, Width: 20, Height: 10, Shape: panel.Rectangle}

	tests := []struct {
		name   string
		wx, wy float64
		want   bool
	}{
		{"inside", 10, 5, true},
		{"corner", 0, 0, true},
		{"far corner", 20, 10, true},
		{"right of", 20.01, 5, false},
		{"above", 5, -0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reg.Contains(p, tt.wx, tt.wy); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.wx, tt.wy, got, tt.want)
			}
		})
	}
}

func TestContainsPatchBoundary(t *testing.T) {
	reg := NewRegistry(DefaultHandles())
	// diameter 10 centered on (100, 100)
	p := panel.Panel{ID: "c", X: 95, Y: 95, Width: 10, Height: 10, Shape: panel.Patch}

	if !reg.Contains(p, 105, 100) {
		t.Error("point on the circle boundary should hit")
	}
	if reg.Contains(p, 111, 100) {
		t.Error("point outside the circle should miss")
	}
	if reg.Contains(p, 95.5, 95.5) {
		t.Error("bounding-box corner outside the circle should miss")
	}
}

func TestContainsRightTriangle(t *testing.T) {
	reg := NewRegistry(DefaultHandles())
	p := panel.Panel{ID: "t", X: 10, Y: 10, Width: 10, Height: 10, Shape: panel.RightTriangle}

	if !reg.Contains(p, 11, 11) {
		t.Error("point near the right angle should hit")
	}
	if reg.Contains(p, 19, 19) {
		t.Error("point past the hypotenuse should miss")
	}
}

func TestContainsRotated(t *testing.T) {
	reg := NewRegistry(DefaultHandles())
	p := panel.Panel{ID: "r", X: 0, Y: 0, Width: 20, Height: 2, Rotation: 90, Shape: panel.Rectangle}

	// Rotated about (10, 1) the bar now spans y in [-9, 11] and x in [9, 11].
	if !reg.Contains(p, 10, -8) {
		t.Error("rotated bar should cover (10, -8)")
	}
	if reg.Contains(p, 2, 1) {
		t.Error("rotated bar should no longer cover its old left end")
	}
}

func TestContainsSkipsInvalid(t *testing.T) {
	reg := NewRegistry(DefaultHandles())
	p := panel.Panel{ID: "z", X: 0, Y: 0, Width: 0, Height: 10, Shape: panel.Rectangle}
	if reg.Contains(p, 0, 5) {
		t.Error("invalid panel should never be hit")
	}
}

func TestRotationHandle(t *testing.T) {
	reg := NewRegistry(Handles{RotationOffsetPx: 20, RotationRadiusPx: 5})
	p := panel.Panel{ID: "r", X: 0, Y: 0, Width: 20, Height: 10, Rotation: 90, Shape: panel.Rectangle}

	// 10 px per foot: anchor 2 ft above the box, radius 0.5 ft.
	a := reg.RotationHandle(p, 10)
	if a.X != 10 || a.Y != -2 {
		t.Fatalf("RotationHandle = %v", a)
	}
	if !reg.HitRotationHandle(p, 10.4, -2, 10) {
		t.Error("point inside the handle radius should hit")
	}
	if reg.HitRotationHandle(p, 10.6, -2, 10) {
		t.Error("point outside the handle radius should miss")
	}

	// Rendered anchor swings with the panel around (10, 5).
	r := reg.RenderedRotationHandle(p, 10)
	if !scalar.EqualWithinAbs(r.X, 17, 1e-9) || !scalar.EqualWithinAbs(r.Y, 5, 1e-9) {
		t.Errorf("RenderedRotationHandle = %v", r)
	}
}

func TestLocalWorldRoundTrip(t *testing.T) {
	p := panel.Panel{ID: "r", X: 3, Y: -7, Width: 12, Height: 5, Rotation: 37, Shape: panel.Rectangle}
	for _, pt := range [][2]float64{{0, 0}, {12, 5}, {4.5, 1.25}} {
		w := ToWorld(p, pt[0], pt[1])
		l := ToLocal(p, w.X, w.Y)
		if !scalar.EqualWithinAbs(l.X, pt[0], 1e-9) || !scalar.EqualWithinAbs(l.Y, pt[1], 1e-9) {
			t.Errorf("round trip of %v gave %v", pt, l)
		}
	}
}

func TestResizeHandles(t *testing.T) {
	p := panel.Panel{ID: "r", X: 0, Y: 0, Width: 20, Height: 10, Rotation: 180, Shape: panel.Rectangle}
	h := ResizeHandles(p)
	// 180° maps the reference corner onto the opposite one.
	if !scalar.EqualWithinAbs(h[0].X, 20, 1e-9) || !scalar.EqualWithinAbs(h[0].Y, 10, 1e-9) {
		t.Errorf("first handle = %v", h[0])
	}
}

// TestHitMatchesRaster draws each shape with gg and checks that Contains
// agrees with the filled pixels wherever a sample is clearly away from the
// outline.
func TestHitMatchesRaster(t *testing.T) {
	panels := []panel.Panel{
		{ID: "rect", X: 20, Y: 30, Width: 60, Height: 30, Shape: panel.Rectangle},
		{ID: "rect-rot", X: 20, Y: 30, Width: 60, Height: 30, Rotation: 30, Shape: panel.Rectangle},
		{ID: "tri", X: 15, Y: 15, Width: 70, Height: 60, Shape: panel.RightTriangle},
		{ID: "tri-rot", X: 15, Y: 15, Width: 70, Height: 60, Rotation: 135, Shape: panel.RightTriangle},
		{ID: "patch", X: 20, Y: 20, Width: 60, Height: 60, Shape: panel.Patch},
	}
	reg := NewRegistry(DefaultHandles())
	fill := gg.RGB(0.2, 0.4, 0.8)
	const margin = 2.0

	for _, p := range panels {
		t.Run(p.ID, func(t *testing.T) {
			ctx := gg.NewContext(100, 100)
			defer ctx.Close()
			ctx.ClearWithColor(gg.RGBA{})
			if err := reg.Draw(ctx, p, Style{Fill: fill, Stroke: fill, LineWidth: 1}); err != nil {
				t.Fatalf("Draw: %v", err)
			}
			img := ctx.Image()

			checked := 0
			for y := 1; y < 100; y += 3 {
				for x := 1; x < 100; x += 3 {
					cx, cy := float64(x)+0.5, float64(y)+0.5
					in := reg.Contains(p, cx, cy)
					if !stable(reg, p, cx, cy, margin, in) {
						continue
					}
					_, _, _, a := img.At(x, y).RGBA()
					a >>= 8
					if in && a < 200 {
						t.Errorf("(%d,%d) is inside but alpha %d", x, y, a)
					}
					if !in && a > 10 {
						t.Errorf("(%d,%d) is outside but alpha %d", x, y, a)
					}
					checked++
				}
			}
			if checked < 500 {
				t.Errorf("only %d stable samples", checked)
			}
		})
	}
}

// stable reports whether every point within d of (x, y) agrees with want.
// The ring is dense enough to catch an acute corner poking into it.
func stable(reg *Registry, p panel.Panel, x, y, d float64, want bool) bool {
	for _, r := range []float64{d / 2, d} {
		for i := 0; i < 32; i++ {
			s, c := math.Sincos(float64(i) * math.Pi / 16)
			if reg.Contains(p, x+r*c, y+r*s) != want {
				return false
			}
		}
	}
	return true
}

func TestStrokeStaysNearAcuteCorner(t *testing.T) {
	// The corner at (70, 30) is about 34 degrees.
	p := panel.Panel{ID: "tri", X: 10, Y: 30, Width: 60, Height: 40, Shape: panel.RightTriangle}
	reg := NewRegistry(DefaultHandles())
	col := gg.RGB(0, 0, 0)

	ctx := gg.NewContext(100, 100)
	defer ctx.Close()
	ctx.ClearWithColor(gg.RGBA{})
	if err := reg.Draw(ctx, p, Style{Fill: col, Stroke: col, LineWidth: 4}); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	img := ctx.Image()

	// Pixels past the corner along its bisector.
	for _, px := range [][2]int{{73, 28}, {74, 28}, {75, 27}} {
		if reg.Contains(p, float64(px[0])+0.5, float64(px[1])+0.5) {
			t.Fatalf("(%d,%d) is inside", px[0], px[1])
		}
		_, _, _, a := img.At(px[0], px[1]).RGBA()
		if a>>8 > 10 {
			t.Errorf("(%d,%d) painted with alpha %d past the corner", px[0], px[1], a>>8)
		}
	}
}
