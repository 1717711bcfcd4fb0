package viewport

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"liner-layout/pkg/geometry"
)

func near(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, 1e-9, 1e-9)
}

func newController() *Controller {
	c := NewController(Config{WorldScale: 10, MinScale: 0.05, MaxScale: 20})
	c.SetViewport(800, 600)
	return c
}

func TestZoomAtKeepsPivot(t *testing.T) {
	c := newController()
	// (400, 300) on screen is world (50, 50).
	c.SetCamera(geometry.Camera{Scale: 1, OffsetX: -100, OffsetY: -200})
	pivot := geometry.Point2D{X: 400, Y: 300}

	before := c.ScreenToWorld(pivot)
	if !near(before.X, 50) || !near(before.Y, 50) {
		t.Fatalf("setup: pivot maps to %v", before)
	}
	if !c.ZoomAt(pivot, 2) {
		t.Fatal("ZoomAt reported no change")
	}
	after := c.ScreenToWorld(pivot)
	if !near(after.X, 50) || !near(after.Y, 50) {
		t.Errorf("after zoom pivot maps to %v", after)
	}
	if c.Camera().Scale != 2 {
		t.Errorf("scale = %v", c.Camera().Scale)
	}
}

func TestZoomAnchorInvariance(t *testing.T) {
	pivots := []geometry.Point2D{{X: 0, Y: 0}, {X: 800, Y: 600}, {X: 123.4, Y: 567.8}, {X: -50, Y: 900}}
	factors := []float64{0.5, 0.9, 1.1, 1.25, 3, 1000}
	for _, p := range pivots {
		for _, f := range factors {
			c := newController()
			c.SetCamera(geometry.Camera{Scale: 1.3, OffsetX: 77, OffsetY: -31})
			before := c.ScreenToWorld(p)
			c.ZoomAt(p, f)
			after := c.ScreenToWorld(p)
			if !near(before.X, after.X) || !near(before.Y, after.Y) {
				t.Errorf("pivot %v factor %v: %v -> %v", p, f, before, after)
			}
		}
	}
}

func TestZoomClamped(t *testing.T) {
	c := newController()
	c.ZoomAt(geometry.Point2D{X: 10, Y: 10}, 1e6)
	if c.Camera().Scale != 20 {
		t.Errorf("scale = %v, want max 20", c.Camera().Scale)
	}
	if c.ZoomAt(geometry.Point2D{X: 10, Y: 10}, 2) {
		t.Error("zoom past the max should report no change")
	}
	c.ZoomAt(geometry.Point2D{}, 1e-9)
	if c.Camera().Scale != 0.05 {
		t.Errorf("scale = %v, want min 0.05", c.Camera().Scale)
	}
	for _, f := range []float64{0, -1} {
		if c.ZoomAt(geometry.Point2D{}, f) {
			t.Errorf("factor %v accepted", f)
		}
	}
}

func TestPanBy(t *testing.T) {
	c := newController()
	c.PanBy(15, -4)
	cam := c.Camera()
	if cam.OffsetX != 15 || cam.OffsetY != -4 {
		t.Errorf("camera = %+v", cam)
	}
	if c.PanBy(0, 0) {
		t.Error("zero pan reported change")
	}
}

func TestPanClampedToBounds(t *testing.T) {
	c := NewController(Config{
		WorldScale: 10, MinScale: 0.1, MaxScale: 10,
		Bounds: &geometry.Rect{X: 0, Y: 0, Width: 200, Height: 200},
	})
	c.SetViewport(800, 600)
	c.PanBy(5000, 5000)
	vis := c.VisibleWorldRect(0)
	if vis.X < -1e-9 || vis.Y < -1e-9 {
		t.Errorf("visible rect %+v left the site", vis)
	}
	c.PanBy(-1e6, -1e6)
	vis = c.VisibleWorldRect(0)
	if vis.X+vis.Width > 200+1e-9 || vis.Y+vis.Height > 200+1e-9 {
		t.Errorf("visible rect %+v left the site", vis)
	}
}

func TestFitToContent(t *testing.T) {
	c := newController()
	bounds := geometry.Rect{X: 100, Y: 100, Width: 76, Height: 20}
	if !c.FitToContent(bounds, 20) {
		t.Fatal("FitToContent failed")
	}
	// (800-40)/(76*10) = 1 limits before (600-40)/(20*10) = 2.8.
	if !near(c.Camera().Scale, 1) {
		t.Errorf("scale = %v", c.Camera().Scale)
	}
	center := c.WorldToScreen(bounds.Center())
	if !near(center.X, 400) || !near(center.Y, 300) {
		t.Errorf("content center on screen at %v", center)
	}
	if c.FitToContent(geometry.Rect{Width: -1}, 0) {
		t.Error("negative bounds accepted")
	}
}

func TestSetCameraRejectsInvalid(t *testing.T) {
	c := newController()
	if c.SetCamera(geometry.Camera{Scale: 0}) {
		t.Error("zero scale accepted")
	}
	c.SetCamera(geometry.Camera{Scale: 500, OffsetX: 3})
	if c.Camera().Scale != 20 {
		t.Errorf("restored scale not clamped: %v", c.Camera().Scale)
	}
}

func TestZoomThrottleCoalesces(t *testing.T) {
	c := newController()
	z := NewZoomThrottle(16 * time.Millisecond)
	t0 := time.Unix(1000, 0)
	pivot := geometry.Point2D{X: 400, Y: 300}

	z.Add(pivot, 2)
	if !z.Flush(t0, c) {
		t.Fatal("first flush should apply")
	}
	z.Add(pivot, 1.5)
	z.Add(pivot, 2)
	if z.Flush(t0.Add(5*time.Millisecond), c) {
		t.Error("flush inside the interval should wait")
	}
	if !z.Pending() {
		t.Error("zoom should still be pending")
	}
	if !z.Flush(t0.Add(20*time.Millisecond), c) {
		t.Fatal("flush after the interval should apply")
	}
	if !near(c.Camera().Scale, 6) {
		t.Errorf("scale = %v, want 2*1.5*2", c.Camera().Scale)
	}
	if z.Pending() {
		t.Error("nothing should be pending")
	}
}
