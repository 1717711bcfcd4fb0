package interaction

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"liner-layout/internal/panel"
	"liner-layout/internal/scene"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"
	"liner-layout/pkg/geometry"
)

type fixture struct {
	m     *Machine
	store *scene.Store
	view  *viewport.Controller
	clock time.Time
}

// newFixture builds a machine over a 800x600 viewport at 10 px per foot with
// the identity camera, so screen = world * 10.
func newFixture(t *testing.T, panels ...panel.Panel) *fixture {
	t.Helper()
	store := scene.NewStore("p1", scene.Options{})
	store.LoadPanels(panels)
	view := viewport.NewController(viewport.Config{WorldScale: 10, MinScale: 0.1, MaxScale: 10})
	view.SetViewport(800, 600)
	f := &fixture{
		store: store,
		view:  view,
		clock: time.Unix(1000, 0),
	}
	f.m = New(DefaultConfig(), store, shape.NewRegistry(shape.DefaultHandles()), view, viewport.NewZoomThrottle(16*time.Millisecond))
	f.m.SetClock(func() time.Time { return f.clock })
	return f
}

func pt(x, y float64) geometry.Point2D { return geometry.Point2D{X: x, Y: y} }

func rect(id string, x, y, w, h float64) panel.Panel {
	return panel.Panel{ID: id, X: x, Y: y, Width: w, Height: h, Shape: panel.Rectangle}
}

func TestDragCommitsOnPointerUp(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))

	// Grab at world (5,5) and move the pointer by world (5,5).
	f.m.PointerDown(pt(50, 50))
	if f.m.Mode() != Dragging {
		t.Fatalf("mode = %v, want dragging", f.m.Mode())
	}
	f.m.PointerMove(pt(80, 70))
	f.m.PointerMove(pt(100, 100))

	fb := f.m.Feedback()
	if !fb.Active || fb.Position.X != 5 || fb.Position.Y != 5 {
		t.Errorf("feedback = %+v", fb)
	}
	if p, _ := f.store.Panel("a"); p.X != 0 || p.Y != 0 {
		t.Errorf("panel committed before pointer-up: %+v", p)
	}

	f.m.PointerUp(pt(100, 100))
	p, _ := f.store.Panel("a")
	if p.X != 5 || p.Y != 5 {
		t.Errorf("committed position = (%v, %v), want (5, 5)", p.X, p.Y)
	}
	if f.m.Mode() != Idle || f.m.Feedback().Active {
		t.Error("machine did not return to idle")
	}
}

func TestDragKeepsGrabOffset(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	// Grab near the far corner; the panel must not jump to the pointer.
	f.m.PointerDown(pt(190, 90))
	f.m.PointerMove(pt(200, 90))
	fb := f.m.Feedback()
	if fb.Position.X != 1 || fb.Position.Y != 0 {
		t.Errorf("feedback = %+v, want (1, 0)", fb.Position)
	}
}

func TestDragSnapsToGrid(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	f.m.PointerDown(pt(50, 50))
	f.m.PointerUp(pt(57.4, 61.6)) // world delta (0.74, 1.16)
	p, _ := f.store.Panel("a")
	if p.X != 0.5 || p.Y != 1 {
		t.Errorf("snapped position = (%v, %v)", p.X, p.Y)
	}
}

func TestClickSelectsWithoutMoving(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	f.m.PointerDown(pt(50, 50))
	f.m.PointerMove(pt(51, 51))
	f.m.PointerUp(pt(51, 51))
	if f.store.SelectedID() != "a" {
		t.Errorf("selected = %q", f.store.SelectedID())
	}
	if p, _ := f.store.Panel("a"); p.X != 0 || p.Y != 0 {
		t.Errorf("press inside the dead zone moved the panel: %+v", p)
	}
}

func TestCancelDiscardsTransient(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	f.m.PointerDown(pt(50, 50))
	f.m.PointerMove(pt(300, 300))
	f.m.Cancel()
	if f.m.Mode() != Idle {
		t.Fatalf("mode = %v", f.m.Mode())
	}
	f.m.PointerUp(pt(300, 300))
	if p, _ := f.store.Panel("a"); p.X != 0 || p.Y != 0 {
		t.Errorf("cancelled drag committed: %+v", p)
	}
}

func TestRotateFromHandle(t *testing.T) {
	f := newFixture(t, rect("a", 10, 10, 20, 10))
	// Center (20, 15); handle anchor 24 px above the top edge: world (20, 7.6).
	f.m.PointerDown(pt(200, 76))
	if f.m.Mode() != Rotating {
		t.Fatalf("mode = %v, want rotating", f.m.Mode())
	}
	// Pointer to the right of the center: a quarter turn clockwise.
	f.m.PointerMove(pt(300, 150))
	if got := f.m.Feedback().Position.Rotation; got != 90 {
		t.Errorf("transient rotation = %v", got)
	}
	f.m.PointerUp(pt(300, 150))
	p, _ := f.store.Panel("a")
	if p.Rotation != 90 {
		t.Errorf("committed rotation = %v", p.Rotation)
	}
	if p.X != 10 || p.Y != 10 {
		t.Errorf("rotation moved the panel: %+v", p)
	}
}

func TestHandleClickKeepsRotation(t *testing.T) {
	p := rect("a", 10, 10, 20, 10)
	p.Rotation = 7
	f := newFixture(t, p)
	f.m.PointerDown(pt(200, 76))
	if f.m.Mode() != Rotating {
		t.Fatalf("mode = %v, want rotating", f.m.Mode())
	}
	f.m.PointerMove(pt(201, 77))
	if f.m.Feedback().Active {
		t.Errorf("jitter inside the dead zone produced feedback %+v", f.m.Feedback())
	}
	f.m.PointerUp(pt(201, 77))
	if got, _ := f.store.Panel("a"); got.Rotation != 7 {
		t.Errorf("click on the handle changed rotation 7 -> %v", got.Rotation)
	}
}

func TestRotationDoesNotDrift(t *testing.T) {
	f := newFixture(t, rect("a", 10, 10, 20, 10))
	f.m.SetSnap(false)
	f.m.PointerDown(pt(200, 76))
	for i := 0; i < 500; i++ {
		f.m.PointerMove(pt(200+float64(i%37), 76+float64(i%11)))
	}
	f.m.PointerMove(pt(200, 76))
	if got := f.m.Feedback().Position.Rotation; !scalar.EqualWithinAbs(got, 0, 1e-9) && !scalar.EqualWithinAbs(got, 360, 1e-9) {
		t.Errorf("rotation after returning to the start = %v", got)
	}
}

func TestHandleBeatsBody(t *testing.T) {
	// b sits on top of a's rotation handle.
	f := newFixture(t, rect("a", 10, 10, 20, 10), rect("b", 15, 5, 10, 4))
	f.m.PointerDown(pt(200, 76))
	if f.m.Mode() != Rotating || f.m.Feedback().PanelID != "a" {
		t.Errorf("mode = %v panel = %q", f.m.Mode(), f.m.Feedback().PanelID)
	}
}

func TestTopmostPanelWins(t *testing.T) {
	f := newFixture(t, rect("under", 0, 0, 20, 20), rect("over", 5, 5, 20, 20))
	p, ok := f.m.GetPanelAtPosition(pt(100, 100))
	if !ok || p.ID != "over" {
		t.Errorf("hit %q, want over", p.ID)
	}
	p, ok = f.m.GetPanelAtPosition(pt(20, 20))
	if !ok || p.ID != "under" {
		t.Errorf("hit %q, want under", p.ID)
	}
}

func TestInvalidPanelNotHittable(t *testing.T) {
	bad := rect("zero", 0, 0, 0, 10)
	f := newFixture(t, bad)
	if _, ok := f.m.GetPanelAtPosition(pt(0, 50)); ok {
		t.Error("invalid panel was hit")
	}
	f.m.PointerDown(pt(0, 50))
	if f.m.Mode() != Panning {
		t.Errorf("mode = %v, want panning", f.m.Mode())
	}
}

func TestPanOnEmptySpace(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	f.store.Select("a")
	f.m.PointerDown(pt(700, 500))
	if f.m.Mode() != Panning {
		t.Fatalf("mode = %v", f.m.Mode())
	}
	f.m.PointerMove(pt(710, 505))
	f.m.PointerMove(pt(712, 509))
	f.m.PointerUp(pt(712, 509))
	cam := f.view.Camera()
	if cam.OffsetX != 12 || cam.OffsetY != 9 {
		t.Errorf("camera = %+v", cam)
	}
	if f.store.SelectedID() != "a" {
		t.Error("a pan should not clear the selection")
	}

	f.m.PointerDown(pt(700, 500))
	f.m.PointerUp(pt(700, 500))
	if f.store.SelectedID() != "" {
		t.Error("click on empty space should clear the selection")
	}
}

func TestPanelRemovedMidDrag(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	f.m.PointerDown(pt(50, 50))
	f.m.PointerMove(pt(100, 100))
	f.store.RemovePanel("a")
	f.m.PointerUp(pt(120, 120))
	if f.m.Mode() != Idle {
		t.Errorf("mode = %v", f.m.Mode())
	}
	if f.store.Len() != 0 {
		t.Error("removed panel resurrected")
	}
}

func TestWheelThrottled(t *testing.T) {
	f := newFixture(t)
	if !f.m.Wheel(pt(400, 300), 1) {
		t.Fatal("first wheel event should zoom")
	}
	if f.m.Wheel(pt(400, 300), 1) {
		t.Error("second event in the same frame should be deferred")
	}
	f.clock = f.clock.Add(20 * time.Millisecond)
	if !f.m.Tick(f.clock) {
		t.Error("tick should apply the deferred zoom")
	}
	if got := f.view.Camera().Scale; !scalar.EqualWithinAbs(got, 1.1*1.1, 1e-12) {
		t.Errorf("scale = %v", got)
	}
	f.clock = f.clock.Add(20 * time.Millisecond)
	f.m.Wheel(pt(400, 300), -3)
	if got := f.view.Camera().Scale; !scalar.EqualWithinAbs(got, 1.1, 1e-12) {
		t.Errorf("scale after zoom out = %v", got)
	}
}

func TestKeyboardEdits(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	if f.m.KeyNudge(1, 0) {
		t.Error("nudge without a selection succeeded")
	}
	f.store.Select("a")
	f.m.KeyNudge(1, -2)
	f.m.RotateSelected(-15)
	p, _ := f.store.Panel("a")
	if p.X != 1 || p.Y != -2 || p.Rotation != 345 {
		t.Errorf("panel = %+v", p)
	}
	if !f.m.DeleteSelected() || f.store.Len() != 0 {
		t.Error("DeleteSelected failed")
	}
}

func TestOnChangeFires(t *testing.T) {
	f := newFixture(t, rect("a", 0, 0, 20, 10))
	n := 0
	f.m.OnChange(func() { n++ })
	f.m.PointerDown(pt(50, 50))
	f.m.PointerMove(pt(100, 100))
	f.m.PointerUp(pt(100, 100))
	if n < 3 {
		t.Errorf("OnChange fired %d times", n)
	}
}
