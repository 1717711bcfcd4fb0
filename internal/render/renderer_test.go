package render

import (
	"fmt"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"liner-layout/internal/interaction"
	"liner-layout/internal/panel"
	"liner-layout/internal/scene"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"
)

type fixedFeedback struct{ fb interaction.Feedback }

func (f fixedFeedback) Feedback() interaction.Feedback { return f.fb }

func newRenderer(t *testing.T, fb FeedbackSource, panels ...panel.Panel) (*Renderer, *scene.Store) {
	t.Helper()
	store := scene.NewStore("p1", scene.Options{})
	store.LoadPanels(panels)
	view := viewport.NewController(viewport.Config{WorldScale: 10, MinScale: 0.01, MaxScale: 10})
	view.SetViewport(200, 100)
	r := New(DefaultConfig(), shape.NewRegistry(shape.DefaultHandles()), view, store, fb)
	t.Cleanup(func() { r.Close() })
	return r, store
}

func rgb(img image.Image, x, y int) (uint32, uint32, uint32) {
	r, g, b, _ := img.At(x, y).RGBA()
	return r >> 8, g >> 8, b >> 8
}

func isColor(img image.Image, x, y int, hex uint32) bool {
	r, g, b := rgb(img, x, y)
	want := [3]uint32{hex >> 16 & 0xff, hex >> 8 & 0xff, hex & 0xff}
	for i, c := range [3]uint32{r, g, b} {
		d := int(c) - int(want[i])
		if d < -3 || d > 3 {
			return false
		}
	}
	return true
}

func TestFrameBudget(t *testing.T) {
	r, _ := newRenderer(t, nil)
	t0 := time.Unix(100, 0)
	if _, ok := r.Frame(t0); !ok {
		t.Fatal("first frame skipped")
	}
	if img, ok := r.Frame(t0.Add(5 * time.Millisecond)); ok || img != nil {
		t.Error("frame inside the budget was drawn")
	}
	if d := r.Until(t0.Add(5 * time.Millisecond)); d <= 0 || d > DefaultFrameInterval {
		t.Errorf("Until = %v", d)
	}
	if _, ok := r.Frame(t0.Add(17 * time.Millisecond)); !ok {
		t.Error("frame after the budget skipped")
	}
	if r.Stats().FrameCount != 2 {
		t.Errorf("frame count = %d", r.Stats().FrameCount)
	}
}

func TestDrawsPanelsAndSkipsInvalid(t *testing.T) {
	bad := panel.Panel{ID: "bad", X: 12, Y: 2, Width: 0, Height: 6, Shape: panel.Rectangle}
	good := panel.Panel{ID: "good", X: 2, Y: 2, Width: 6, Height: 6, Shape: panel.Rectangle}
	r, _ := newRenderer(t, nil, bad, good)

	img := r.Draw()
	if !isColor(img, 50, 50, 0x8fb8de) {
		t.Errorf("panel interior = %v", img.At(50, 50))
	}
	if isColor(img, 125, 50, 0x8fb8de) {
		t.Error("invalid panel was drawn")
	}
	st := r.Stats()
	if st.Drawn != 1 || st.Invalid != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.GridLines == 0 {
		t.Error("no grid lines drawn")
	}
}

func TestCullsOffscreenPanels(t *testing.T) {
	var panels []panel.Panel
	for i := 0; i < 1000; i++ {
		panels = append(panels, panel.Panel{
			ID: fmt.Sprintf("p%d", i), X: float64(i%50) * 30, Y: float64(i/50) * 30,
			Width: 5, Height: 5, Shape: panel.Rectangle,
		})
	}
	r, _ := newRenderer(t, nil, panels...)
	r.Draw()
	st := r.Stats()
	if st.Drawn+st.Culled != 1000 {
		t.Fatalf("stats = %+v", st)
	}
	// 20x10 ft visible plus a small buffer.
	if st.Drawn == 0 || st.Drawn > 12 {
		t.Errorf("drawn = %d", st.Drawn)
	}
}

func TestDrawsTransientPosition(t *testing.T) {
	p := panel.Panel{ID: "a", X: 2, Y: 2, Width: 4, Height: 4, Shape: panel.Rectangle}
	fb := fixedFeedback{interaction.Feedback{
		Mode: interaction.Dragging, PanelID: "a", Active: true,
		Position: panel.Position{X: 14, Y: 2},
	}}
	r, store := newRenderer(t, fb, p)
	img := r.Draw()
	if !isColor(img, 160, 40, 0x8fb8de) {
		t.Error("panel not drawn at its drag position")
	}
	if isColor(img, 40, 40, 0x8fb8de) {
		t.Error("panel still drawn at its committed position")
	}
	if got, _ := store.Panel("a"); got.X != 2 {
		t.Error("rendering changed the stored panel")
	}
}

func TestLabels(t *testing.T) {
	big := panel.Panel{ID: "big", X: 1, Y: 1, Width: 10, Height: 8, Shape: panel.Rectangle, Meta: panel.Meta{Label: "P-1"}}
	tiny := panel.Panel{ID: "tiny", X: 14, Y: 1, Width: 1, Height: 1, Shape: panel.Rectangle, Meta: panel.Meta{Label: "P-2"}}
	r, _ := newRenderer(t, nil, big, tiny)
	r.Draw()
	if got := r.Stats().Labels; got != 1 {
		t.Errorf("labels = %d, want 1", got)
	}
}

func TestSelectionDrawn(t *testing.T) {
	p := panel.Panel{ID: "a", X: 5, Y: 3, Width: 10, Height: 5, Shape: panel.Rectangle}
	r, store := newRenderer(t, nil, p)
	before := r.Draw()
	store.Select("a")
	after := r.Draw()
	// Rotation handle sits 24 px above the top edge center.
	if before.At(100, 6) == after.At(100, 6) {
		t.Error("rotation handle not drawn for the selected panel")
	}
}

func TestLoopCoalesces(t *testing.T) {
	var n atomic.Int32
	l := NewLoop(20*time.Millisecond, func() { n.Add(1) })
	defer l.Stop()

	deadline := time.Now().Add(60 * time.Millisecond)
	for time.Now().Before(deadline) {
		l.Request()
		time.Sleep(time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)
	got := n.Load()
	if got < 1 || got > 6 {
		t.Errorf("presented %d times", got)
	}
}

func TestLoopStop(t *testing.T) {
	var n atomic.Int32
	l := NewLoop(time.Hour, func() { n.Add(1) })
	l.Request()
	time.Sleep(10 * time.Millisecond)
	l.Request()
	l.Stop()
	time.Sleep(10 * time.Millisecond)
	if n.Load() != 1 {
		t.Errorf("presented %d times", n.Load())
	}
}
