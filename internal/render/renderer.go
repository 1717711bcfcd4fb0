// Package render draws the scene into an image once per frame.
package render

import (
	"image"
	"log"
	"time"

	"github.com/gogpu/gg"

	"liner-layout/internal/interaction"
	"liner-layout/internal/panel"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"
	"liner-layout/pkg/geometry"
)

// DefaultFrameInterval targets 60 frames per second.
const DefaultFrameInterval = time.Second / 60

// Source is the part of the scene store the renderer reads.
type Source interface {
	VisiblePanels() []panel.Panel
	Len() int
	SelectedID() string
}

// FeedbackSource exposes the active gesture.
type FeedbackSource interface {
	Feedback() interaction.Feedback
}

// Config holds the renderer tunables.
type Config struct {
	Grid          geometry.Spacing
	CullBufferPx  float64
	FrameInterval time.Duration
	// LabelMinPx hides labels on panels narrower than this on screen.
	LabelMinPx float64
	Theme      Theme
}

// DefaultConfig returns the stock renderer tunables.
func DefaultConfig() Config {
	return Config{
		Grid:          geometry.Spacing{Minor: 1, Major: 10},
		CullBufferPx:  32,
		FrameInterval: DefaultFrameInterval,
		LabelMinPx:    40,
		Theme:         DefaultTheme(),
	}
}

// Stats describes the last drawn frame.
type Stats struct {
	Drawn      int
	Culled     int
	Invalid    int
	GridLines  int
	Labels     int
	Duration   time.Duration
	FrameCount int
}

// Renderer draws frames for one canvas.
type Renderer struct {
	cfg      Config
	shapes   *shape.Registry
	view     *viewport.Controller
	scene    Source
	feedback FeedbackSource

	ctx   *gg.Context
	last  time.Time
	stats Stats
	frame image.Image
}

// New creates a renderer. feedback may be nil.
func New(cfg Config, shapes *shape.Registry, view *viewport.Controller, scene Source, feedback FeedbackSource) *Renderer {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	return &Renderer{
		cfg:      cfg,
		shapes:   shapes,
		view:     view,
		scene:    scene,
		feedback: feedback,
	}
}

// Stats returns the statistics of the last drawn frame.
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Last returns the most recently drawn frame, or nil.
func (r *Renderer) Last() image.Image {
	return r.frame
}

// Close releases the drawing context.
func (r *Renderer) Close() error {
	if r.ctx == nil {
		return nil
	}
	err := r.ctx.Close()
	r.ctx = nil
	return err
}

// Frame draws a frame unless the previous one was drawn less than one frame
// interval ago, in which case it returns nil and false.
func (r *Renderer) Frame(now time.Time) (image.Image, bool) {
	if !r.last.IsZero() && now.Sub(r.last) < r.cfg.FrameInterval {
		return nil, false
	}
	r.last = now
	return r.Draw(), true
}

// Until returns how long to wait before Frame will draw again.
func (r *Renderer) Until(now time.Time) time.Duration {
	if r.last.IsZero() {
		return 0
	}
	d := r.cfg.FrameInterval - now.Sub(r.last)
	if d < 0 {
		return 0
	}
	return d
}

// Draw renders a frame unconditionally: clear, camera transform, grid,
// panels, then the selected panel's outline and handles, then labels.
func (r *Renderer) Draw() image.Image {
	start := time.Now()
	w, h := r.view.Viewport()
	ctx := r.context(int(w), int(h))
	th := r.cfg.Theme

	visible := r.scene.VisiblePanels()
	stats := Stats{
		Invalid:    r.scene.Len() - len(visible),
		FrameCount: r.stats.FrameCount + 1,
	}

	ctx.ClearWithColor(th.Background)

	cam := r.view.Camera()
	k := r.view.PixelsPerUnit()
	view := r.view.VisibleWorldRect(r.cfg.CullBufferPx)

	ctx.Push()
	ctx.Translate(cam.OffsetX, cam.OffsetY)
	ctx.Scale(k, k)

	stats.GridLines = r.drawGrid(ctx, view, k)

	var fb interaction.Feedback
	if r.feedback != nil {
		fb = r.feedback.Feedback()
	}
	selectedID := r.scene.SelectedID()
	var selected, selectedShown panel.Panel
	hasSelected := false
	labels := make([]label, 0, 64)

	for _, p := range visible {
		shown := p
		if fb.Active && fb.PanelID == p.ID {
			shown = p.WithPosition(fb.Position)
		}
		if !shown.RotatedBounds().Intersects(view) {
			stats.Culled++
			continue
		}
		style := th.styleFor(shown, k)
		if err := r.shapes.Draw(ctx, shown, style); err != nil {
			log.Printf("render: %v", err)
			continue
		}
		stats.Drawn++
		if p.ID == selectedID {
			selected, selectedShown, hasSelected = p, shown, true
		}
		if l, ok := r.labelFor(shown, k); ok {
			l.fill = style.Fill.Color()
			labels = append(labels, l)
		}
	}

	if hasSelected {
		r.drawSelection(ctx, selected, selectedShown, k)
	}
	ctx.Pop()

	img := toRGBA(ctx.Image())
	stats.Labels = drawLabels(img, labels, th)

	stats.Duration = time.Since(start)
	r.stats = stats
	r.frame = img
	return img
}

func (r *Renderer) context(w, h int) *gg.Context {
	w, h = max(w, 1), max(h, 1)
	if r.ctx != nil && r.ctx.Width() == w && r.ctx.Height() == h {
		return r.ctx
	}
	if r.ctx != nil {
		if err := r.ctx.Close(); err != nil {
			log.Printf("render: close context: %v", err)
		}
	}
	r.ctx = gg.NewContext(w, h)
	return r.ctx
}

// drawGrid strokes minor and major lines as two batched paths.
func (r *Renderer) drawGrid(ctx *gg.Context, view geometry.Rect, k float64) int {
	th := r.cfg.Theme
	n := 0
	for _, major := range []bool{false, true} {
		ctx.ClearPath()
		count := 0
		for line := range geometry.GridLines(view, r.cfg.Grid) {
			if line.Major != major {
				continue
			}
			if line.Orientation == geometry.Vertical {
				ctx.DrawLine(line.Coord, view.Y, line.Coord, view.Y+view.Height)
			} else {
				ctx.DrawLine(view.X, line.Coord, view.X+view.Width, line.Coord)
			}
			count++
		}
		if count == 0 {
			continue
		}
		col, width := th.GridMinor, th.GridMinorPx
		if major {
			col, width = th.GridMajor, th.GridMajorPx
		}
		ctx.SetColor(col.Color())
		ctx.SetLineWidth(width / k)
		if err := ctx.Stroke(); err != nil {
			log.Printf("render: grid: %v", err)
		}
		n += count
	}
	return n
}

// drawSelection outlines the selected panel where it is shown and places the
// handles from its committed position.
func (r *Renderer) drawSelection(ctx *gg.Context, stable, shown panel.Panel, k float64) {
	th := r.cfg.Theme
	if err := r.shapes.Outline(ctx, shown, th.Selection, th.SelectionPx/k); err != nil {
		log.Printf("render: selection: %v", err)
		return
	}

	hs := r.shapes.Handles()
	size := hs.ResizeSizePx / k
	ctx.ClearPath()
	for _, c := range shape.ResizeHandles(stable) {
		ctx.DrawRectangle(c.X-size/2, c.Y-size/2, size, size)
	}
	ctx.SetColor(th.Handle.Color())
	if err := ctx.FillPreserve(); err != nil {
		log.Printf("render: handles: %v", err)
	}
	ctx.SetColor(th.Selection.Color())
	ctx.SetLineWidth(1 / k)
	if err := ctx.Stroke(); err != nil {
		log.Printf("render: handles: %v", err)
	}

	anchor := r.shapes.RenderedRotationHandle(stable, k)
	top := shape.ToWorld(stable, stable.Width/2, 0)
	ctx.ClearPath()
	ctx.DrawLine(top.X, top.Y, anchor.X, anchor.Y)
	ctx.SetColor(th.Selection.Color())
	ctx.SetLineWidth(th.SelectionPx / k)
	if err := ctx.Stroke(); err != nil {
		log.Printf("render: rotation stem: %v", err)
	}

	ctx.ClearPath()
	ctx.DrawCircle(anchor.X, anchor.Y, hs.RotationRadiusPx/k)
	ctx.SetColor(th.Handle.Color())
	if err := ctx.FillPreserve(); err != nil {
		log.Printf("render: rotation handle: %v", err)
	}
	ctx.SetColor(th.Selection.Color())
	if err := ctx.Stroke(); err != nil {
		log.Printf("render: rotation handle: %v", err)
	}
}

func (r *Renderer) labelFor(p panel.Panel, k float64) (label, bool) {
	text := p.Meta.Label
	if text == "" || p.Width*k < r.cfg.LabelMinPx {
		return label{}, false
	}
	c := r.view.WorldToScreen(p.Center())
	return label{text: text, x: c.X, y: c.Y}, true
}
