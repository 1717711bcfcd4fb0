// Package interaction turns pointer, wheel and keyboard input into camera
// changes and panel edits.
package interaction

import (
	"fmt"
	"log"
	"math"
	"time"

	"liner-layout/internal/panel"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"
	"liner-layout/pkg/geometry"
)

// Mode is the gesture currently in progress.
type Mode int

const (
	Idle Mode = iota
	Panning
	Dragging
	Rotating
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case Dragging:
		return "dragging"
	case Rotating:
		return "rotating"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Scene is the part of the scene store the machine edits.
type Scene interface {
	VisiblePanels() []panel.Panel
	Panel(id string) (panel.Panel, bool)
	UpdatePanelPosition(id string, pos panel.Position) bool
	RemovePanel(id string) bool
	Select(id string) bool
	SelectedID() string
	ClearSelection()
}

// Config holds snapping and gesture tunables.
type Config struct {
	// Snap enables grid and angle snapping.
	Snap bool
	// GridStep is the drag snap pitch in world units.
	GridStep float64
	// AngleStep is the rotation snap pitch in degrees.
	AngleStep float64
	// DeadZonePx is how far a press on a panel must travel before it drags.
	DeadZonePx float64
	// ZoomStep is the camera factor per wheel notch.
	ZoomStep float64
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		Snap:       true,
		GridStep:   0.5,
		AngleStep:  15,
		DeadZonePx: 3,
		ZoomStep:   1.1,
	}
}

// Feedback is the read-only view of an active gesture handed to the renderer.
type Feedback struct {
	Mode    Mode
	PanelID string
	// Position is the uncommitted drag or rotate value. Valid only when
	// Active is true.
	Position panel.Position
	Active   bool
}

// session exists only while a pointer gesture is active.
type session struct {
	mode    Mode
	panelID string

	pressScreen geometry.Point2D
	lastScreen  geometry.Point2D
	moved       bool

	// dragging
	grabOffset geometry.Point2D

	// rotating
	startRotation float64
	startAngle    float64

	origin       panel.Position
	transient    panel.Position
	hasTransient bool
}

// Machine is the interaction state machine for one canvas.
type Machine struct {
	cfg      Config
	scene    Scene
	shapes   *shape.Registry
	view     *viewport.Controller
	throttle *viewport.ZoomThrottle
	now      func() time.Time
	onChange func()

	s session
}

// New creates an idle machine.
func New(cfg Config, scene Scene, shapes *shape.Registry, view *viewport.Controller, throttle *viewport.ZoomThrottle) *Machine {
	if cfg.ZoomStep <= 1 {
		cfg.ZoomStep = DefaultConfig().ZoomStep
	}
	return &Machine{
		cfg:      cfg,
		scene:    scene,
		shapes:   shapes,
		view:     view,
		throttle: throttle,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for wheel throttling.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// OnChange registers a callback invoked whenever something visible changed.
func (m *Machine) OnChange(fn func()) {
	m.onChange = fn
}

// SetSnap toggles grid and angle snapping.
func (m *Machine) SetSnap(on bool) {
	m.cfg.Snap = on
}

// Config returns the current tunables.
func (m *Machine) Config() Config {
	return m.cfg
}

// Mode returns the current gesture mode.
func (m *Machine) Mode() Mode {
	return m.s.mode
}

// Feedback returns a snapshot of the active gesture.
func (m *Machine) Feedback() Feedback {
	return Feedback{
		Mode:     m.s.mode,
		PanelID:  m.s.panelID,
		Position: m.s.transient,
		Active:   m.s.hasTransient,
	}
}

func (m *Machine) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// GetPanelAtPosition returns the topmost valid panel whose body contains the
// screen point.
func (m *Machine) GetPanelAtPosition(pt geometry.Point2D) (panel.Panel, bool) {
	w := m.view.ScreenToWorld(pt)
	panels := m.scene.VisiblePanels()
	for i := len(panels) - 1; i >= 0; i-- {
		if m.shapes.Contains(panels[i], w.X, w.Y) {
			return panels[i], true
		}
	}
	return panel.Panel{}, false
}

// handleAt returns the topmost panel whose rotation handle is under the
// world point.
func (m *Machine) handleAt(w geometry.Point2D, panels []panel.Panel) (panel.Panel, bool) {
	k := m.view.PixelsPerUnit()
	for i := len(panels) - 1; i >= 0; i-- {
		if m.shapes.HitRotationHandle(panels[i], w.X, w.Y, k) {
			return panels[i], true
		}
	}
	return panel.Panel{}, false
}

// PointerDown starts a gesture. Rotation handles are tested before panel
// bodies; a press on empty space pans.
func (m *Machine) PointerDown(pt geometry.Point2D) {
	if m.s.mode != Idle {
		m.Cancel()
	}
	if !pt.IsFinite() {
		return
	}
	w := m.view.ScreenToWorld(pt)
	panels := m.scene.VisiblePanels()
	m.s = session{pressScreen: pt, lastScreen: pt}

	if p, ok := m.handleAt(w, panels); ok {
		m.s.mode = Rotating
		m.s.panelID = p.ID
		m.s.startRotation = p.Rotation
		m.s.startAngle = shape.AngleAt(p, w.X, w.Y)
		m.s.origin = p.Position()
		m.s.transient = p.Position()
		m.scene.Select(p.ID)
		m.changed()
		return
	}

	for i := len(panels) - 1; i >= 0; i-- {
		p := panels[i]
		if !m.shapes.Contains(p, w.X, w.Y) {
			continue
		}
		m.s.mode = Dragging
		m.s.panelID = p.ID
		m.s.grabOffset = geometry.Point2D{X: w.X - p.X, Y: w.Y - p.Y}
		m.s.startRotation = p.Rotation
		m.s.origin = p.Position()
		m.s.transient = p.Position()
		m.scene.Select(p.ID)
		m.changed()
		return
	}

	m.s.mode = Panning
}

// PointerMove advances the active gesture.
func (m *Machine) PointerMove(pt geometry.Point2D) {
	if m.s.mode == Idle || !pt.IsFinite() {
		return
	}
	switch m.s.mode {
	case Panning:
		dx, dy := pt.X-m.s.lastScreen.X, pt.Y-m.s.lastScreen.Y
		m.s.lastScreen = pt
		if dx == 0 && dy == 0 {
			return
		}
		m.s.moved = true
		if m.view.PanBy(dx, dy) {
			m.changed()
		}

	case Dragging:
		m.s.lastScreen = pt
		if !m.s.moved {
			if pt.Distance(m.s.pressScreen) < m.cfg.DeadZonePx {
				return
			}
			m.s.moved = true
		}
		p, ok := m.scene.Panel(m.s.panelID)
		if !ok {
			m.abort()
			return
		}
		w := m.view.ScreenToWorld(pt)
		x := m.snap(w.X-m.s.grabOffset.X, m.cfg.GridStep)
		y := m.snap(w.Y-m.s.grabOffset.Y, m.cfg.GridStep)
		x, y = m.clampToBounds(p, x, y)
		m.s.transient = panel.Position{X: x, Y: y, Rotation: m.s.startRotation}
		m.s.hasTransient = true
		m.changed()

	case Rotating:
		m.s.lastScreen = pt
		if !m.s.moved {
			if pt.Distance(m.s.pressScreen) < m.cfg.DeadZonePx {
				return
			}
			m.s.moved = true
		}
		p, ok := m.scene.Panel(m.s.panelID)
		if !ok {
			m.abort()
			return
		}
		w := m.view.ScreenToWorld(pt)
		delta := shape.AngleAt(p, w.X, w.Y) - m.s.startAngle
		rot := panel.NormalizeRotation(m.snap(m.s.startRotation+delta, m.cfg.AngleStep))
		m.s.transient = panel.Position{X: p.X, Y: p.Y, Rotation: rot}
		m.s.hasTransient = true
		m.changed()
	}
}

// PointerUp commits the transient value of a drag or rotation and returns
// to idle. A click on empty space clears the selection.
func (m *Machine) PointerUp(pt geometry.Point2D) {
	if m.s.mode == Idle {
		return
	}
	m.PointerMove(pt)
	s := m.s
	m.s = session{}

	switch s.mode {
	case Dragging, Rotating:
		if s.hasTransient && s.transient != s.origin {
			if !m.scene.UpdatePanelPosition(s.panelID, s.transient) {
				log.Printf("interaction: panel %s vanished before commit", s.panelID)
			}
		}
	case Panning:
		if !s.moved {
			m.scene.ClearSelection()
		}
	}
	m.changed()
}

// Cancel ends any gesture and discards its uncommitted value. It is used
// for pointer-cancel and focus loss.
func (m *Machine) Cancel() {
	if m.s.mode == Idle {
		return
	}
	m.s = session{}
	m.changed()
}

func (m *Machine) abort() {
	log.Printf("interaction: panel %s disappeared mid-gesture", m.s.panelID)
	m.Cancel()
}

// Wheel zooms around the pointer. Positive deltaY zooms in. Bursts are
// coalesced to one camera change per frame; it reports whether the camera
// changed now.
func (m *Machine) Wheel(pt geometry.Point2D, deltaY float64) bool {
	if deltaY == 0 || !geometry.IsFinite(deltaY) {
		return false
	}
	factor := m.cfg.ZoomStep
	if deltaY < 0 {
		factor = 1 / factor
	}
	if m.throttle == nil {
		ok := m.view.ZoomAt(pt, factor)
		if ok {
			m.changed()
		}
		return ok
	}
	m.throttle.Add(pt, factor)
	ok := m.throttle.Flush(m.now(), m.view)
	// A deferred zoom still needs a frame to pick it up.
	m.changed()
	return ok
}

// Tick applies any wheel zoom the throttle deferred. The render loop calls
// it once per frame.
func (m *Machine) Tick(now time.Time) bool {
	if m.throttle == nil {
		return false
	}
	return m.throttle.Flush(now, m.view)
}

// KeyNudge moves the selected panel by a world delta and commits at once.
func (m *Machine) KeyNudge(dx, dy float64) bool {
	if m.s.mode != Idle {
		return false
	}
	p, ok := m.selected()
	if !ok {
		return false
	}
	x, y := m.clampToBounds(p, p.X+dx, p.Y+dy)
	ok = m.scene.UpdatePanelPosition(p.ID, panel.Position{X: x, Y: y, Rotation: p.Rotation})
	if ok {
		m.changed()
	}
	return ok
}

// RotateSelected rotates the selected panel by deltaDeg and commits at once.
func (m *Machine) RotateSelected(deltaDeg float64) bool {
	if m.s.mode != Idle {
		return false
	}
	p, ok := m.selected()
	if !ok {
		return false
	}
	rot := panel.NormalizeRotation(m.snap(p.Rotation+deltaDeg, m.cfg.AngleStep))
	ok = m.scene.UpdatePanelPosition(p.ID, panel.Position{X: p.X, Y: p.Y, Rotation: rot})
	if ok {
		m.changed()
	}
	return ok
}

// DeleteSelected removes the selected panel.
func (m *Machine) DeleteSelected() bool {
	if m.s.mode != Idle {
		return false
	}
	id := m.scene.SelectedID()
	if id == "" {
		return false
	}
	ok := m.scene.RemovePanel(id)
	if ok {
		m.changed()
	}
	return ok
}

func (m *Machine) selected() (panel.Panel, bool) {
	id := m.scene.SelectedID()
	if id == "" {
		return panel.Panel{}, false
	}
	p, ok := m.scene.Panel(id)
	if !ok || !panel.IsValid(p) {
		return panel.Panel{}, false
	}
	return p, true
}

func (m *Machine) snap(v, step float64) float64 {
	if !m.cfg.Snap || step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

// clampToBounds keeps the panel's box inside a bounded world.
func (m *Machine) clampToBounds(p panel.Panel, x, y float64) (float64, float64) {
	b := m.view.Config().Bounds
	if b == nil {
		return x, y
	}
	x = math.Max(b.X, math.Min(b.X+b.Width-p.Width, x))
	y = math.Max(b.Y, math.Min(b.Y+b.Height-p.Height, y))
	return x, y
}
