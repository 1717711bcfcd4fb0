// Package panel defines the positioned liner panel entity and its validation
// rules.
package panel

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/google/uuid"

	"liner-layout/pkg/geometry"
)

// Limits for panel geometry in world units (feet).
const (
	MinSize    = 0.1
	MaxSize    = 10000.0
	MaxCoord   = 100000.0
	patchSlack = 1e-9
)

// LocalPrefix marks ids that have not been confirmed by the remote store.
const LocalPrefix = "local-"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid panel")

// Shape is the tagged variant selecting draw and hit-test behavior.
type Shape string

const (
	Rectangle     Shape = "rectangle"
	RightTriangle Shape = "right-triangle"
	Patch         Shape = "patch"
)

// Shapes lists every known shape.
var Shapes = []Shape{Rectangle, RightTriangle, Patch}

// ParseShape maps the spellings used by the remote store onto a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rect", "rectangle":
		return Rectangle, nil
	case "triangle", "right-triangle", "right_triangle":
		return RightTriangle, nil
	case "patch", "circle":
		return Patch, nil
	}
	return "", fmt.Errorf("unknown shape %q", s)
}

// Known reports whether s is one of the defined shapes.
func (s Shape) Known() bool {
	switch s {
	case Rectangle, RightTriangle, Patch:
		return true
	}
	return false
}

// Meta is descriptive data carried through the engine without interpretation.
type Meta struct {
	Label    string            `json:"label,omitempty"`
	Color    string            `json:"color,omitempty"`
	Material string            `json:"material,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy.
func (m Meta) Clone() Meta {
	m.Extra = maps.Clone(m.Extra)
	return m
}

// Panel is a positioned, oriented liner panel. X, Y is the reference corner:
// top-left for rectangles and right triangles, bounding-box top-left for
// patches.
type Panel struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	Shape    Shape   `json:"shape"`
	Meta     Meta    `json:"meta"`
}

// Clone returns a copy that shares no mutable state with p.
func (p Panel) Clone() Panel {
	p.Meta = p.Meta.Clone()
	return p
}

// Bounds returns the unrotated bounding box.
func (p Panel) Bounds() geometry.Rect {
	return geometry.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// Center returns the rotation pivot.
func (p Panel) Center() geometry.Point2D {
	return geometry.Point2D{X: p.X + p.Width/2, Y: p.Y + p.Height/2}
}

// RotatedBounds returns the axis-aligned box enclosing the panel at its
// current rotation.
func (p Panel) RotatedBounds() geometry.Rect {
	if p.Rotation == 0 || p.Shape == Patch {
		return p.Bounds()
	}
	c := p.Center()
	sin, cos := math.Sincos(geometry.Radians(p.Rotation))
	hw := (math.Abs(p.Width*cos) + math.Abs(p.Height*sin)) / 2
	hh := (math.Abs(p.Width*sin) + math.Abs(p.Height*cos)) / 2
	return geometry.Rect{X: c.X - hw, Y: c.Y - hh, Width: 2 * hw, Height: 2 * hh}
}

// Position is the subset of fields an interaction gesture changes.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// Position returns the panel's current position.
func (p Panel) Position() Position {
	return Position{X: p.X, Y: p.Y, Rotation: p.Rotation}
}

// WithPosition returns p moved to pos with the rotation normalized.
func (p Panel) WithPosition(pos Position) Panel {
	p.X = pos.X
	p.Y = pos.Y
	p.Rotation = NormalizeRotation(pos.Rotation)
	return p
}

// Placement is the locally cached overlay for one panel.
type Placement struct {
	Position
	Shape Shape `json:"shape"`
}

// Placement returns the fields the local cache keeps for p.
func (p Panel) Placement() Placement {
	return Placement{Position: p.Position(), Shape: p.Shape}
}

// ValidatePlacement checks a cached overlay before it is applied.
func ValidatePlacement(pl Placement) error {
	if !geometry.IsFinite(pl.X) || !geometry.IsFinite(pl.Y) || !geometry.IsFinite(pl.Rotation) {
		return fmt.Errorf("%w: non-finite cached position", ErrInvalid)
	}
	if math.Abs(pl.X) > MaxCoord || math.Abs(pl.Y) > MaxCoord {
		return fmt.Errorf("%w: cached position (%g, %g) beyond %g", ErrInvalid, pl.X, pl.Y, MaxCoord)
	}
	if !pl.Shape.Known() {
		return fmt.Errorf("%w: cached shape %q", ErrInvalid, pl.Shape)
	}
	return nil
}

// IsPendingLocal reports whether the id was minted locally.
func IsPendingLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// NewLocalID mints a pending-local id.
func NewLocalID() string {
	return LocalPrefix + uuid.NewString()
}

// NormalizeRotation maps a finite angle in degrees into [0, 360).
func NormalizeRotation(deg float64) float64 {
	if !geometry.IsFinite(deg) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// Validate checks the data-model invariants.
func Validate(p Panel) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if !p.Shape.Known() {
		return fmt.Errorf("%w %s: unknown shape %q", ErrInvalid, p.ID, p.Shape)
	}
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height, p.Rotation} {
		if !geometry.IsFinite(v) {
			return fmt.Errorf("%w %s: non-finite value", ErrInvalid, p.ID)
		}
	}
	if p.Width < MinSize || p.Width > MaxSize || p.Height < MinSize || p.Height > MaxSize {
		return fmt.Errorf("%w %s: size %gx%g outside [%g, %g]", ErrInvalid, p.ID, p.Width, p.Height, MinSize, MaxSize)
	}
	if math.Abs(p.X) > MaxCoord || math.Abs(p.Y) > MaxCoord {
		return fmt.Errorf("%w %s: position (%g, %g) beyond %g", ErrInvalid, p.ID, p.X, p.Y, MaxCoord)
	}
	if p.Shape == Patch && math.Abs(p.Height-p.Width) > patchSlack {
		return fmt.Errorf("%w %s: patch height %g differs from diameter %g", ErrInvalid, p.ID, p.Height, p.Width)
	}
	return nil
}

// IsValid reports whether p satisfies the data-model invariants.
func IsValid(p Panel) bool {
	return Validate(p) == nil
}
