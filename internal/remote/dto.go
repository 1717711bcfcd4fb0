package remote

import (
	"encoding/json"
	"fmt"
	"log"
	"maps"

	"liner-layout/internal/panel"
	"liner-layout/pkg/geometry"
)

// PanelDTO is a panel as the remote layout store sends it.
type PanelDTO struct {
	ID          string            `json:"id"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	WidthFt     float64           `json:"width_ft"`
	HeightFt    float64           `json:"height_ft"`
	RotationDeg float64           `json:"rotation_deg"`
	Shape       string            `json:"shape"`
	Label       string            `json:"label,omitempty"`
	Color       string            `json:"color,omitempty"`
	Material    string            `json:"material,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// MoveRequest is the body of a position update.
type MoveRequest struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	RotationDeg float64 `json:"rotation_deg"`
}

// LayoutResponse is the body of a layout fetch. Entries are decoded one at a
// time so a single malformed panel does not fail the whole layout.
type LayoutResponse struct {
	Panels []json.RawMessage `json:"panels"`
}

// Normalize converts a DTO into the engine model. It rejects payloads the
// engine cannot represent: a missing id, non-finite numbers or an unknown
// shape. Geometrically invalid panels (a zero width, say) are kept; the
// render and hit-test paths filter them.
func Normalize(d PanelDTO) (panel.Panel, error) {
	if d.ID == "" {
		return panel.Panel{}, fmt.Errorf("%w: missing id", ErrInvalidPanel)
	}
	for _, v := range []float64{d.X, d.Y, d.WidthFt, d.HeightFt, d.RotationDeg} {
		if !geometry.IsFinite(v) {
			return panel.Panel{}, fmt.Errorf("%w %s: non-finite value", ErrInvalidPanel, d.ID)
		}
	}
	shape, err := panel.ParseShape(d.Shape)
	if err != nil {
		return panel.Panel{}, fmt.Errorf("%w %s: %v", ErrInvalidPanel, d.ID, err)
	}

	h := d.HeightFt
	if shape == panel.Patch && h == 0 {
		h = d.WidthFt
	}
	return panel.Panel{
		ID:       d.ID,
		X:        d.X,
		Y:        d.Y,
		Width:    d.WidthFt,
		Height:   h,
		Rotation: panel.NormalizeRotation(d.RotationDeg),
		Shape:    shape,
		Meta: panel.Meta{
			Label:    d.Label,
			Color:    d.Color,
			Material: d.Material,
			Extra:    maps.Clone(d.Meta),
		},
	}, nil
}

// FromPanel converts an engine panel into its wire form.
func FromPanel(p panel.Panel) PanelDTO {
	return PanelDTO{
		ID:          p.ID,
		X:           p.X,
		Y:           p.Y,
		WidthFt:     p.Width,
		HeightFt:    p.Height,
		RotationDeg: p.Rotation,
		Shape:       string(p.Shape),
		Label:       p.Meta.Label,
		Color:       p.Meta.Color,
		Material:    p.Meta.Material,
		Meta:        maps.Clone(p.Meta.Extra),
	}
}

// DecodeLayout normalizes every entry of a layout response, logging and
// skipping the ones that fail.
func DecodeLayout(resp LayoutResponse) []panel.Panel {
	panels := make([]panel.Panel, 0, len(resp.Panels))
	for i, raw := range resp.Panels {
		var d PanelDTO
		if err := json.Unmarshal(raw, &d); err != nil {
			log.Printf("remote: skip panel %d: %v", i, err)
			continue
		}
		p, err := Normalize(d)
		if err != nil {
			log.Printf("remote: skip panel %d: %v", i, err)
			continue
		}
		panels = append(panels, p)
	}
	return panels
}
