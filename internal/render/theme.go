package render

import (
	"github.com/gogpu/gg"

	"liner-layout/internal/panel"
	"liner-layout/internal/shape"
	"liner-layout/pkg/colorutil"
)

// Theme holds the colors and pixel widths used for a frame.
type Theme struct {
	Background  gg.RGBA
	GridMinor   gg.RGBA
	GridMajor   gg.RGBA
	GridMinorPx float64
	GridMajorPx float64

	Fill      map[panel.Shape]gg.RGBA
	Outline   gg.RGBA
	OutlinePx float64

	Selection   gg.RGBA
	SelectionPx float64
	Handle      gg.RGBA

	// Label is used on light fills and LabelLight on dark ones.
	Label      gg.RGBA
	LabelLight gg.RGBA
}

// DefaultTheme is a light drafting-table palette.
func DefaultTheme() Theme {
	return Theme{
		Background:  gg.Hex("#f7f7f2"),
		GridMinor:   gg.Hex("#e2e2da"),
		GridMajor:   gg.Hex("#c4c4b8"),
		GridMinorPx: 1,
		GridMajorPx: 1.5,
		Fill: map[panel.Shape]gg.RGBA{
			panel.Rectangle:     gg.Hex("#8fb8de"),
			panel.RightTriangle: gg.Hex("#9fd4a3"),
			panel.Patch:         gg.Hex("#f2b880"),
		},
		Outline:     gg.Hex("#3a4a5a"),
		OutlinePx:   1,
		Selection:   gg.Hex("#e0483e"),
		SelectionPx: 2,
		Handle:      gg.RGB(1, 1, 1),
		Label:       gg.Hex("#1d2733"),
		LabelLight:  gg.Hex("#fbfbf8"),
	}
}

// styleFor picks the paint for a panel. A parseable Meta.Color overrides the
// shape's default fill.
func (t Theme) styleFor(p panel.Panel, k float64) shape.Style {
	fill, ok := t.Fill[p.Shape]
	if !ok {
		fill = gg.RGB(0.8, 0.8, 0.8)
	}
	if p.Meta.Color != "" {
		if colorutil.ValidHex(p.Meta.Color) {
			fill = gg.Hex(p.Meta.Color)
		}
	}
	return shape.Style{
		Fill:      fill,
		Stroke:    t.Outline,
		LineWidth: t.OutlinePx / k,
	}
}
