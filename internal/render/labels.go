package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"liner-layout/pkg/colorutil"
)

type label struct {
	text string
	x, y float64
	// fill is the panel color under the text.
	fill color.Color
}

var labelFace = basicfont.Face7x13

// drawLabels writes centered labels in screen space and returns how many
// fit inside the image.
func drawLabels(img *image.RGBA, labels []label, th Theme) int {
	if len(labels) == 0 {
		return 0
	}
	dark, light := th.Label.Color(), th.LabelLight.Color()
	d := &font.Drawer{
		Dst:  img,
		Face: labelFace,
	}
	bounds := img.Bounds()
	ascent := labelFace.Metrics().Ascent.Ceil()
	n := 0
	for _, l := range labels {
		width := d.MeasureString(l.text).Ceil()
		x := int(l.x) - width/2
		y := int(l.y) + ascent/2
		box := image.Rect(x, y-ascent, x+width, y)
		if !box.In(bounds) {
			continue
		}
		src := dark
		if l.fill != nil {
			src = colorutil.Contrasting(l.fill, dark, light)
		}
		d.Src = image.NewUniform(src)
		d.Dot = fixed.P(x, y)
		d.DrawString(l.text)
		n++
	}
	return n
}

// toRGBA returns img as *image.RGBA, converting if necessary.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
