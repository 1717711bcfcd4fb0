package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// LayoutTheme is the application theme.
type LayoutTheme struct{}

var _ fyne.Theme = (*LayoutTheme)(nil)

func (t *LayoutTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x2F, G: 0x5D, B: 0x8A, A: 0xFF} // Liner blue
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xE0, G: 0x48, B: 0x3E, A: 0x80} // Matches the canvas selection outline
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *LayoutTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *LayoutTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *LayoutTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameInnerPadding:
		return 6 // Denser toolbar
	default:
		return theme.DefaultTheme().Size(name)
	}
}
