//go:build gui

package indicator

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// overlayTheme pins the dark variant and a translucent background so the
// dot reads the same on light and dark desktops. Fonts, icons and sizes
// come from the embedded default theme.
type overlayTheme struct {
	fyne.Theme
}

func newOverlayTheme() fyne.Theme {
	return overlayTheme{Theme: theme.DefaultTheme()}
}

func (t overlayTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground, theme.ColorNameOverlayBackground:
		return color.RGBA{18, 18, 18, 230}
	case theme.ColorNameForeground:
		return color.White
	}
	return t.Theme.Color(name, theme.VariantDark)
}
