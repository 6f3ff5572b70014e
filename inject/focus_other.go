//go:build !darwin

package inject

// OSFocus is a no-op outside macOS; X11 and Wayland give focus back to the
// previous window on their own once the indicator, which never takes
// focus, is shown.
type OSFocus = NoFocus
