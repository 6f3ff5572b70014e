//go:build !gui

package indicator

import "errors"

// Window is unavailable in builds without the gui tag.
type Window struct{ Headless }

func NewWindow(func()) (*Window, error) {
	return nil, errors.New("built without GUI support (rebuild with -tags gui)")
}
