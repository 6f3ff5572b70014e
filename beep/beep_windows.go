//go:build windows

package beep

import "errors"

func newBackend() (backend, error) {
	return nil, errors.New("no playback backend on windows")
}
