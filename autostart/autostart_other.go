//go:build !darwin

package autostart

func Enable(string) error { return ErrUnsupported }
func Disable() error      { return ErrUnsupported }
