//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"sayit/apperr"
)

// alive treats EPERM as alive: the process exists but belongs to
// someone else.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func terminate(pid int, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.EPERM) {
		return fmt.Errorf("%w: %w", apperr.ErrPermissionDenied, err)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// detached puts the child in its own session so it outlives the
// terminal that ran `sayit start`.
func detached() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
