//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// launchd and `sayit stop` send SIGTERM; a foreground run gets SIGINT.
var signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
