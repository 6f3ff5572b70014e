//go:build !windows

package shutdown

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestWatchDeliversSignal(t *testing.T) {
	got := make(chan os.Signal, 1)
	stop := Watch(func(sig os.Signal) { got <- sig })
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case sig := <-got:
		if sig != syscall.SIGTERM {
			t.Errorf("got %v, want SIGTERM", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	stop := Watch(func(os.Signal) { t.Error("callback after stop") })
	stop()
	stop()
}
