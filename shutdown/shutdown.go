// Package shutdown turns process termination signals into a callback.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
)

// Watch calls fn once, on its own goroutine, for the first termination
// signal. The returned stop function releases the signal handler; after
// it returns fn is no longer called.
func Watch(fn func(os.Signal)) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			fn(sig)
		case <-done:
		}
	}()
	return sync.OnceFunc(func() {
		signal.Stop(ch)
		close(done)
	})
}
