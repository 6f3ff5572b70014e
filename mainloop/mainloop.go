// Package mainloop is a single-consumer callback queue. All callbacks run
// one at a time on the goroutine that called Run, in the order they were
// scheduled. Schedule never blocks, so it is safe from hotkey callbacks,
// audio threads and timers alike.
package mainloop

import (
	"sync"
	"time"
)

type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	closed bool
	once   sync.Once
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Schedule enqueues fn. Callbacks scheduled after Quit are dropped.
func (l *Loop) Schedule(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After schedules fn once d has elapsed. Stopping the returned timer
// before it fires cancels the callback.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Schedule(fn) })
}

// Run executes callbacks until Quit. It must be called exactly once.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}
		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			fn()
			select {
			case <-l.quit:
				return
			default:
			}
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Quit stops Run after the callback in progress returns. Pending callbacks
// are discarded.
func (l *Loop) Quit() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.quit)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Sync runs fn on the loop and waits for it. It reports false if the loop
// quit before fn ran. Never call it from a loop callback.
func (l *Loop) Sync(fn func()) bool {
	ran := make(chan struct{})
	l.Schedule(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return true
	case <-l.quit:
		return false
	}
}
