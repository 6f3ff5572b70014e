// Package indicator drives the floating status cue. Every visual change
// happens on the surface's own thread; other goroutines only Request.
package indicator

import (
	"time"
)

type State int

const (
	Hidden State = iota
	Recording
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Error:
		return "error"
	}
	return "unknown"
}

// Surface renders states on the GUI-owning thread.
type Surface interface {
	// Schedule runs fn on the surface thread. It must not block.
	Schedule(fn func())
	// Apply updates visuals. Only called from scheduled callbacks.
	Apply(s State)
	// Run takes over the calling thread until Quit. ready is invoked on
	// another goroutine once the surface accepts callbacks.
	Run(ready func()) error
	Quit()
}

// Controller serializes state requests onto a Surface and reverts Error
// to Hidden after a display window unless a newer request arrives first.
type Controller struct {
	surface      Surface
	errorDisplay time.Duration

	// owned by the surface thread
	current  State
	gen      uint64
	revert   *time.Timer
	onChange []func(State)
}

func NewController(s Surface, errorDisplay time.Duration) *Controller {
	return &Controller{surface: s, errorDisplay: errorDisplay}
}

// Request schedules state s. Safe from any goroutine.
func (c *Controller) Request(s State) {
	c.surface.Schedule(func() { c.set(s) })
}

// OnChange registers fn to observe applied states on the surface thread.
// Register before the first Request.
func (c *Controller) OnChange(fn func(State)) {
	c.onChange = append(c.onChange, fn)
}

// Current must be called on the surface thread.
func (c *Controller) Current() State {
	return c.current
}

func (c *Controller) set(s State) {
	c.gen++
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}

	if s == Error {
		gen := c.gen
		c.revert = time.AfterFunc(c.errorDisplay, func() {
			c.surface.Schedule(func() {
				if c.gen == gen {
					c.set(Hidden)
				}
			})
		})
	}

	if s == c.current {
		return
	}
	c.current = s
	c.surface.Apply(s)
	for _, fn := range c.onChange {
		fn(s)
	}
}
