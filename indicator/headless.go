package indicator

import (
	"sayit/log"
	"sayit/mainloop"
)

// Headless is a Surface without visuals: states are logged and callbacks
// run on a mainloop.Loop. Used on systems without a display and by
// `sayit run --headless`.
type Headless struct {
	loop *mainloop.Loop
}

func NewHeadless() *Headless {
	return &Headless{loop: mainloop.New()}
}

func (h *Headless) Schedule(fn func()) { h.loop.Schedule(fn) }

func (h *Headless) Apply(s State) {
	log.Info("indicator: " + s.String())
}

func (h *Headless) Run(ready func()) error {
	go ready()
	h.loop.Run()
	return nil
}

func (h *Headless) Quit() { h.loop.Quit() }
