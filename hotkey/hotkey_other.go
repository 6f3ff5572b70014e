//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"sayit/apperr"
)

const DefaultKey = "f5"

var fnKeys = [...]hotkey.Key{
	hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4,
	hotkey.KeyF5, hotkey.KeyF6, hotkey.KeyF7, hotkey.KeyF8,
	hotkey.KeyF9, hotkey.KeyF10, hotkey.KeyF11, hotkey.KeyF12,
}

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func supported(k Key) error {
	if k.Modifier {
		return fmt.Errorf("%w: %s is a modifier key; modifier triggers are only supported on linux, use one of f1-f12",
			apperr.ErrConfigInvalid, k.Name)
	}
	return nil
}

// New registers key through the OS shortcut API (Carbon on macOS). The
// event loop must be running on the main thread; see mainthread.Init.
func New(key Key) (Hotkey, error) {
	if err := supported(key); err != nil {
		return nil, err
	}
	return &xHotkey{
		hk:      hotkey.New(nil, fnKeys[key.fn-1]),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPermissionDenied, err)
	}
	go h.forward(h.hk.Keydown(), h.keydown)
	go h.forward(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) forward(in <-chan hotkey.Event, out chan struct{}) {
	for {
		select {
		case <-in:
		case <-h.stop:
			return
		}
		select {
		case out <- struct{}{}:
		case <-h.stop:
			return
		}
	}
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose(Key) (string, error) {
	return "hotkey support available (function keys)", nil
}
