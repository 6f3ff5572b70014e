// Package clipboard reads and writes the system text clipboard and sends
// the platform paste shortcut to the focused application.
package clipboard

import (
	"sync"

	cb "github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

func Read() (string, error) {
	return cb.ReadAll()
}

func Write(text string) error {
	return cb.WriteAll(text)
}

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Init creates the synthetic keyboard. On Linux this opens /dev/uinput,
// which the compositor needs a moment to pick up, so call it early.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

// Paste taps the paste shortcut once.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	pasteModifier(&kb)
	return kb.Launching()
}

// System is the real clipboard and keyboard, for wiring into an injector.
type System struct{}

func (System) Read() (string, error)   { return Read() }
func (System) Write(text string) error { return Write(text) }
func (System) Paste() error            { return Paste() }
