// Package hotkey reports press and release edges of one global trigger
// key.
package hotkey

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"sayit/apperr"
)

// Hotkey is a registered global key. Backends may repeat Keydown while
// the key is held; wrap them with Debounce before use.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Key is one entry of the trigger key table.
type Key struct {
	Name string
	// Modifier keys can only be watched where raw key events are
	// readable (evdev); shortcut APIs need a non-modifier key.
	Modifier bool
	evdev    []uint16
	fn       int // 1..12 for function keys
}

func modifier(codes ...uint16) Key { return Key{Modifier: true, evdev: codes} }
func function(n int, code uint16) Key {
	return Key{fn: n, evdev: []uint16{code}}
}

// evdev codes from linux/input-event-codes.h
var keys = map[string]Key{
	"ctrl":    modifier(29, 97),
	"ctrl_l":  modifier(29),
	"ctrl_r":  modifier(97),
	"alt":     modifier(56, 100),
	"alt_l":   modifier(56),
	"alt_r":   modifier(100),
	"option":  modifier(56, 100),
	"cmd":     modifier(125, 126),
	"cmd_l":   modifier(125),
	"cmd_r":   modifier(126),
	"command": modifier(125, 126),
	"shift":   modifier(42, 54),
	"shift_l": modifier(42),
	"shift_r": modifier(54),
	"f1":      function(1, 59),
	"f2":      function(2, 60),
	"f3":      function(3, 61),
	"f4":      function(4, 62),
	"f5":      function(5, 63),
	"f6":      function(6, 64),
	"f7":      function(7, 65),
	"f8":      function(8, 66),
	"f9":      function(9, 67),
	"f10":     function(10, 68),
	"f11":     function(11, 87),
	"f12":     function(12, 88),
}

// Names lists every key Parse accepts, sorted.
func Names() []string {
	names := lo.Keys(keys)
	slices.Sort(names)
	return names
}

// Usable lists the names this platform can register, sorted.
func Usable() []string {
	return lo.Filter(Names(), func(n string, _ int) bool {
		return supported(keys[n]) == nil
	})
}

// Parse looks name up in the key table. Unknown names are
// apperr.ErrConfigInvalid.
func Parse(name string) (Key, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	k, ok := keys[n]
	if !ok {
		return Key{}, fmt.Errorf("%w: unsupported hotkey %q (supported here: %s)",
			apperr.ErrConfigInvalid, name, strings.Join(Usable(), ", "))
	}
	k.Name = n
	return k, nil
}

func (k Key) matches(code uint16) bool {
	return slices.Contains(k.evdev, code)
}

// Check reports whether name can be used as the trigger on this platform.
func Check(name string) error {
	k, err := Parse(name)
	if err != nil {
		return err
	}
	return supported(k)
}
