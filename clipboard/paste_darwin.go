//go:build darwin

package clipboard

import "github.com/micmonay/keybd_event"

func pasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasSuper(true) // Cmd+V
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK (Cmd+V)", nil
}
