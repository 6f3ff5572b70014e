//go:build !darwin

package clipboard

import (
	"fmt"

	"github.com/micmonay/keybd_event"
)

func pasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
}

func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", fmt.Errorf("keyboard init: %w", err)
	}
	return "keyboard event binding OK (Ctrl+V)", nil
}
