//go:build darwin

package inject

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const osascriptTimeout = time.Second

const frontmostScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	return bundle identifier of frontApp
end tell`

// OSFocus drives System Events through osascript. It needs the
// Accessibility permission like the paste keystroke does.
type OSFocus struct{}

func (OSFocus) Frontmost() (string, error) {
	out, err := osascript(frontmostScript)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (OSFocus) Activate(bundleID string) error {
	if strings.ContainsAny(bundleID, "\"\\") {
		return fmt.Errorf("invalid bundle id %q", bundleID)
	}
	_, err := osascript(fmt.Sprintf("tell application id %q to activate", bundleID))
	return err
}

func osascript(script string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), osascriptTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("osascript: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("osascript: %w", err)
	}
	return string(out), nil
}
