// Package preflight verifies, before the daemon starts listening, that
// everything a dictation needs is present and permitted.
package preflight

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"sayit/apperr"
	"sayit/audio"
	"sayit/hotkey"
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type Check struct {
	Name string
	Run  func() (string, error)
	// Advisory failures are reported but do not stop the run.
	Advisory bool
}

type Result struct {
	Name   string
	Detail string
	Err    error
}

// Options are the collaborators the standard checks probe.
type Options struct {
	Hotkey string
	Device string
	Audio  audio.Context
	// Clipboard reads the clipboard once.
	Clipboard func() error
	// Paste prepares the synthetic paste keystroke.
	Paste func() (string, error)
}

// Standard returns the startup checks in the order they should run.
func Standard(o Options) []Check {
	return []Check{
		{Name: "hotkey", Run: func() (string, error) { return checkHotkey(o.Hotkey) }},
		{Name: "microphone", Run: func() (string, error) { return checkMicrophone(o.Audio, o.Device) }},
		// xclip and wl-paste exit non-zero on an empty selection, and
		// injection copes with an unreadable clipboard.
		{Name: "clipboard", Advisory: true, Run: func() (string, error) {
			if err := o.Clipboard(); err != nil {
				return "", fmt.Errorf("%w: reading clipboard (previous contents will not be restored): %w", apperr.ErrInjectionFailed, err)
			}
			return "readable", nil
		}},
		{Name: "paste", Run: func() (string, error) {
			detail, err := o.Paste()
			if err != nil {
				return "", fmt.Errorf("%w: %w", apperr.ErrPermissionDenied, err)
			}
			return detail, nil
		}},
	}
}

func checkHotkey(name string) (string, error) {
	if err := hotkey.Check(name); err != nil {
		return "", err
	}
	key, _ := hotkey.Parse(name)
	detail, err := hotkey.Diagnose(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s", name, detail), nil
}

func checkMicrophone(ctx audio.Context, name string) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("%w: audio backend unavailable", apperr.ErrDeviceUnavailable)
	}
	devices, err := ctx.Devices()
	if err != nil {
		return "", fmt.Errorf("%w: listing devices: %w", apperr.ErrDeviceUnavailable, err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%w: no capture devices found", apperr.ErrDeviceUnavailable)
	}
	dev, err := audio.FindDevice(ctx, name)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return fmt.Sprintf("system default (%d devices)", len(devices)), nil
	}
	if audio.IsBluetooth(dev.Name) {
		return dev.Name + " (bluetooth: lower audio quality)", nil
	}
	return dev.Name, nil
}

// Run executes checks in order and stops at the first failure that is not
// advisory. Progress goes to w when it is not nil. The returned error keeps the failing
// check's error kind.
func Run(checks []Check, w io.Writer) ([]Result, error) {
	if w == nil {
		w = io.Discard
	}
	var results []Result
	for i, c := range checks {
		detail, err := c.Run()
		results = append(results, Result{Name: c.Name, Detail: detail, Err: err})
		prefix := dimStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(checks)))
		switch {
		case err != nil && c.Advisory:
			fmt.Fprintf(w, "%s %s %s: %v\n", prefix, warnStyle.Render("WARN"), c.Name, err)
			continue
		case err != nil:
			fmt.Fprintf(w, "%s %s %s: %v\n", prefix, failStyle.Render("FAIL"), c.Name, err)
			return results, fmt.Errorf("preflight %s: %w", c.Name, err)
		}
		fmt.Fprintf(w, "%s %s %s: %s\n", prefix, passStyle.Render("PASS"), c.Name, detail)
	}
	return results, nil
}

// Hint suggests how to fix a failed preflight.
func Hint(err error) string {
	switch {
	case errors.Is(err, apperr.ErrConfigInvalid):
		return "choose a supported key with `sayit config` (hotkey = ...)"
	case errors.Is(err, apperr.ErrDeviceUnavailable):
		return "connect a microphone or set device = \"\" to use the system default; `sayit devices` lists names"
	case errors.Is(err, apperr.ErrPermissionDenied):
		return "grant Accessibility and Microphone access in System Settings > Privacy & Security"
	case errors.Is(err, apperr.ErrInjectionFailed):
		return "clipboard tools are missing (pbcopy/pbpaste, xclip or wl-clipboard)"
	}
	return ""
}
