// Package inject places text at the cursor of the focused application by
// way of the clipboard and a synthetic paste.
package inject

import (
	"context"
	"fmt"
	"time"

	"sayit/apperr"
	"sayit/log"
)

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type Paster interface {
	Paste() error
}

// Focus remembers and restores the frontmost application. Targets are
// opaque identifiers (bundle IDs on macOS).
type Focus interface {
	Frontmost() (string, error)
	Activate(target string) error
}

type Request struct {
	Text string
	// Target is re-activated before pasting when set, so text lands where
	// the user was typing when they pressed the hotkey.
	Target string
}

type Injector struct {
	clip   Clipboard
	paster Paster
	focus  Focus
	settle time.Duration
}

// New returns an injector that waits settle after the paste keystroke
// before putting the previous clipboard back.
func New(clip Clipboard, paster Paster, focus Focus, settle time.Duration) *Injector {
	if focus == nil {
		focus = NoFocus{}
	}
	return &Injector{clip: clip, paster: paster, focus: focus, settle: settle}
}

// Frontmost is best effort; "" means focus will not be restored.
func (i *Injector) Frontmost() string {
	target, err := i.focus.Frontmost()
	if err != nil {
		log.Debug("frontmost app unavailable: " + err.Error())
		return ""
	}
	return target
}

// Inject pastes req.Text. The clipboard contents from before the call are
// restored exactly once on every path; an unreadable clipboard counts as
// empty. Failures wrap apperr.ErrInjectionFailed.
func (i *Injector) Inject(ctx context.Context, req Request) (err error) {
	if req.Text == "" {
		return nil
	}

	// xclip and wl-paste fail on an empty selection
	prev, rerr := i.clip.Read()
	if rerr != nil {
		log.Warnf("clipboard snapshot unavailable, restoring empty: %v", rerr)
		prev = ""
	}
	defer func() {
		if rerr := i.clip.Write(prev); rerr != nil {
			log.Warnf("clipboard restore failed: %v", rerr)
			if err == nil {
				err = fmt.Errorf("%w: restoring clipboard: %w", apperr.ErrInjectionFailed, rerr)
			}
		}
	}()

	if err := i.clip.Write(req.Text); err != nil {
		return fmt.Errorf("%w: writing clipboard: %w", apperr.ErrInjectionFailed, err)
	}

	if req.Target != "" {
		if err := i.focus.Activate(req.Target); err != nil {
			log.Warnf("restoring focus to %s: %v", req.Target, err)
		}
	}

	if err := i.paster.Paste(); err != nil {
		return fmt.Errorf("%w: paste keystroke: %w", apperr.ErrInjectionFailed, err)
	}

	// The target app reads the clipboard asynchronously after the
	// keystroke; restoring too early pastes the old contents.
	t := time.NewTimer(i.settle)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperr.ErrInjectionFailed, ctx.Err())
	}
	return nil
}

// NoFocus never changes focus.
type NoFocus struct{}

func (NoFocus) Frontmost() (string, error) { return "", nil }
func (NoFocus) Activate(string) error      { return nil }
