package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sayit/apperr"
)

// FakeTranscriber returns canned text after an optional delay. It
// respects ctx so timeouts can be exercised.
type FakeTranscriber struct {
	text  string
	err   error
	delay time.Duration

	mu       sync.Mutex
	calls    int
	lastLang string
	lastLen  int
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

// WithDelay makes every call take d.
func (f *FakeTranscriber) WithDelay(d time.Duration) *FakeTranscriber {
	f.delay = d
	return f
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(ctx context.Context, samples []int16, _ int, lang string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastLang = lang
	f.lastLen = len(samples)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", inferenceError(f.Name(), ctx.Err())
		}
	}
	if f.err != nil {
		return "", fmt.Errorf("%w: fake: %w", apperr.ErrInference, f.err)
	}
	return f.text, nil
}

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Last reports the language hint and sample count of the latest call.
func (f *FakeTranscriber) Last() (lang string, samples int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLang, f.lastLen
}
