package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sayit/apperr"
	"sayit/audio"
	"sayit/encoder"
	"sayit/hotkey"
	"sayit/indicator"
	"sayit/inject"
	"sayit/mainloop"
	"sayit/transcriber"
)

// testSurface applies indicator states on the same loop the orchestrator
// schedules on, like the real surfaces do.
type testSurface struct {
	loop *mainloop.Loop

	mu     sync.Mutex
	states []indicator.State
}

func (s *testSurface) Schedule(fn func()) { s.loop.Schedule(fn) }
func (s *testSurface) Run(func()) error  { return nil }
func (s *testSurface) Quit()             {}

func (s *testSurface) Apply(st indicator.State) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *testSurface) applied() []indicator.State {
	s.loop.Sync(func() {})
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]indicator.State(nil), s.states...)
}

type cueRecorder struct {
	mu   sync.Mutex
	cues []string
}

func (c *cueRecorder) add(s string) {
	c.mu.Lock()
	c.cues = append(c.cues, s)
	c.mu.Unlock()
}
func (c *cueRecorder) Start() { c.add("start") }
func (c *cueRecorder) Stop()  { c.add("stop") }
func (c *cueRecorder) Error() { c.add("error") }
func (c *cueRecorder) played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cues...)
}

type memClipboard struct {
	mu      sync.Mutex
	content string
	pasted  []string
	pasteFn func() error
}

func (c *memClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, nil
}

func (c *memClipboard) Write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = s
	return nil
}

func (c *memClipboard) Paste() error {
	if c.pasteFn != nil {
		if err := c.pasteFn(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pasted = append(c.pasted, c.content)
	return nil
}

func (c *memClipboard) snapshot() (string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, append([]string(nil), c.pasted...)
}

type harness struct {
	orch    *Orchestrator
	loop    *mainloop.Loop
	surface *testSurface
	capture *audio.FakeContext
	tr      *transcriber.FakeTranscriber
	clip    *memClipboard
	sounds  *cueRecorder
	ended   chan Session
}

type options struct {
	audio        time.Duration
	amplitude    int16
	text         string
	trErr        error
	trDelay      time.Duration
	captureErr   error
	pasteErr     error
	settings     Settings
	errorDisplay time.Duration
}

func defaultSettings() Settings {
	return Settings{
		Hotkey:      "f5",
		MinDuration: 300 * time.Millisecond,
		Timeout:     time.Second,
	}
}

func newHarness(t *testing.T, o options) *harness {
	t.Helper()
	if o.settings == (Settings{}) {
		o.settings = defaultSettings()
	}
	if o.errorDisplay == 0 {
		o.errorDisplay = 30 * time.Millisecond
	}
	if o.amplitude == 0 {
		o.amplitude = 3000
	}

	n := int(o.audio * encoder.SampleRate / time.Second)
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = o.amplitude
		} else {
			samples[i] = -o.amplitude
		}
	}

	h := &harness{
		loop:    mainloop.New(),
		capture: audio.NewFakeContextPCM(samples),
		tr:      transcriber.NewFake(o.text, o.trErr).WithDelay(o.trDelay),
		clip:    &memClipboard{content: "original"},
		sounds:  &cueRecorder{},
		ended:   make(chan Session, 8),
	}
	if o.captureErr != nil {
		h.capture.FailWith(o.captureErr)
	}
	if o.pasteErr != nil {
		h.clip.pasteFn = func() error { return o.pasteErr }
	}
	h.surface = &testSurface{loop: h.loop}

	h.orch = New(Deps{
		Scheduler:   h.loop,
		Recorder:    audio.NewRecorder(h.capture, nil),
		Transcriber: h.tr,
		Injector:    inject.New(h.clip, h.clip, nil, time.Millisecond),
		Indicator:   indicator.NewController(h.surface, o.errorDisplay),
		Sounds:      h.sounds,
	}, o.settings)
	h.orch.OnSessionEnd(func(s Session) { h.ended <- s })

	go h.loop.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.orch.Shutdown(ctx)
		h.loop.Quit()
	})
	return h
}

func (h *harness) waitEnd(t *testing.T) Session {
	t.Helper()
	select {
	case s := <-h.ended:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session end")
		return Session{}
	}
}

func (h *harness) expectNoEnd(t *testing.T) {
	t.Helper()
	select {
	case s := <-h.ended:
		t.Fatalf("unexpected session end: %v", s.Outcome)
	case <-time.After(30 * time.Millisecond):
	}
}

func (h *harness) state() State {
	var st State
	h.loop.Sync(func() { st = h.orch.state })
	return st
}

func (h *harness) waitStates(t *testing.T, want ...indicator.State) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		got := h.surface.applied()
		if assert.ObjectsAreEqual(want, got) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("indicator states = %v, want %v", got, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSuccessfulSession(t *testing.T) {
	h := newHarness(t, options{audio: 2 * time.Second, text: "hello world"})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	require.Equal(t, Succeeded, s.Outcome, "err: %v", s.Err)
	assert.Equal(t, "hello world", s.Text)
	assert.Equal(t, 2*time.Second, s.Audio)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.End.Before(s.Start))

	content, pasted := h.clip.snapshot()
	assert.Equal(t, []string{"hello world"}, pasted)
	assert.Equal(t, "original", content)

	h.waitStates(t, indicator.Recording, indicator.Processing, indicator.Hidden)
	assert.Equal(t, []string{"start", "stop"}, h.sounds.played())
	assert.Equal(t, Idle, h.state())
	assert.Equal(t, 1, h.orch.Sessions())
}

func TestTooShortSkipsTranscription(t *testing.T) {
	h := newHarness(t, options{audio: 100 * time.Millisecond, text: "unused"})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	assert.Equal(t, TooShort, s.Outcome)
	assert.Zero(t, h.tr.Calls())
	assert.Equal(t, []string{"start"}, h.sounds.played())
	h.waitStates(t, indicator.Recording, indicator.Hidden)
}

func TestNoiseFloorDiscards(t *testing.T) {
	settings := defaultSettings()
	settings.NoiseFloor = 0.05
	h := newHarness(t, options{audio: time.Second, amplitude: 100, settings: settings})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	assert.Equal(t, NoiseFloorOnly, s.Outcome)
	assert.Zero(t, h.tr.Calls())
	h.waitStates(t, indicator.Recording, indicator.Hidden)
}

func TestTranscriptionFailureShowsError(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, trErr: errors.New("model crashed")})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	assert.Equal(t, TranscriptionFailed, s.Outcome)
	assert.ErrorIs(t, s.Err, apperr.ErrInference)

	content, pasted := h.clip.snapshot()
	assert.Empty(t, pasted)
	assert.Equal(t, "original", content)
	assert.Equal(t, []string{"start", "stop", "error"}, h.sounds.played())
	h.waitStates(t, indicator.Recording, indicator.Processing, indicator.Error, indicator.Hidden)
}

func TestTranscriptionTimeout(t *testing.T) {
	settings := defaultSettings()
	settings.Timeout = 50 * time.Millisecond
	h := newHarness(t, options{audio: time.Second, text: "late", trDelay: 5 * time.Second, settings: settings})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	assert.Equal(t, TranscriptionFailed, s.Outcome)
	assert.ErrorIs(t, s.Err, apperr.ErrInference)
	assert.ErrorIs(t, s.Err, context.DeadlineExceeded)
	assert.Less(t, s.End.Sub(s.Start), time.Second)
}

func TestEmptyTranscriptIsNoSpeech(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, text: "  \n"})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	assert.Equal(t, NoSpeech, s.Outcome)
	_, pasted := h.clip.snapshot()
	assert.Empty(t, pasted)
	h.waitStates(t, indicator.Recording, indicator.Processing, indicator.Hidden)
}

func TestInjectionFailureRestoresClipboard(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, text: "hello", pasteErr: errors.New("not trusted")})

	h.orch.Press()
	h.orch.Release()
	s := h.waitEnd(t)

	assert.Equal(t, InjectionFailed, s.Outcome)
	assert.ErrorIs(t, s.Err, apperr.ErrInjectionFailed)
	content, _ := h.clip.snapshot()
	assert.Equal(t, "original", content)
	h.waitStates(t, indicator.Recording, indicator.Processing, indicator.Error, indicator.Hidden)
}

func TestCaptureFailure(t *testing.T) {
	h := newHarness(t, options{captureErr: errors.New("no such device")})

	h.orch.Press()
	s := h.waitEnd(t)

	assert.Equal(t, CaptureFailed, s.Outcome)
	assert.ErrorIs(t, s.Err, apperr.ErrDeviceUnavailable)
	assert.Equal(t, Idle, h.state())
	h.waitStates(t, indicator.Error, indicator.Hidden)

	// release of the failed press is a stray edge
	h.orch.Release()
	h.expectNoEnd(t)
}

func TestPressWhileActiveIgnored(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, text: "one", trDelay: 50 * time.Millisecond})

	h.orch.Release() // stray, nothing recording
	h.orch.Press()
	h.orch.Press()
	assert.Equal(t, Recording, h.state())
	assert.Equal(t, 1, h.capture.Opened())

	h.orch.Release()
	h.orch.Press() // while transcribing
	h.orch.Release()
	s := h.waitEnd(t)
	assert.Equal(t, Succeeded, s.Outcome)
	h.expectNoEnd(t)

	assert.Equal(t, 1, h.capture.Opened())
	assert.Equal(t, 1, h.tr.Calls())
}

// TestInterleavedEdges drives random press/release bursts that land while
// sessions are recording, transcribing and injecting.
func TestInterleavedEdges(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, text: "hi", trDelay: 8 * time.Millisecond})
	rng := rand.New(rand.NewPCG(7, 42))

	ended := 0
	for round := range 25 {
		for range 1 + rng.IntN(8) {
			if rng.IntN(2) == 0 {
				h.orch.Press()
			} else {
				h.orch.Release()
			}
			if rng.IntN(3) == 0 {
				time.Sleep(time.Duration(rng.IntN(12)) * time.Millisecond)
			}
		}
		// a held key would keep recording forever
		h.orch.Release()

		deadline := time.After(2 * time.Second)
		for h.state() != Idle {
			select {
			case <-deadline:
				t.Fatalf("round %d: stuck in %v", round, h.state())
			case <-time.After(2 * time.Millisecond):
			}
		}
	drain:
		for {
			select {
			case s := <-h.ended:
				require.Equal(t, Succeeded, s.Outcome, "round %d: %v", round, s.Err)
				ended++
			default:
				break drain
			}
		}

		// one capture per finished session means no two were ever open
		require.Equal(t, ended, h.capture.Opened(), "round %d", round)
		require.Equal(t, ended, h.tr.Calls(), "round %d", round)
		assert.Equal(t, Idle, h.state())
	}

	content, pasted := h.clip.snapshot()
	assert.Equal(t, "original", content)
	assert.Len(t, pasted, ended)
	assert.Equal(t, ended, h.orch.Sessions())
}

func TestSettingsPassedToTranscriber(t *testing.T) {
	settings := defaultSettings()
	settings.Language = "de"
	h := newHarness(t, options{audio: time.Second, text: "hallo", settings: settings})

	h.orch.Press()
	h.orch.Release()
	h.waitEnd(t)

	lang, n := h.tr.Last()
	assert.Equal(t, "de", lang)
	assert.Equal(t, encoder.SampleRate, n)
}

func TestListenDrivesSessions(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, text: "via hotkey"})
	fk := hotkey.NewFake()
	require.NoError(t, h.orch.Listen(fk))

	fk.SimKeydown()
	fk.SimKeyup()
	s := h.waitEnd(t)
	assert.Equal(t, Succeeded, s.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.orch.Shutdown(ctx))
	assert.False(t, fk.Registered())
}

func TestListenRegisterError(t *testing.T) {
	h := newHarness(t, options{})
	err := h.orch.Listen(hotkey.NewFake().FailRegister(apperr.ErrPermissionDenied))
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestShutdownDuringRecording(t *testing.T) {
	h := newHarness(t, options{audio: time.Second, text: "unused"})

	h.orch.Press()
	require.Equal(t, Recording, h.state())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.orch.Shutdown(ctx))

	s := h.waitEnd(t)
	assert.Equal(t, CaptureFailed, s.Outcome)
	assert.Zero(t, h.tr.Calls())

	h.orch.Press()
	assert.Equal(t, Idle, h.state())
	h.expectNoEnd(t)
}

func TestShutdownCancelsTranscription(t *testing.T) {
	settings := defaultSettings()
	settings.Timeout = time.Minute
	h := newHarness(t, options{audio: time.Second, text: "late", trDelay: time.Minute, settings: settings})

	h.orch.Press()
	h.orch.Release()
	require.Eventually(t, func() bool { return h.tr.Calls() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, h.orch.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)

	s := h.waitEnd(t)
	assert.Equal(t, TranscriptionFailed, s.Outcome)
	assert.ErrorIs(t, s.Err, context.Canceled)
	_, pasted := h.clip.snapshot()
	assert.Empty(t, pasted)
}

func TestOutcomeStrings(t *testing.T) {
	for o, want := range map[Outcome]string{
		Succeeded:           "succeeded",
		TooShort:            "too_short",
		NoiseFloorOnly:      "noise_floor_only",
		NoSpeech:            "no_speech",
		CaptureFailed:       "capture_failed",
		TranscriptionFailed: "transcription_failed",
		InjectionFailed:     "injection_failed",
		Outcome(99):         "unknown",
	} {
		assert.Equal(t, want, o.String())
	}
	assert.Equal(t, "transcribing", Transcribing.String())
}
