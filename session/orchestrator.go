package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sayit/apperr"
	"sayit/audio"
	"sayit/hotkey"
	"sayit/indicator"
	"sayit/inject"
	"sayit/log"
	"sayit/transcriber"
)

// Scheduler runs callbacks one at a time on the thread that owns the
// indicator. Schedule must not block.
type Scheduler interface {
	Schedule(fn func())
}

type Recorder interface {
	Start() error
	Stop() (audio.Recording, error)
}

type Indicator interface {
	Request(s indicator.State)
}

type Sounds interface {
	Start()
	Stop()
	Error()
}

type Injector interface {
	Frontmost() string
	Inject(ctx context.Context, req inject.Request) error
}

type Deps struct {
	Scheduler   Scheduler
	Recorder    Recorder
	Transcriber transcriber.Transcriber
	Injector    Injector
	Indicator   Indicator
	Sounds      Sounds
}

// Orchestrator serializes every state change through the Scheduler, so
// the fields below the marker are only touched from scheduled callbacks.
// Capture, transcription and injection run on worker goroutines and
// report back the same way.
type Orchestrator struct {
	Deps
	settings Settings
	now      func() time.Time

	ctx    context.Context // cancelled by Shutdown
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ended  atomic.Int64

	listenMu sync.Mutex
	listener *hotkey.Debounced

	// scheduler thread only
	state   State
	cur     *Session
	closing bool
	onEnd   []func(Session)
}

func New(deps Deps, settings Settings) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		Deps:     deps,
		settings: settings,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnSessionEnd registers fn to run on the scheduler thread after every
// session. Register before Listen.
func (o *Orchestrator) OnSessionEnd(fn func(Session)) {
	o.onEnd = append(o.onEnd, fn)
}

// Sessions counts finished sessions.
func (o *Orchestrator) Sessions() int {
	return int(o.ended.Load())
}

// Press and Release are safe from any goroutine and never block.
func (o *Orchestrator) Press()   { o.Scheduler.Schedule(o.press) }
func (o *Orchestrator) Release() { o.Scheduler.Schedule(o.release) }

// Listen registers hk and feeds its edges into the state machine from a
// dedicated OS thread until Shutdown.
func (o *Orchestrator) Listen(hk hotkey.Hotkey) error {
	d := hotkey.Debounce(hk)
	if err := d.Register(); err != nil {
		return fmt.Errorf("registering hotkey: %w", err)
	}
	o.listenMu.Lock()
	o.listener = d
	o.listenMu.Unlock()

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		for {
			select {
			case e := <-d.Edges():
				if e == hotkey.Press {
					o.Press()
				} else {
					o.Release()
				}
			case <-o.ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (o *Orchestrator) press() {
	if o.closing {
		return
	}
	if o.state != Idle {
		log.Debug("press ignored while " + o.state.String())
		return
	}

	s := &Session{ID: uuid.NewString(), Start: o.now(), settings: o.settings}
	log.SessionStart(s.ID, s.settings.Hotkey)

	if err := o.Recorder.Start(); err != nil {
		o.Indicator.Request(indicator.Error)
		o.Sounds.Error()
		o.finish(s, CaptureFailed, err)
		return
	}
	o.state = Recording
	o.cur = s
	o.Indicator.Request(indicator.Recording)
	o.Sounds.Start()

	// osascript takes tens of milliseconds; keep it off this thread.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		target := o.Injector.Frontmost()
		o.Scheduler.Schedule(func() { s.target = target })
	}()
}

func (o *Orchestrator) release() {
	if o.state != Recording {
		log.Debug("release ignored while " + o.state.String())
		return
	}
	s := o.cur

	rec, err := o.Recorder.Stop()
	s.Audio = rec.Duration()
	if err != nil {
		o.Indicator.Request(indicator.Error)
		o.Sounds.Error()
		o.toIdle(s, CaptureFailed, err)
		return
	}
	if s.Audio < s.settings.MinDuration {
		o.Indicator.Request(indicator.Hidden)
		o.toIdle(s, TooShort, nil)
		return
	}
	if s.settings.NoiseFloor > 0 && rec.RMS() < s.settings.NoiseFloor {
		o.Indicator.Request(indicator.Hidden)
		o.toIdle(s, NoiseFloorOnly, nil)
		return
	}

	o.Sounds.Stop()
	o.Indicator.Request(indicator.Processing)
	o.state = Transcribing

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		text, err := o.transcribe(s, rec)
		o.Scheduler.Schedule(func() { o.transcribed(s, text, err) })
	}()
}

// transcribe bounds the call by the configured timeout even if the
// engine ignores its context.
func (o *Orchestrator) transcribe(s *Session, rec audio.Recording) (string, error) {
	ctx, cancel := context.WithTimeout(o.ctx, s.settings.Timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := o.Transcriber.Transcribe(ctx, rec.Samples, rec.SampleRate, s.settings.Language)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, apperr.ErrModelUnavailable) && !errors.Is(r.err, apperr.ErrInference) {
			r.err = fmt.Errorf("%w: %w", apperr.ErrInference, r.err)
		}
		return r.text, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: no result after %v: %w", apperr.ErrInference, s.settings.Timeout, ctx.Err())
		}
		return "", fmt.Errorf("%w: %w", apperr.ErrInference, ctx.Err())
	}
}

func (o *Orchestrator) transcribed(s *Session, text string, err error) {
	if o.state != Transcribing || o.cur != s {
		return
	}
	if err != nil {
		if !o.closing {
			o.Indicator.Request(indicator.Error)
			o.Sounds.Error()
		}
		o.toIdle(s, TranscriptionFailed, err)
		return
	}
	if o.closing {
		o.toIdle(s, TranscriptionFailed, fmt.Errorf("%w: shutting down", apperr.ErrInference))
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		o.Indicator.Request(indicator.Hidden)
		o.toIdle(s, NoSpeech, nil)
		return
	}

	s.Text = text
	log.TranscriptionText(text)
	o.state = Injecting
	req := inject.Request{Text: text, Target: s.target}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// Not tied to o.ctx: a started injection always runs to its
		// clipboard restore.
		err := o.Injector.Inject(context.Background(), req)
		o.Scheduler.Schedule(func() { o.injected(s, err) })
	}()
}

func (o *Orchestrator) injected(s *Session, err error) {
	if o.state != Injecting || o.cur != s {
		return
	}
	if err != nil {
		o.Indicator.Request(indicator.Error)
		o.Sounds.Error()
		o.toIdle(s, InjectionFailed, err)
		return
	}
	o.Indicator.Request(indicator.Hidden)
	o.toIdle(s, Succeeded, nil)
}

func (o *Orchestrator) toIdle(s *Session, outcome Outcome, err error) {
	o.state = Idle
	o.cur = nil
	o.finish(s, outcome, err)
}

func (o *Orchestrator) finish(s *Session, outcome Outcome, err error) {
	s.End = o.now()
	s.Outcome = outcome
	s.Err = err
	o.ended.Add(1)

	log.SessionEnd(log.SessionSummary{
		ID:        s.ID,
		Outcome:   outcome.String(),
		AudioS:    s.Audio.Seconds(),
		ElapsedMs: float64(s.End.Sub(s.Start).Microseconds()) / 1000,
		ErrKind:   apperr.Kind(err),
		Err:       err,
	})
	for _, fn := range o.onEnd {
		fn(*s)
	}
}

// Shutdown stops listening, abandons a recording in progress, cancels an
// in-flight transcription and waits for a running injection to restore
// the clipboard. It returns ctx.Err() if that takes too long.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.listenMu.Lock()
	if o.listener != nil {
		o.listener.Unregister()
	}
	o.listenMu.Unlock()
	o.cancel()

	closed := make(chan struct{})
	o.Scheduler.Schedule(func() {
		defer close(closed)
		if o.closing {
			return
		}
		o.closing = true
		if o.state == Recording {
			s := o.cur
			rec, err := o.Recorder.Stop()
			s.Audio = rec.Duration()
			if err == nil {
				err = errors.New("shutdown during recording")
			}
			o.toIdle(s, CaptureFailed, err)
		}
		o.Indicator.Request(indicator.Hidden)
	})

	select {
	case <-closed:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
