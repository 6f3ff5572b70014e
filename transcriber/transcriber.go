// Package transcriber is the speech-to-text port: recorded samples in,
// text out. Engines are chosen by name from a dispatch table.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"sayit/apperr"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Transcriber may take seconds; callers run it off the GUI and hotkey
// threads and bound it with ctx. Failures wrap apperr.ErrModelUnavailable
// or apperr.ErrInference.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, samples []int16, sampleRate int, lang string) (string, error)
}

type Options struct {
	Model string
}

type factory func(Options) (Transcriber, error)

var engines = map[string]factory{
	"groq": func(o Options) (Transcriber, error) {
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: set GROQ_API_KEY", apperr.ErrModelUnavailable)
		}
		return NewGroq(key, o.Model), nil
	},
	"openai": func(o Options) (Transcriber, error) {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY", apperr.ErrModelUnavailable)
		}
		return NewOpenAI(key, o.Model), nil
	},
	"whisper-cpp": func(o Options) (Transcriber, error) {
		return NewWhisperCPP(os.Getenv("SAYIT_WHISPER_BIN"), o.Model)
	},
}

// Engines lists the names New accepts.
func Engines() []string {
	names := lo.Keys(engines)
	slices.Sort(names)
	return names
}

func New(name string, opts Options) (Transcriber, error) {
	f, ok := engines[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown engine %q (available: %s)",
			apperr.ErrConfigInvalid, name, strings.Join(Engines(), ", "))
	}
	return f(opts)
}

func inferenceError(engine string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrInference, engine, err)
}
