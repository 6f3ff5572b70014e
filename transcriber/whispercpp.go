package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sayit/apperr"
	"sayit/encoder"
)

const whisperDefaultBin = "whisper-cli"

// WhisperCPP runs a local whisper.cpp binary against a ggml model file.
type WhisperCPP struct {
	bin   string
	model string
}

// NewWhisperCPP resolves bin on PATH and checks the model file exists.
// Either missing is apperr.ErrModelUnavailable.
func NewWhisperCPP(bin, model string) (*WhisperCPP, error) {
	if bin == "" {
		bin = whisperDefaultBin
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper.cpp binary %q: %w", apperr.ErrModelUnavailable, bin, err)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: whisper-cpp needs a model path", apperr.ErrModelUnavailable)
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrModelUnavailable, err)
	}
	return &WhisperCPP{bin: path, model: model}, nil
}

func (w *WhisperCPP) Name() string { return "whisper-cpp" }

func (w *WhisperCPP) Transcribe(ctx context.Context, samples []int16, sampleRate int, lang string) (string, error) {
	dir, err := os.MkdirTemp("", "sayit-whisper-")
	if err != nil {
		return "", inferenceError(w.Name(), err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "audio.wav")
	if sampleRate == 0 {
		sampleRate = encoder.SampleRate
	}
	if err := os.WriteFile(wav, encoder.WAV(samples, sampleRate), 0o600); err != nil {
		return "", inferenceError(w.Name(), err)
	}

	if lang == "" {
		lang = "auto"
	}
	cmd := exec.CommandContext(ctx, w.bin, "-m", w.model, "-f", wav, "-l", lang, "-nt", "-np")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", inferenceError(w.Name(), ctx.Err())
		}
		return "", inferenceError(w.Name(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return cleanWhisperOutput(stdout.String()), nil
}

// cleanWhisperOutput joins the transcript lines and drops the bracketed
// markers whisper emits for non-speech, e.g. [BLANK_AUDIO].
func cleanWhisperOutput(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")) {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
