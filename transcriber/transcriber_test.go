package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sayit/apperr"
	"sayit/encoder"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	if got, want := m.Sum(), 195*time.Millisecond; got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestTracedClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewTracedClient(srv.URL)
	c.Warm(context.Background())

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, "yes", resp.Header.Get("X-Test"))
	assert.True(t, resp.Metrics.ConnReused, "warm connection should be reused")
	assert.Positive(t, resp.Metrics.Total)
}

func TestTracedClientRejectsHugeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, maxResponseBytes+10))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = NewTracedClient("").Do(req)
	assert.ErrorContains(t, err, "larger than")
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New("dragon", Options{})
	require.ErrorIs(t, err, apperr.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "groq")
}

func TestNewMissingKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	_, err := New("groq", Options{})
	assert.ErrorIs(t, err, apperr.ErrModelUnavailable)
}

func TestEnginesSorted(t *testing.T) {
	assert.Equal(t, []string{"groq", "openai", "whisper-cpp"}, Engines())
}

func TestEncodeFormat(t *testing.T) {
	samples := make([]int16, 1600)

	_, ext, err := encode(samples, encoder.SampleRate)
	require.NoError(t, err)
	assert.Equal(t, "flac", ext)

	data, ext, err := encode(samples, 44100)
	require.NoError(t, err)
	assert.Equal(t, "wav", ext)
	assert.Equal(t, "RIFF", string(data[:4]))
}

type capturedRequest struct {
	auth     string
	model    string
	format   string
	language string
	fileName string
	fileLen  int
}

func apiServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			got.model = r.FormValue("model")
			got.format = r.FormValue("response_format")
			got.language = r.FormValue("language")
			if f, hdr, err := r.FormFile("file"); err == nil {
				b, _ := io.ReadAll(f)
				got.fileName = hdr.Filename
				got.fileLen = len(b)
			}
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func testGroq(url string) *Groq {
	return &Groq{httpEngine: newHTTPEngine("groq", url, "test-key", groqDefaultModel, "verbose_json")}
}

func testOpenAI(url string) *OpenAI {
	return &OpenAI{httpEngine: newHTTPEngine("openai", url, "test-key", openAIDefaultModel, "json")}
}

func TestGroqTranscribe(t *testing.T) {
	srv, got := apiServer(t, 200, `{"text":" hello world ","segments":[{"text":"hello world","no_speech_prob":0.01}]}`)

	text, err := testGroq(srv.URL).Transcribe(context.Background(), make([]int16, 16000), encoder.SampleRate, "en")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "Bearer test-key", got.auth)
	assert.Equal(t, groqDefaultModel, got.model)
	assert.Equal(t, "verbose_json", got.format)
	assert.Equal(t, "en", got.language)
	assert.Equal(t, "audio.flac", got.fileName)
	assert.NotZero(t, got.fileLen)
}

func TestGroqNoSpeechSegments(t *testing.T) {
	srv, _ := apiServer(t, 200, `{"text":"Thank you.","segments":[{"text":"Thank you.","no_speech_prob":0.93}]}`)

	text, err := testGroq(srv.URL).Transcribe(context.Background(), make([]int16, 1600), encoder.SampleRate, "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAutoLanguageOmitted(t *testing.T) {
	srv, got := apiServer(t, 200, `{"text":"hi"}`)

	_, err := testOpenAI(srv.URL).Transcribe(context.Background(), make([]int16, 1600), encoder.SampleRate, "")
	require.NoError(t, err)
	assert.Empty(t, got.language)
	assert.Equal(t, openAIDefaultModel, got.model)
}

func TestHTTPErrorMapping(t *testing.T) {
	for _, tt := range []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, apperr.ErrModelUnavailable},
		{http.StatusNotFound, apperr.ErrModelUnavailable},
		{http.StatusTooManyRequests, apperr.ErrInference},
		{http.StatusInternalServerError, apperr.ErrInference},
	} {
		srv, _ := apiServer(t, tt.status, `{"error":"nope"}`)
		_, err := testOpenAI(srv.URL).Transcribe(context.Background(), make([]int16, 160), encoder.SampleRate, "")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}

func TestMalformedResponse(t *testing.T) {
	srv, _ := apiServer(t, 200, `not json`)
	_, err := testGroq(srv.URL).Transcribe(context.Background(), make([]int16, 160), encoder.SampleRate, "")
	assert.ErrorIs(t, err, apperr.ErrInference)
}

func TestTranscribeHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := testGroq(srv.URL).Transcribe(ctx, make([]int16, 160), encoder.SampleRate, "")
	require.ErrorIs(t, err, apperr.ErrInference)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFake(t *testing.T) {
	f := NewFake("hello", nil)
	text, err := f.Transcribe(context.Background(), make([]int16, 10), encoder.SampleRate, "de")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, f.Calls())
	lang, n := f.Last()
	assert.Equal(t, "de", lang)
	assert.Equal(t, 10, n)

	_, err = NewFake("", errors.New("boom")).Transcribe(context.Background(), nil, 0, "")
	assert.ErrorIs(t, err, apperr.ErrInference)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = NewFake("late", nil).WithDelay(time.Second).Transcribe(ctx, nil, 0, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWhisperCPPMissing(t *testing.T) {
	_, err := NewWhisperCPP("definitely-not-a-whisper-binary", "model.bin")
	assert.ErrorIs(t, err, apperr.ErrModelUnavailable)
}

func TestWhisperCPPRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script")
	}
	dir := t.TempDir()
	model := filepath.Join(dir, "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(model, []byte("x"), 0o600))

	_, err := NewWhisperCPP(filepath.Join(dir, "absent"), model)
	require.ErrorIs(t, err, apperr.ErrModelUnavailable)

	bin := filepath.Join(dir, "whisper")
	script := "#!/bin/sh\nprintf ' hello there\\n[BLANK_AUDIO]\\n general kenobi\\n'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	w, err := NewWhisperCPP(bin, model)
	require.NoError(t, err)
	text, err := w.Transcribe(context.Background(), make([]int16, 1600), encoder.SampleRate, "")
	require.NoError(t, err)
	assert.Equal(t, "hello there general kenobi", text)

	fail := filepath.Join(dir, "whisper-fail")
	require.NoError(t, os.WriteFile(fail, []byte("#!/bin/sh\necho bad model >&2\nexit 1\n"), 0o755))
	w, err = NewWhisperCPP(fail, model)
	require.NoError(t, err)
	_, err = w.Transcribe(context.Background(), nil, encoder.SampleRate, "en")
	assert.ErrorIs(t, err, apperr.ErrInference)
}

func TestCleanWhisperOutput(t *testing.T) {
	assert.Equal(t, "", cleanWhisperOutput("[BLANK_AUDIO]\n"))
	assert.Equal(t, "a b", cleanWhisperOutput("a\n\n b \n"))
}
