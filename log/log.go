package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	diagName       = "diagnostics_log.txt"
	transcribeName = "transcribe_log.txt"

	maxSizeMB  = 1
	maxBackups = 5
)

var (
	diagLog        zerolog.Logger
	diagRotator    *lumberjack.Logger
	transcribeFile *os.File
	mirror         io.Writer
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: SAYIT_LOG_PATH environment variable
	if envPath := os.Getenv("SAYIT_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// Mirror copies every diagnostic line to w as well, e.g. stderr when
// running in the foreground. Must be called before Init.
func Mirror(w io.Writer) {
	mirror = w
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	diagRotator = &lumberjack.Logger{
		Filename:   filepath.Join(dir, diagName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}

	var err error
	transcribePath := filepath.Join(dir, transcribeName)
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagRotator = nil
		return err
	}

	var out io.Writer = diagRotator
	if mirror != nil {
		out = io.MultiWriter(diagRotator, mirror)
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	// lumberjack creates the file lazily on first write
	diagLog.Debug().Msg("log_open")

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagRotator != nil {
		diagRotator.Close()
		diagRotator = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Debug(msg string) {
	if logReady {
		diagLog.Debug().Msg(msg)
	}
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

type Metrics struct {
	Engine      string
	AudioS      float64
	UploadKB    float64
	EncodeMs    float64
	DNSMs       float64
	TLSMs       float64
	TTFBMs      float64
	TotalMs     float64
	ConnReused  bool
	TLSProtocol string
}

func TranscriptionMetrics(m Metrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("engine", m.Engine).
		Str("conn", connStatus)
	if m.TLSProtocol != "" {
		ev = ev.Str("tls_proto", m.TLSProtocol)
	}
	ev.Float64("audio_s", m.AudioS).
		Float64("upload_kb", m.UploadKB).
		Float64("encode_ms", m.EncodeMs).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("transcription")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

// DaemonStart records a daemon that is listening. surface names the
// indicator in use; "headless" means no on-screen indicator.
func DaemonStart(hotkey, engine, surface string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("hotkey", hotkey).
		Str("engine", engine).
		Str("indicator", surface).
		Msg("daemon_start")
}

func DaemonStop(sessions int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("sessions", sessions).
		Msg("daemon_stop")
}

func SessionStart(id, hotkey string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("hotkey", hotkey).
		Msg("session_start")
}

type SessionSummary struct {
	ID        string
	Outcome   string
	AudioS    float64
	ElapsedMs float64
	ErrKind   string
	Err       error
}

func SessionEnd(s SessionSummary) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if s.Err != nil {
		ev = diagLog.Error().Str("kind", s.ErrKind).Err(s.Err)
	}
	ev.Str("session", s.ID).
		Str("outcome", s.Outcome).
		Float64("audio_s", s.AudioS).
		Float64("elapsed_ms", s.ElapsedMs).
		Msg("session_end")
}
