// Package config loads the user settings snapshot read once at daemon start.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"sayit/apperr"
	"sayit/hotkey"
)

const (
	fileName = "config.toml"
	pidName  = "sayit.pid"
	envName  = "env"
)

// Duration is a time.Duration written as "250ms" / "30s" in the config file.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

type Config struct {
	Hotkey               string   `toml:"hotkey"`
	Language             string   `toml:"language"`
	SoundsEnabled        bool     `toml:"sounds_enabled"`
	MinRecordingDuration float64  `toml:"min_recording_duration"`
	NoiseFloor           float64  `toml:"noise_floor"`
	TranscribeTimeout    Duration `toml:"transcribe_timeout"`
	ErrorDisplay         Duration `toml:"error_display"`
	PasteSettle          Duration `toml:"paste_settle"`
	Engine               string   `toml:"engine"`
	Model                string   `toml:"model"`
	Device               string   `toml:"device"`
}

func Default() Config {
	return Config{
		Hotkey:               hotkey.DefaultKey,
		Language:             "auto",
		SoundsEnabled:        true,
		MinRecordingDuration: 0.3,
		TranscribeTimeout:    Duration(30 * time.Second),
		ErrorDisplay:         Duration(2 * time.Second),
		PasteSettle:          Duration(250 * time.Millisecond),
		Engine:               "groq",
	}
}

// MinRecording is MinRecordingDuration as a time.Duration.
func (c Config) MinRecording() time.Duration {
	return time.Duration(c.MinRecordingDuration * float64(time.Second))
}

// LanguageHint is the hint handed to the transcription engine; "auto" means none.
func (c Config) LanguageHint() string {
	if strings.EqualFold(c.Language, "auto") {
		return ""
	}
	return c.Language
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Hotkey) == "" {
		errs = append(errs, errors.New("hotkey is empty"))
	} else if err := hotkey.Check(c.Hotkey); err != nil {
		// already carries ErrConfigInvalid
		errs = append(errs, errors.New(strings.TrimPrefix(err.Error(), apperr.ErrConfigInvalid.Error()+": ")))
	}
	if strings.TrimSpace(c.Language) == "" {
		errs = append(errs, errors.New("language is empty (use \"auto\")"))
	}
	if c.MinRecordingDuration < 0 {
		errs = append(errs, fmt.Errorf("min_recording_duration %v is negative", c.MinRecordingDuration))
	}
	if c.NoiseFloor < 0 || c.NoiseFloor > 1 {
		errs = append(errs, fmt.Errorf("noise_floor %v out of range [0, 1]", c.NoiseFloor))
	}
	if c.TranscribeTimeout <= 0 {
		errs = append(errs, errors.New("transcribe_timeout must be positive"))
	}
	if c.ErrorDisplay <= 0 {
		errs = append(errs, errors.New("error_display must be positive"))
	}
	if c.PasteSettle < 0 {
		errs = append(errs, errors.New("paste_settle is negative"))
	}
	if c.Engine == "" {
		errs = append(errs, errors.New("engine is empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperr.ErrConfigInvalid, errors.Join(errs...))
	}
	return nil
}

// Dir is the per-user state directory. SAYIT_HOME overrides the default
// ~/.config/sayit.
func Dir() (string, error) {
	if d := os.Getenv("SAYIT_HOME"); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sayit"), nil
}

// Path resolves the config file: explicit flag, SAYIT_CONFIG, then Dir.
func Path(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if p := os.Getenv("SAYIT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func PIDPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, pidName), nil
}

func EnvPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, envName), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", apperr.ErrConfigInvalid, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%w: %s: unknown key %q", apperr.ErrConfigInvalid, path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(data), 0644)
}

// LoadEnv exports KEY=value pairs from path without overriding variables
// that are already set. A missing file is ignored.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env %s: %w", path, err)
	}
	return nil
}

// Encode renders cfg as it would be written to disk.
func Encode(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
