// Package session owns the dictation state machine: hotkey edges in,
// recording, transcription and injection out.
package session

import (
	"time"

	"sayit/config"
)

type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Injecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Injecting:
		return "injecting"
	}
	return "unknown"
}

type Outcome int

const (
	Succeeded Outcome = iota
	TooShort
	NoiseFloorOnly
	NoSpeech
	CaptureFailed
	TranscriptionFailed
	InjectionFailed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case TooShort:
		return "too_short"
	case NoiseFloorOnly:
		return "noise_floor_only"
	case NoSpeech:
		return "no_speech"
	case CaptureFailed:
		return "capture_failed"
	case TranscriptionFailed:
		return "transcription_failed"
	case InjectionFailed:
		return "injection_failed"
	}
	return "unknown"
}

// Settings is the part of the config snapshot a session reads.
type Settings struct {
	Hotkey      string
	MinDuration time.Duration
	NoiseFloor  float64
	Language    string // "" lets the engine detect
	Timeout     time.Duration
}

func SettingsFrom(c config.Config) Settings {
	return Settings{
		Hotkey:      c.Hotkey,
		MinDuration: c.MinRecording(),
		NoiseFloor:  c.NoiseFloor,
		Language:    c.LanguageHint(),
		Timeout:     c.TranscribeTimeout.D(),
	}
}

// Session is one press-to-injection cycle. Observers receive a copy once
// it has ended.
type Session struct {
	ID      string
	Start   time.Time
	End     time.Time
	Audio   time.Duration
	Text    string
	Outcome Outcome
	Err     error

	settings Settings
	target   string
}
