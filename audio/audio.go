package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"sayit/apperr"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether capture will drop to
// the headset profile's narrowband codec.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// FindDevice returns the device called name, or nil for the system default
// when name is empty.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, classify(fmt.Errorf("enumerating devices: %w", err))
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no input device named %q", apperr.ErrDeviceUnavailable, name)
}

// classify maps backend failures onto the shared error kinds. Backends
// report permission problems only through their messages.
func classify(err error) error {
	if err == nil || errors.Is(err, apperr.ErrDeviceUnavailable) || errors.Is(err, apperr.ErrPermissionDenied) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"permission", "denied", "not authorized", "not permitted"} {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %w", apperr.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", apperr.ErrDeviceUnavailable, err)
}

// amplify scales samples by gain, clipping at the int16 range, and packs
// them as little-endian PCM.
func amplify(buf []int16, gain int32) []byte {
	data := make([]byte, len(buf)*2)
	for i, s := range buf {
		v := max(min(int32(s)*gain, math.MaxInt16), math.MinInt16)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}
