//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"sayit/apperr"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("malgo init: %w", err))
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

// deviceID decodes an ID produced by Devices.
func deviceID(info *DeviceInfo) (malgo.DeviceID, error) {
	var id malgo.DeviceID
	raw, err := hex.DecodeString(info.ID)
	if err != nil || len(raw) > len(id) {
		return id, fmt.Errorf("%w: bad device id for %q", apperr.ErrDeviceUnavailable, info.Name)
	}
	copy(id[:], raw)
	return id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	if device != nil {
		id, err := deviceID(device)
		if err != nil {
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	c := &malgoCapture{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if cb := c.callback.Load(); cb != nil {
				(*cb)(data, frameCount)
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, classify(fmt.Errorf("malgo open capture: %w", err))
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

// malgoCapture delivers frames on miniaudio's own thread; the buffer is
// only valid during the callback.
type malgoCapture struct {
	device   *malgo.Device
	callback atomic.Pointer[DataCallback]
	closing  sync.Once
}

func (c *malgoCapture) Start() error {
	if err := c.device.Start(); err != nil {
		return classify(fmt.Errorf("malgo start: %w", err))
	}
	return nil
}

func (c *malgoCapture) Stop() {
	if c.device.IsStarted() {
		c.device.Stop()
	}
}

func (c *malgoCapture) Close() {
	c.closing.Do(c.device.Uninit)
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}
