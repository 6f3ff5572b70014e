//go:build darwin

package beep

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"sayit/log"
)

// CoreAudio starts quickly, so the tails can be shorter than on pulse.
const coreAudioTail = 0.03

type malgoBackend struct {
	ctx    *malgo.AllocatedContext
	cues   map[Cue][]byte
	cursor cursor

	mu     sync.Mutex
	device *malgo.Device
}

func newBackend() (backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}
	b := &malgoBackend{ctx: ctx, cues: map[Cue][]byte{}}
	for _, c := range []Cue{CueStart, CueStop, CueError} {
		b.cues[c] = toBytes(render(c, coreAudioTail))
	}
	if err := b.open(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	return b, nil
}

func (b *malgoBackend) open() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	dev, err := malgo.InitDevice(b.ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) { b.cursor.fill(out) },
	})
	if err != nil {
		return fmt.Errorf("malgo playback device: %w", err)
	}
	b.device = dev
	return nil
}

func (b *malgoBackend) play(c Cue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return
	}

	// restart from a clean state; a no-op when idle
	b.device.Stop()
	b.cursor.load(b.cues[c])
	if err := b.device.Start(); err == nil {
		return
	}

	// the device goes stale across sleep/wake; reopen once
	b.device.Uninit()
	b.device = nil
	if err := b.open(); err != nil {
		log.Warnf("playback device lost: %v", err)
		return
	}
	if err := b.device.Start(); err != nil {
		log.Warnf("%s cue: %v", c, err)
	}
}

func (b *malgoBackend) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	b.ctx.Uninit()
	b.ctx.Free()
}
