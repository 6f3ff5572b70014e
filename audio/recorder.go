package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"sayit/encoder"
)

var (
	ErrAlreadyRecording = errors.New("audio: capture already open")
	ErrNotRecording     = errors.New("audio: no capture open")
)

// Recording is a finished capture: 16-bit mono PCM held in memory.
type Recording struct {
	Samples    []int16
	SampleRate int
}

func (r Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.SampleRate)
}

// RMS is the root-mean-square level normalized to [0, 1].
func (r Recording) RMS() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.Samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(r.Samples)))
}

// Recorder owns the single microphone capture. Start opens a stream on
// the configured device; Stop closes it and hands the buffered samples
// to the caller.
type Recorder struct {
	ctx    Context
	device *DeviceInfo

	mu      sync.Mutex
	capture CaptureDevice

	bufMu sync.Mutex
	buf   []int16
}

// NewRecorder records from device, or the system default when nil.
func NewRecorder(ctx Context, device *DeviceInfo) *Recorder {
	return &Recorder{ctx: ctx, device: device}
}

// Start fails with ErrAlreadyRecording if a capture is open, otherwise
// with apperr.ErrDeviceUnavailable or apperr.ErrPermissionDenied when the
// stream cannot be opened.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture != nil {
		return ErrAlreadyRecording
	}

	capture, err := r.ctx.NewCapture(r.device, CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return classify(err)
	}

	r.bufMu.Lock()
	r.buf = make([]int16, 0, encoder.SampleRate*4)
	r.bufMu.Unlock()

	capture.SetCallback(r.onData)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return classify(err)
	}
	r.capture = capture
	return nil
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	n := min(int(frameCount), len(data)/2)
	r.bufMu.Lock()
	for i := range n {
		r.buf = append(r.buf, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	r.bufMu.Unlock()
}

// Stop closes the capture and returns everything recorded since Start.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture == nil {
		return Recording{}, ErrNotRecording
	}
	r.capture.ClearCallback()
	r.capture.Stop()
	r.capture.Close()
	r.capture = nil

	r.bufMu.Lock()
	samples := r.buf
	r.buf = nil
	r.bufMu.Unlock()

	return Recording{Samples: samples, SampleRate: encoder.SampleRate}, nil
}

// Recording reports whether a capture is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}
