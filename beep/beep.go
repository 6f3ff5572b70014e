// Package beep synthesises the short audio cues that mark the start and
// end of a recording, and failures.
package beep

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"sayit/log"
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Stop beep: medium pitch, slightly longer
	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueStop:
		return "stop"
	case CueError:
		return "error"
	}
	return "unknown"
}

// backend plays rendered cues on one platform audio API. play must not
// block on the cue finishing.
type backend interface {
	play(Cue)
	close()
}

// Player plays cues unless sounds are disabled in the config or no output
// device could be opened.
type Player struct {
	enabled bool
	play    func(Cue)
	close   func()
}

func NewPlayer(enabled bool) *Player {
	p := &Player{}
	if !enabled {
		return p
	}
	b, err := newBackend()
	if err != nil {
		log.Warnf("sound cues disabled: %v", err)
		return p
	}
	p.enabled, p.play, p.close = true, b.play, b.close
	return p
}

func (p *Player) Start() { p.cue(CueStart) }
func (p *Player) Stop()  { p.cue(CueStop) }
func (p *Player) Error() { p.cue(CueError) }

// Close releases the output device.
func (p *Player) Close() {
	if p != nil && p.close != nil {
		p.close()
	}
}

func (p *Player) cue(c Cue) {
	if p == nil || !p.enabled {
		return
	}
	p.play(c)
}

// render synthesises c as mono samples. tail is how long single ticks
// ring; output paths with slow start-up need a longer one.
func render(c Cue, tail float64) []int16 {
	switch c {
	case CueStart:
		return tick(startFreq, tail, startVolume, startDecay)
	case CueStop:
		return tick(stopFreq, tail+0.02, stopVolume, stopDecay)
	case CueError:
		return doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	}
	return nil
}

// cursor hands one cue at a time to a pull-based output callback.
type cursor struct {
	samples atomic.Pointer[[]byte]
	pos     atomic.Uint32
}

func (c *cursor) load(b []byte) {
	c.samples.Store(nil)
	c.pos.Store(0)
	c.samples.Store(&b)
}

// fill copies the next chunk into out and zero-fills the rest. It reports
// false once the cue has been fully played.
func (c *cursor) fill(out []byte) bool {
	samples := c.samples.Load()
	if samples == nil {
		clear(out)
		return false
	}
	pos := c.pos.Load()
	n := copy(out, (*samples)[pos:])
	clear(out[n:])
	c.pos.Store(pos + uint32(n))
	if int(pos)+n >= len(*samples) {
		c.samples.CompareAndSwap(samples, nil)
		return n > 0
	}
	return true
}

// tick is an exponentially decaying sine, mono.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range n {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// stereo interleaves mono samples into L/R pairs.
func stereo(samples []int16) []int16 {
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}
