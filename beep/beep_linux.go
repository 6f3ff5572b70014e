//go:build linux

package beep

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"sayit/log"
)

// Pulse needs a 200ms tail so the server buffer fills before drain.
const pulseTail = 0.2

// pulseBackend plays cues one at a time on a worker goroutine. A cue
// requested while another is still draining replaces any queued one.
type pulseBackend struct {
	client *pulse.Client
	cues   map[Cue][]int16
	queue  chan Cue
	stop   chan struct{}
	done   chan struct{}
}

func newBackend() (backend, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("sayit"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	b := &pulseBackend{
		client: c,
		cues:   map[Cue][]int16{},
		queue:  make(chan Cue, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, cue := range []Cue{CueStart, CueStop, CueError} {
		b.cues[cue] = stereo(render(cue, pulseTail))
	}
	go b.run()
	return b, nil
}

func (b *pulseBackend) play(c Cue) {
	for {
		select {
		case b.queue <- c:
			return
		default:
		}
		select {
		case <-b.queue:
		default:
		}
	}
}

func (b *pulseBackend) run() {
	defer close(b.done)
	for {
		select {
		case c := <-b.queue:
			if err := b.drain(b.cues[c]); err != nil {
				log.Warnf("%s cue: %v", c, err)
			}
		case <-b.stop:
			return
		}
	}
}

func (b *pulseBackend) drain(samples []int16) error {
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := b.client.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackMediaName("sayit cue"),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
	return nil
}

func (b *pulseBackend) close() {
	close(b.stop)
	<-b.done
	b.client.Close()
}
