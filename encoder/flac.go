package encoder

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FLAC losslessly compresses a mono 16 kHz recording into memory, one
// frame per BlockSize samples. An empty recording still yields a valid
// stream header.
func FLAC(samples []int16) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      uint64(len(samples)),
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	// lets the encoder swap verbatim subframes for fixed/LPC ones
	enc.EnablePredictionAnalysis(true)

	for off := 0; off < len(samples); off += BlockSize {
		block := samples[off:min(off+BlockSize, len(samples))]
		if err := enc.WriteFrame(monoFrame(block)); err != nil {
			enc.Close()
			return nil, fmt.Errorf("writing flac frame at sample %d: %w", off, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac stream: %w", err)
	}
	return buf.Bytes(), nil
}

func monoFrame(block []int16) *frame.Frame {
	widened := make([]int32, len(block))
	for i, s := range block {
		widened[i] = int32(s)
	}
	return &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   widened,
			NSamples:  len(block),
		}},
	}
}
