package encoder

import (
	"encoding/binary"
	"testing"
)

func ramp(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i%2000 - 1000)
	}
	return s
}

func TestFLACFrames(t *testing.T) {
	samples := ramp(3*BlockSize + BlockSize/2)
	data, err := FLAC(samples)
	if err != nil {
		t.Fatalf("FLAC: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestMonoFrame(t *testing.T) {
	f := monoFrame([]int16{-32768, 0, 32767})
	if f.Header.BlockSize != 3 || len(f.Subframes) != 1 {
		t.Fatalf("header %+v", f.Header)
	}
	if got := f.Subframes[0].Samples; got[0] != -32768 || got[2] != 32767 {
		t.Errorf("samples = %v", got)
	}
}

func TestFLACEmpty(t *testing.T) {
	data, err := FLAC(nil)
	if err != nil {
		t.Fatalf("FLAC(nil): %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Error("expected FLAC header even without audio")
	}
}

func TestFLAC(t *testing.T) {
	data, err := FLAC(ramp(SampleRate))
	if err != nil {
		t.Fatalf("FLAC: %v", err)
	}
	if string(data[:4]) != "fLaC" {
		t.Fatal("missing FLAC magic")
	}
}

func TestWAV(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	data := WAV(samples, SampleRate)

	if len(data) != 44+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q", data[:40])
	}
	if got := binary.LittleEndian.Uint32(data[24:]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:]); got != uint32(len(samples)*2) {
		t.Errorf("data len = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[44+3*2:])); got != 32767 {
		t.Errorf("sample[3] = %d", got)
	}
}
