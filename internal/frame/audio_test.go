package frame

import (
	"testing"

	"github.com/alxayo/framegraph/internal/format"
)

func stereo16(t *testing.T) format.AudioFormat {
	t.Helper()
	f, err := format.NewAudioFormat(format.Integer, 16, format.ChannelLayout(0b11), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestNewAudioFrameBasic(t *testing.T) {
	f := stereo16(t)
	af, err := NewAudioFrame(f, format.AudioFrameSamples, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if af.NumSamples() != format.AudioFrameSamples {
		t.Fatalf("expected %d samples, got %d", format.AudioFrameSamples, af.NumSamples())
	}
	if len(af.GetReadPtr(0)) != format.AudioFrameSamples*2 {
		t.Fatalf("expected channel buffer of %d bytes, got %d", format.AudioFrameSamples*2, len(af.GetReadPtr(0)))
	}
}

func TestNewAudioFrameRejectsOutOfRangeSampleCount(t *testing.T) {
	f := stereo16(t)
	if _, err := NewAudioFrame(f, 0, nil); err == nil {
		t.Fatalf("expected error for zero samples")
	}
	if _, err := NewAudioFrame(f, format.AudioFrameSamples+1, nil); err == nil {
		t.Fatalf("expected error for samples exceeding the fixed frame size")
	}
}

func TestNewAudioFrameLastFrameShort(t *testing.T) {
	f := stereo16(t)
	af, err := NewAudioFrame(f, 100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if af.NumSamples() != 100 {
		t.Fatalf("expected 100 samples for a short final frame, got %d", af.NumSamples())
	}
}

func TestFrameIndexForSample(t *testing.T) {
	cases := []struct {
		s          int64
		wantFrame  int64
		wantOffset int
	}{
		{0, 0, 0},
		{3071, 0, 3071},
		{3072, 1, 0},
		{10*3072 - 1, 9, 3071},
	}
	for _, c := range cases {
		frame, offset := FrameIndexForSample(c.s)
		if frame != c.wantFrame || offset != c.wantOffset {
			t.Fatalf("FrameIndexForSample(%d) = (%d,%d), want (%d,%d)", c.s, frame, offset, c.wantFrame, c.wantOffset)
		}
	}
}
