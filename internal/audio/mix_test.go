package audio

import (
	"testing"

	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// constantAudioSource builds a single-frame, numSamples-long stereo stream
// whose every sample (both channels) is the fixed value v.
func constantAudioSource(t *testing.T, f format.AudioFormat, numSamples int, v int64) *graph.Node {
	t.Helper()
	out := graph.OutputInfo{AudioFormat: &f, NumFrames: int64(numSamples)}
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		if reason != graph.AllReady {
			return nil, false
		}
		af, err := frame.NewAudioFrame(f, numSamples, nil)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		bps := f.BytesPerSample()
		for c := 0; c < f.NumChannels(); c++ {
			p := af.GetWritePtr(c)
			for i := 0; i < numSamples; i++ {
				writeIntSample(p, i*bps, bps, v)
			}
		}
		return af, true
	}
	node, err := graph.New("const", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error building source: %v", err)
	}
	return node
}

func TestMixAudioAveragesTruncatingTowardZero(t *testing.T) {
	f := stereoInt16Format(t)
	c1 := constantAudioSource(t, f, 4, 5)
	c2 := constantAudioSource(t, f, 4, 3)
	node, err := NewMixAudio("MixAudio", c1, c2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := requestAudioFrame(t, node, 0)
	defer out.Release()
	// 5/2 + 3/2 = 2 + 1 = 3, truncating toward zero like the C division it mirrors.
	if got := sampleAt(t, out, 0, 0); got != 3 {
		t.Fatalf("sample: got %d, want 3", got)
	}
}

func TestMixAudioAveragesNegativeTruncatingTowardZero(t *testing.T) {
	f := stereoInt16Format(t)
	c1 := constantAudioSource(t, f, 4, -5)
	c2 := constantAudioSource(t, f, 4, -3)
	node, err := NewMixAudio("MixAudio", c1, c2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := requestAudioFrame(t, node, 0)
	defer out.Release()
	// -5/2 + -3/2 = -2 + -1 = -3.
	if got := sampleAt(t, out, 0, 0); got != -3 {
		t.Fatalf("sample: got %d, want -3", got)
	}
}

func TestMixAudioRejectsNonStereo(t *testing.T) {
	f := monoInt16Format(t)
	c1 := constantAudioSource(t, f, 4, 5)
	c2 := constantAudioSource(t, f, 4, 3)
	if _, err := NewMixAudio("MixAudio", c1, c2); err == nil {
		t.Fatalf("expected error for mono inputs")
	}
}

func TestMixAudioRejectsFormatMismatch(t *testing.T) {
	stereo := stereoInt16Format(t)
	mono := monoInt16Format(t)
	c1 := constantAudioSource(t, stereo, 4, 5)
	c2 := constantAudioSource(t, mono, 4, 3)
	if _, err := NewMixAudio("MixAudio", c1, c2); err == nil {
		t.Fatalf("expected error for mismatched channel layouts")
	}
}

func TestMixAudioMaxPositiveStaysInRange(t *testing.T) {
	f := stereoInt16Format(t)
	c1 := constantAudioSource(t, f, 4, 32767)
	c2 := constantAudioSource(t, f, 4, 32767)
	node, err := NewMixAudio("MixAudio", c1, c2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := requestAudioFrame(t, node, 0)
	defer out.Release()
	// 32767/2 + 32767/2 = 16383 + 16383 = 32766, within int16 range already.
	if got := sampleAt(t, out, 0, 0); got != 32766 {
		t.Fatalf("sample: got %d, want 32766", got)
	}
}
