package audio

import (
	"context"
	"testing"

	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
	"github.com/alxayo/framegraph/internal/scheduler"
)

func monoInt16Format(t *testing.T) format.AudioFormat {
	t.Helper()
	f, err := format.NewAudioFormat(format.Integer, 16, 0x1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func stereoInt16Format(t *testing.T) format.AudioFormat {
	t.Helper()
	f, err := format.NewAudioFormat(format.Integer, 16, 0x3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

// indexedAudioSource builds a totalSamples-long stream whose absolute sample
// s carries the value s (every channel the same), chunked into
// format.AudioFrameSamples-sized frames (the last possibly shorter).
func indexedAudioSource(t *testing.T, f format.AudioFormat, totalSamples int64) *graph.Node {
	t.Helper()
	out := graph.OutputInfo{AudioFormat: &f, NumFrames: totalSamples}
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		if reason != graph.AllReady {
			return nil, false
		}
		start := int64(n) * format.AudioFrameSamples
		count := format.AudioFrameSamples
		if remaining := totalSamples - start; int64(count) > remaining {
			count = int(remaining)
		}
		af, err := frame.NewAudioFrame(f, count, nil)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		bps := f.BytesPerSample()
		for c := 0; c < f.NumChannels(); c++ {
			p := af.GetWritePtr(c)
			for i := 0; i < count; i++ {
				writeIntSample(p, i*bps, bps, start+int64(i))
			}
		}
		return af, true
	}
	node, err := graph.New("audiosource", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error building source: %v", err)
	}
	return node
}

func requestAudioFrame(t *testing.T, node *graph.Node, n int) *frame.AudioFrame {
	t.Helper()
	sched := scheduler.New(2)
	out, err := sched.RequestFrame(context.Background(), node, n)
	if err != nil {
		t.Fatalf("unexpected error requesting frame %d: %v", n, err)
	}
	return out.(*frame.AudioFrame)
}

func sampleAt(t *testing.T, af *frame.AudioFrame, channel, i int) int64 {
	t.Helper()
	bps := af.Format().BytesPerSample()
	return readIntSample(af.GetReadPtr(channel), i*bps, bps)
}
