package reorder

import (
	"context"
	"testing"

	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
	"github.com/alxayo/framegraph/internal/scheduler"
)

func grayFormat(t *testing.T) format.VideoFormat {
	t.Helper()
	f, err := format.NewVideoFormat(format.Gray, format.Integer, 8, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

// indexedSource builds a numFrames-long one-plane source whose frame n is a
// constant plane of value n (a numFrames < 0 source never terminates, useful
// for exercising Loop/unbounded construction paths).
func indexedSource(t *testing.T, f format.VideoFormat, w, h int, numFrames int64) *graph.Node {
	t.Helper()
	out := graph.OutputInfo{VideoFormat: &f, Width: w, Height: h, NumFrames: numFrames}
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		if reason != graph.AllReady {
			return nil, false
		}
		vf, err := frame.NewVideoFrame(f, w, h, nil)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		p := vf.GetWritePtr(0)
		for i := range p {
			p[i] = byte(n)
		}
		return vf, true
	}
	node, err := graph.New("source", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error building source: %v", err)
	}
	return node
}

func requestFrame(t *testing.T, node *graph.Node, n int) *frame.VideoFrame {
	t.Helper()
	sched := scheduler.New(2)
	out, err := sched.RequestFrame(context.Background(), node, n)
	if err != nil {
		t.Fatalf("unexpected error requesting frame %d: %v", n, err)
	}
	return out.(*frame.VideoFrame)
}

func planeValue(t *testing.T, vf *frame.VideoFrame) byte {
	t.Helper()
	return vf.GetReadPtr(0)[0]
}
