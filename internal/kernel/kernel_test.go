package kernel

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

// planeSource builds a one-frame source node whose single plane is filled
// by fill(x, y).
func planeSource(t *testing.T, f format.VideoFormat, width, height int, fill func(x, y int) byte) *graph.Node {
	t.Helper()
	out := graph.OutputInfo{VideoFormat: &f, Width: width, Height: height, NumFrames: -1}
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		if reason != graph.AllReady {
			return nil, false
		}
		vf, err := frame.NewVideoFrame(f, width, height, nil)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		p := vf.GetWritePtr(0)
		stride := vf.Stride(0)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				p[y*stride+x] = fill(x, y)
			}
		}
		return vf, true
	}
	node, err := graph.New("source", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error building source: %v", err)
	}
	return node
}

func constantPlaneSource(t *testing.T, f format.VideoFormat, width, height int, value byte) *graph.Node {
	t.Helper()
	return planeSource(t, f, width, height, func(x, y int) byte { return value })
}

func requestFrame(t *testing.T, node *graph.Node) *frame.VideoFrame {
	t.Helper()
	sched := scheduler.New(2)
	out, err := sched.RequestFrame(context.Background(), node, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out.(*frame.VideoFrame)
}
