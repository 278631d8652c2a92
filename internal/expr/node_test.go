package expr

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

// constantPlaneSource builds a single-frame source node whose sole plane is
// filled with value.
func constantPlaneSource(t *testing.T, f format.VideoFormat, width, height int, value byte) *graph.Node {
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
		for i := range p {
			p[i] = value
		}
		return vf, true
	}
	node, err := graph.New("source", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error building source: %v", err)
	}
	return node
}

func TestNewExprRejectsNoInputs(t *testing.T) {
	f := grayFormat(t)
	_, err := NewExpr("Expr", nil, []string{"x"}, f, 4, 4, 0)
	if err == nil {
		t.Fatalf("expected error for no inputs")
	}
}

func TestNewExprRejectsPlaneCountMismatch(t *testing.T) {
	f := grayFormat(t)
	src := constantPlaneSource(t, f, 4, 4, 10)
	_, err := NewExpr("Expr", []*graph.Node{src}, []string{"x", "x"}, f, 4, 4, 0)
	if err == nil {
		t.Fatalf("expected error for plane count mismatch on a Gray (1-plane) output")
	}
}

func TestNewExprRejectsUncompilableExpression(t *testing.T) {
	f := grayFormat(t)
	src := constantPlaneSource(t, f, 4, 4, 10)
	_, err := NewExpr("Expr", []*graph.Node{src}, []string{"x y +"}, f, 4, 4, 0)
	if err == nil {
		t.Fatalf("expected error: clip y is undefined with only one input")
	}
}

func TestExprAddsTwoConstantClips(t *testing.T) {
	f := grayFormat(t)
	a := constantPlaneSource(t, f, 2, 2, 10)
	b := constantPlaneSource(t, f, 2, 2, 20)

	node, err := NewExpr("Expr", []*graph.Node{a, b}, []string{"x y +"}, f, 2, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sched := scheduler.New(2)
	out, err := sched.RequestFrame(context.Background(), node, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vf := out.(*frame.VideoFrame)
	defer vf.Release()

	p := vf.GetReadPtr(0)
	for i, v := range p {
		if v != 30 {
			t.Fatalf("pixel %d: got %d, want 30", i, v)
		}
	}
}

func TestExprClampsIntegerOutputToRange(t *testing.T) {
	f := grayFormat(t)
	a := constantPlaneSource(t, f, 1, 1, 200)
	b := constantPlaneSource(t, f, 1, 1, 200)

	node, err := NewExpr("Expr", []*graph.Node{a, b}, []string{"x y +"}, f, 1, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sched := scheduler.New(1)
	out, err := sched.RequestFrame(context.Background(), node, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vf := out.(*frame.VideoFrame)
	defer vf.Release()

	if got := vf.GetReadPtr(0)[0]; got != 255 {
		t.Fatalf("got %d, want saturated 255 (200+200 clamped)", got)
	}
}

func TestExprEmptyPlaneExpressionPassesThroughFirstInput(t *testing.T) {
	f := grayFormat(t)
	a := constantPlaneSource(t, f, 2, 2, 77)
	b := constantPlaneSource(t, f, 2, 2, 5)

	node, err := NewExpr("Expr", []*graph.Node{a, b}, []string{""}, f, 2, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sched := scheduler.New(1)
	out, err := sched.RequestFrame(context.Background(), node, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vf := out.(*frame.VideoFrame)
	defer vf.Release()

	for i, v := range vf.GetReadPtr(0) {
		if v != 77 {
			t.Fatalf("pixel %d: got %d, want 77 (copied from first input)", i, v)
		}
	}
}
