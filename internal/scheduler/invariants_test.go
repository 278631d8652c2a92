package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// recordingSource is a Parallel source node that records every n it was
// actually asked to produce, guarded by a mutex.
func recordingSource(t *testing.T, mu *sync.Mutex, seen *[]int) *graph.Node {
	t.Helper()
	out := testVideoOutput(t, -1)
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		mu.Lock()
		*seen = append(*seen, n)
		mu.Unlock()
		vf, err := frame.NewVideoFrame(*out.VideoFormat, out.Width, out.Height, nil)
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
	node, err := graph.New("src", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return node
}

// TestStrictSpatialRequestsExactlyMatchingIndex: a getter with a
// StrictSpatial dependency that requests frame n of its upstream for
// output frame n must cause exactly one request for (u, n) and none for
// any m != n.
func TestStrictSpatialRequestsExactlyMatchingIndex(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	upstream := recordingSource(t, &mu, &seen)

	pass, err := graph.New("pass", testVideoOutput(t, -1), passthroughGetter(upstream), nil, graph.Parallel,
		[]graph.Dependency{{Upstream: upstream, Mode: graph.StrictSpatial}}, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := New(4)
	for _, n := range []int{0, 5, 3} {
		f, err := s.RequestFrame(context.Background(), pass, n)
		if err != nil {
			t.Fatalf("unexpected error requesting frame %d: %v", n, err)
		}
		vf := f.(*frame.VideoFrame)
		if got := vf.GetReadPtr(0)[0]; got != byte(n) {
			t.Fatalf("frame %d: got pixel %d, want %d", n, got, n)
		}
		vf.Release()

		mu.Lock()
		last := seen[len(seen)-1]
		mu.Unlock()
		if last != n {
			t.Fatalf("requesting (pass, %d) caused upstream request for %d, want exactly %d", n, last, n)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected exactly 3 upstream requests (one per downstream request), got %v", seen)
	}
	for i, n := range []int{0, 5, 3} {
		if seen[i] != n {
			t.Fatalf("upstream request %d: got %d, want %d (no requests for mismatched indices)", i, seen[i], n)
		}
	}
}

// TestParallelConcurrentRequestsMatchSequential: for a Parallel node,
// requesting two distinct frames concurrently must produce the same
// per-frame content as requesting them one at a time.
func TestParallelConcurrentRequestsMatchSequential(t *testing.T) {
	out := testVideoOutput(t, -1)
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		vf, err := frame.NewVideoFrame(*out.VideoFormat, out.Width, out.Height, nil)
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

	sequential, err := graph.New("seq", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	concurrent, err := graph.New("conc", out, getter, nil, graph.Parallel, nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sSeq := New(1)
	wantVals := map[int]byte{}
	for _, n := range []int{1, 2, 3, 4} {
		f, err := sSeq.RequestFrame(context.Background(), sequential, n)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vf := f.(*frame.VideoFrame)
		wantVals[n] = vf.GetReadPtr(0)[0]
		vf.Release()
	}

	sConc := New(8)
	var wg sync.WaitGroup
	results := make([]*frame.VideoFrame, 4)
	for i, n := range []int{1, 2, 3, 4} {
		wg.Add(1)
		go func(idx, n int) {
			defer wg.Done()
			f, err := sConc.RequestFrame(context.Background(), concurrent, n)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[idx] = f.(*frame.VideoFrame)
		}(i, n)
	}
	wg.Wait()

	for i, n := range []int{1, 2, 3, 4} {
		vf := results[i]
		if got := vf.GetReadPtr(0)[0]; got != wantVals[n] {
			t.Fatalf("frame %d: concurrent=%d, sequential=%d", n, got, wantVals[n])
		}
		vf.Release()
	}
}

// TestConcurrentDuplicateRequestsYieldOneActivation mirrors
// TestConcurrentIdenticalRequestsCoalesce but asserts on a per-index atomic
// counter rather than a single global one, confirming the single-activation
// guarantee holds per (node, n) pair and not merely in aggregate.
func TestConcurrentDuplicateRequestsYieldOneActivation(t *testing.T) {
	var callsByIndex [4]int32
	out := testVideoOutput(t, -1)
	getter := func(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
		atomic.AddInt32(&callsByIndex[n], 1)
		vf, err := frame.NewVideoFrame(*out.VideoFormat, out.Width, out.Height, nil)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		return vf, true
	}
	node, err := graph.New("src", out, getter, nil, graph.Parallel, nil, nil, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := New(8)
	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				f, err := s.RequestFrame(context.Background(), node, n)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				f.(*frame.VideoFrame).Release()
			}(n)
		}
	}
	wg.Wait()

	for n := 0; n < 4; n++ {
		if c := atomic.LoadInt32(&callsByIndex[n]); c != 1 {
			t.Fatalf("frame %d: expected exactly one activation across 8 concurrent duplicate requests, got %d", n, c)
		}
	}
}
