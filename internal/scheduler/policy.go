package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/alxayo/framegraph/internal/graph"
)

// nodeGate enforces one node's FilterMode concurrency contract (spec's
// scheduling section): Parallel imposes no restriction at all.
// ParallelRequests lets Initial-phase dependency exploration run
// concurrently across frames but serializes the AllReady phase that
// actually produces output. Unordered allows only one activation in
// flight at a time, with no constraint on which frame index goes first.
// FrameState additionally requires activations to begin in ascending
// frame-index order, modeling a filter that carries mutable state from
// one frame to the next.
type nodeGate struct {
	mode graph.FilterMode
	sem  *semaphore.Weighted

	mu      sync.Mutex
	cond    *sync.Cond
	nextIdx int
}

func newNodeGate(mode graph.FilterMode) *nodeGate {
	g := &nodeGate{mode: mode}
	switch mode {
	case graph.Unordered, graph.FrameState, graph.ParallelRequests:
		g.sem = semaphore.NewWeighted(1)
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// enterActivation gates the start of a whole activation (Initial through
// AllReady). Parallel and ParallelRequests return a no-op release here;
// ParallelRequests instead gates in enterProduction.
func (g *nodeGate) enterActivation(ctx context.Context, n int) (func(), error) {
	switch g.mode {
	case graph.Unordered:
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		return func() { g.sem.Release(1) }, nil

	case graph.FrameState:
		g.mu.Lock()
		for n != g.nextIdx {
			g.cond.Wait()
		}
		g.mu.Unlock()
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		return func() {
			g.sem.Release(1)
			g.mu.Lock()
			g.nextIdx++
			g.cond.Broadcast()
			g.mu.Unlock()
		}, nil

	default:
		return func() {}, nil
	}
}

// enterProduction gates only the AllReady phase, used by ParallelRequests
// to allow concurrent dependency exploration while still serializing the
// frame each activation ultimately produces.
func (g *nodeGate) enterProduction(ctx context.Context) (func(), error) {
	if g.mode != graph.ParallelRequests {
		return func() {}, nil
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { g.sem.Release(1) }, nil
}
