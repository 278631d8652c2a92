package scheduler

import (
	"context"
	"fmt"
	"sync"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/graph"
)

type depKey struct {
	nodeID uint64
	n      int
}

type pendingDep struct {
	frame graph.FrameRef
	err   error
}

// taskContext is the graph.Context one (node, n) activation sees. Each
// RequestFrom call fans out to the scheduler as an independent goroutine;
// await blocks until all of them have resolved, and Fetch then hands the
// getter's AllReady phase whatever each upstream produced.
type taskContext struct {
	sched *Scheduler
	ctx   context.Context
	node  *graph.Node
	n     int

	wg sync.WaitGroup

	mu      sync.Mutex
	pending map[depKey]*pendingDep
	err     error
}

func newTaskContext(sched *Scheduler, ctx context.Context, node *graph.Node, n int) *taskContext {
	return &taskContext{
		sched:   sched,
		ctx:     ctx,
		node:    node,
		n:       n,
		pending: make(map[depKey]*pendingDep),
	}
}

// RequestFrom issues an asynchronous request for upstream's frame n.
// Requesting the same (upstream, n) pair twice within one activation is a
// no-op; the scheduler's own in-flight table coalesces requests across
// activations.
func (tc *taskContext) RequestFrom(upstream *graph.Node, n int) {
	key := depKey{upstream.ID(), n}

	tc.mu.Lock()
	if _, exists := tc.pending[key]; exists {
		tc.mu.Unlock()
		return
	}
	dep := &pendingDep{}
	tc.pending[key] = dep
	tc.mu.Unlock()

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		f, err := tc.sched.activate(tc.ctx, upstream, n)
		tc.mu.Lock()
		dep.frame, dep.err = f, err
		tc.mu.Unlock()
	}()
}

// Fetch returns the resolved result of a frame previously requested with
// RequestFrom. Fetching something never requested is a contract violation,
// not a runtime condition a filter should ever hit.
func (tc *taskContext) Fetch(upstream *graph.Node, n int) (graph.FrameRef, error) {
	key := depKey{upstream.ID(), n}
	tc.mu.Lock()
	dep, ok := tc.pending[key]
	tc.mu.Unlock()
	if !ok {
		fgerrors.ProgrammerError("scheduler.fetch",
			fmt.Sprintf("node %q fetched frame %d from %q without requesting it during Initial", tc.node.Name, n, upstream.Name))
	}
	return cloneFrameRef(dep.frame), dep.err
}

// SetError records a getter-reported failure. Only the first call sticks,
// matching the "first error wins" rule for an activation.
func (tc *taskContext) SetError(err error) {
	if err == nil {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.err == nil {
		tc.err = err
	}
}

// FrameIndex reports the frame index this activation is resolving.
func (tc *taskContext) FrameIndex() int { return tc.n }

func (tc *taskContext) firstError() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.err
}

// await blocks until every requested dependency has resolved, folding the
// first dependency error (if any) into tc.err, or returns early with the
// context's error if it is cancelled first.
func (tc *taskContext) await(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		tc.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	for _, dep := range tc.pending {
		if dep.err != nil && tc.err == nil {
			tc.err = dep.err
		}
	}
	return tc.err
}
