// Package scheduler drives the two-phase activation protocol defined by
// internal/graph: it resolves one (node, frame index) request at a time per
// coalescing key, fans a node's declared dependencies out concurrently, and
// enforces each node's FilterMode concurrency contract before invoking its
// getter.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
	"github.com/alxayo/framegraph/internal/logger"
)

const defaultWorkerPoolSize = 16

type taskKey struct {
	nodeID uint64
	n      int
}

type taskState struct {
	done  chan struct{}
	frame graph.FrameRef
	err   error
}

// Scheduler resolves frame-graph activations. It owns a bounded worker
// pool (grounded on the teacher's hook execution pool), a table of
// in-flight activations so concurrent identical requests share one
// getter invocation, and a per-node concurrency gate derived from each
// node's FilterMode.
type Scheduler struct {
	logger  *slog.Logger
	workers chan struct{}

	mu       sync.Mutex
	inFlight map[taskKey]*taskState
	gates    map[uint64]*nodeGate
}

// New builds a scheduler with the given worker pool size. A size <= 0
// uses a default suited to typical multi-core hosts.
func New(workerPoolSize int) *Scheduler {
	if workerPoolSize <= 0 {
		workerPoolSize = defaultWorkerPoolSize
	}
	return &Scheduler{
		logger:   logger.WithNode(logger.Logger(), "scheduler", 0),
		workers:  make(chan struct{}, workerPoolSize),
		inFlight: make(map[taskKey]*taskState),
		gates:    make(map[uint64]*nodeGate),
	}
}

// RequestFrame resolves node's output at frame index n: a cache hit or an
// in-flight activation by another caller short-circuits the getter
// entirely; otherwise it drives node's Initial/AllReady protocol.
func (s *Scheduler) RequestFrame(ctx context.Context, node *graph.Node, n int) (graph.FrameRef, error) {
	return s.activate(ctx, node, n)
}

// Close blocks until every activation this scheduler has in flight
// finishes, by acquiring every worker slot in turn — the same drain
// technique as the teacher's execution pool shutdown.
func (s *Scheduler) Close() {
	for i := 0; i < cap(s.workers); i++ {
		s.workers <- struct{}{}
	}
}

func (s *Scheduler) activate(ctx context.Context, node *graph.Node, n int) (graph.FrameRef, error) {
	key := taskKey{node.ID(), n}

	s.mu.Lock()
	if t, ok := s.inFlight[key]; ok {
		s.mu.Unlock()
		<-t.done
		return cloneFrameRef(t.frame), t.err
	}
	if cache := node.Cache(); cache != nil {
		if entry, ok := cache.Get(n); ok {
			s.mu.Unlock()
			return cloneFrameRef(entry.Frame), entry.Err
		}
	}
	t := &taskState{done: make(chan struct{})}
	s.inFlight[key] = t
	s.mu.Unlock()

	f, err := s.run(ctx, node, n)

	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()

	t.frame, t.err = f, err
	close(t.done)

	if cache := node.Cache(); cache != nil {
		cache.Put(n, graph.CacheEntry{Frame: cloneFrameRef(f), Err: err})
	}

	return f, err
}

// acquireWorker blocks until a worker slot is free or ctx is done. It must
// never be held by a goroutine that is itself blocked waiting on other
// activations — see the release around tc.await in run below.
func (s *Scheduler) acquireWorker(ctx context.Context) error {
	select {
	case s.workers <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) releaseWorker() { <-s.workers }

// run drives a single activation's Initial -> (await deps) -> AllReady
// sequence, honoring node's FilterMode concurrency gate throughout. The
// worker slot is held only while this goroutine is doing scheduler or
// getter work; it is released for the duration of tc.await, since each
// dependency activation RequestFrom spawned already runs on its own
// goroutine and acquires its own slot. Holding the slot across the wait
// would mean a dependency chain deeper than the pool size deadlocks: every
// slot would be pinned by an ancestor parked in await, with no slot left
// for the descendant that needs one to make progress.
func (s *Scheduler) run(ctx context.Context, node *graph.Node, n int) (graph.FrameRef, error) {
	if err := s.acquireWorker(ctx); err != nil {
		return nil, err
	}

	gate := s.gateFor(node)
	releaseActivation, err := gate.enterActivation(ctx, n)
	if err != nil {
		s.releaseWorker()
		return nil, err
	}
	defer releaseActivation()

	log := logger.WithFrame(logger.WithNode(logger.Logger(), node.Name, node.ID()), n, "Initial")
	tc := newTaskContext(s, ctx, node, n)

	var frameState any
	getter := node.Getter()

	f, done := getter(n, graph.Initial, node.InstanceState, &frameState, tc)
	if done {
		s.releaseWorker()
		log.Debug("getter resolved during Initial phase")
		return f, tc.firstError()
	}
	if err := tc.firstError(); err != nil {
		s.releaseWorker()
		return nil, err
	}

	s.releaseWorker()
	awaitErr := tc.await(ctx)
	if err := s.acquireWorker(ctx); err != nil {
		return nil, err
	}
	defer s.releaseWorker()

	if awaitErr != nil {
		if f, done := getter(n, graph.ErrorReason, node.InstanceState, &frameState, tc); done {
			return f, awaitErr
		}
		return nil, awaitErr
	}

	releaseProduction, err := gate.enterProduction(ctx)
	if err != nil {
		return nil, err
	}
	f, done = getter(n, graph.AllReady, node.InstanceState, &frameState, tc)
	releaseProduction()

	if !done {
		return nil, fgerrors.NewRuntimeError(node.Name, n, -1, "getter.no_result_at_all_ready", nil)
	}
	if err := tc.firstError(); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Scheduler) gateFor(node *graph.Node) *nodeGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[node.ID()]
	if !ok {
		g = newNodeGate(node.FilterMode)
		s.gates[node.ID()] = g
	}
	return g
}

// cloneFrameRef hands the caller an independently-owned reference when the
// underlying concrete type supports ref-counting, so sharing one resolved
// result across coalesced waiters and the cache never causes a premature
// free on the first Release.
func cloneFrameRef(f graph.FrameRef) graph.FrameRef {
	if f == nil {
		return nil
	}
	switch v := f.(type) {
	case *frame.VideoFrame:
		if v == nil {
			return nil
		}
		return v.Ref()
	case *frame.AudioFrame:
		if v == nil {
			return nil
		}
		return v.Ref()
	default:
		return f
	}
}
