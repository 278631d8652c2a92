// Package graph implements the node-graph data model: nodes with a
// getter callback, a per-upstream dependency mode, a filter mode, and an
// optional adaptive frame cache. It does not itself drive the request
// protocol — that is internal/scheduler's job — but it owns the structural
// invariants (acyclicity, dependency declarations, cache policy) the
// scheduler relies on.
package graph

import (
	"sync/atomic"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/format"
)

// DependencyMode describes the temporal access pattern a consumer has on
// one upstream (spec §3).
type DependencyMode int

const (
	StrictSpatial DependencyMode = iota
	General
	NoFrameReuse
	FrameReuseLastOnly
)

func (m DependencyMode) String() string {
	switch m {
	case StrictSpatial:
		return "StrictSpatial"
	case General:
		return "General"
	case NoFrameReuse:
		return "NoFrameReuse"
	case FrameReuseLastOnly:
		return "FrameReuseLastOnly"
	default:
		return "Unknown"
	}
}

// FilterMode is the concurrency contract a node offers the scheduler
// (spec §4.1).
type FilterMode int

const (
	Parallel FilterMode = iota
	ParallelRequests
	Unordered
	FrameState
)

func (m FilterMode) String() string {
	switch m {
	case Parallel:
		return "Parallel"
	case ParallelRequests:
		return "ParallelRequests"
	case Unordered:
		return "Unordered"
	case FrameState:
		return "FrameState"
	default:
		return "Unknown"
	}
}

// ActivationReason selects the phase a getter is being invoked for
// (spec §6).
type ActivationReason int

const (
	Initial ActivationReason = iota
	AllReady
	ErrorReason
)

func (r ActivationReason) String() string {
	switch r {
	case Initial:
		return "Initial"
	case AllReady:
		return "AllReady"
	case ErrorReason:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameRef is anything the scheduler can hold a reference-counted handle
// to: *frame.VideoFrame and *frame.AudioFrame both satisfy it.
type FrameRef interface {
	Release()
}

// OutputInfo is a node's static output description: either a video format
// plus dimensions, or an audio format. NumFrames/NumSamples of -1 means
// unbounded/unknown length.
type OutputInfo struct {
	VideoFormat *format.VideoFormat
	Width       int
	Height      int
	AudioFormat *format.AudioFormat
	NumFrames   int64
}

// IsAudio reports whether this output info describes an audio node.
func (o OutputInfo) IsAudio() bool { return o.AudioFormat != nil }

// Dependency pairs an upstream node with the mode describing how this
// node accesses it.
type Dependency struct {
	Upstream *Node
	Mode     DependencyMode
}

// Getter is the node-supplied two-phase callback (spec §6). frameState is
// scratch, owned by the scheduler for the lifetime of one (node, n)
// invocation, letting a getter stash per-call data between Initial and
// AllReady. It returns (frame, true) to deliver a result during AllReady,
// or (nil, false) — normal during Initial.
type Getter func(n int, reason ActivationReason, instanceState any, frameState *any, ctx Context) (FrameRef, bool)

// Context is the subset of the scheduler's per-task context a getter is
// allowed to use: request an upstream frame, fetch one already requested,
// and report an error.
type Context interface {
	RequestFrom(upstream *Node, n int)
	Fetch(upstream *Node, n int) (FrameRef, error)
	SetError(err error)
	FrameIndex() int
}

// Node is one vertex of the frame graph.
type Node struct {
	id            uint64
	Name          string
	Output        OutputInfo
	getter        Getter
	freeFn        func(instanceState any)
	FilterMode    FilterMode
	Dependencies  []Dependency
	InstanceState any
	cache         *Cache

	consumerModes []DependencyMode
}

var nextNodeID uint64

// New constructs a node, validates that its dependency set introduces no
// cycle, and applies each upstream's cache policy from the declared
// dependency modes (an upstream whose consumers all declared NoFrameReuse
// has its cache disabled; one whose sole consumer declared
// FrameReuseLastOnly is restricted to the single most recent frame).
func New(name string, output OutputInfo, getter Getter, freeFn func(any), filterMode FilterMode, deps []Dependency, instanceState any, cacheCapacity int) (*Node, error) {
	if getter == nil {
		return nil, fgerrors.NewConstructionError(name, "getter.nil", nil)
	}

	n := &Node{
		id:            atomic.AddUint64(&nextNodeID, 1),
		Name:          name,
		Output:        output,
		getter:        getter,
		freeFn:        freeFn,
		FilterMode:    filterMode,
		Dependencies:  deps,
		InstanceState: instanceState,
	}

	for _, d := range deps {
		if d.Upstream == nil {
			releaseAcquired(n)
			return nil, fgerrors.NewConstructionError(name, "dependency.nil", nil)
		}
		if err := checkAcyclic(n, d.Upstream); err != nil {
			releaseAcquired(n)
			return nil, err
		}
	}

	if cacheCapacity > 0 {
		n.cache = NewCache(cacheCapacity)
	}

	for _, d := range deps {
		d.Upstream.registerConsumer(d.Mode)
	}

	return n, nil
}

// releaseAcquired runs the node's teardown hook on construction failure so
// construction errors leak no resources (spec §7).
func releaseAcquired(n *Node) {
	if n.freeFn != nil {
		n.freeFn(n.InstanceState)
	}
}

// checkAcyclic walks from candidate upstream back toward n, failing if it
// ever reaches n — i.e. rejecting any dependency that would make n
// (directly or transitively) its own ancestor.
func checkAcyclic(n *Node, upstream *Node) error {
	visited := make(map[uint64]bool)
	var walk func(cur *Node) error
	walk = func(cur *Node) error {
		if cur.id == n.id {
			return fgerrors.NewGraphError("cycle.detected", nil)
		}
		if visited[cur.id] {
			return nil
		}
		visited[cur.id] = true
		for _, d := range cur.Dependencies {
			if err := walk(d.Upstream); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(upstream)
}

// registerConsumer folds one consumer's dependency mode into this node's
// cache policy: caching is force-disabled if every consumer has declared
// NoFrameReuse, and restricted to the single most recent frame if the sole
// consumer declared FrameReuseLastOnly.
func (n *Node) registerConsumer(mode DependencyMode) {
	n.consumerModes = append(n.consumerModes, mode)
	if n.cache == nil {
		return
	}
	n.cache.applyConsumerModes(n.consumerModes)
}

// ID returns the node's identity, stable for the life of the graph.
func (n *Node) ID() uint64 { return n.id }

// Getter returns the node's getter callback.
func (n *Node) Getter() Getter { return n.getter }

// Cache returns the node's frame cache, or nil if the node was built with
// no cache capacity. A cache disabled by consumer modes is still returned.
func (n *Node) Cache() *Cache { return n.cache }

// Free invokes the node's teardown hook (spec §6: "invokes free_fn at
// teardown").
func (n *Node) Free() {
	if n.freeFn != nil {
		n.freeFn(n.InstanceState)
	}
}
