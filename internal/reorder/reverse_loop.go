package reorder

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/graph"
)

// NewReverse builds a node that plays in reversed a clip whose length must
// be known in advance (a Reverse of an unbounded clip has no defined
// output, so construction fails rather than degrade to identity).
func NewReverse(name string, in *graph.Node) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "reverse.nil_input", nil)
	}
	total := in.Output.NumFrames
	if total < 0 {
		return nil, fgerrors.NewConstructionError(name, "reverse.length_unknown", nil)
	}

	st := &remapState{input: in, remap: func(n int) int {
		idx := int(total) - n - 1
		if idx < 0 {
			idx = 0
		}
		return idx
	}}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.NoFrameReuse}}
	return graph.New(name, in.Output, remapGetter, nil, graph.Parallel, deps, st, 0)
}

// NewLoop repeats in times times back to back. times == 0 loops forever
// (an unbounded output); times == 1 is a no-op passthrough.
func NewLoop(name string, in *graph.Node, times int) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "loop.nil_input", nil)
	}
	if times < 0 {
		return nil, fgerrors.NewConstructionError(name, "loop.negative_times", nil)
	}
	if times == 1 {
		return in, nil
	}

	total := in.Output.NumFrames
	out := in.Output
	switch {
	case times == 0:
		out.NumFrames = -1
	case total < 0:
		out.NumFrames = -1
	default:
		out.NumFrames = total * int64(times)
	}

	st := &remapState{input: in, remap: func(n int) int {
		if total <= 0 {
			return n
		}
		return n % int(total)
	}}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.General}}
	return graph.New(name, out, remapGetter, nil, graph.Parallel, deps, st, 0)
}
