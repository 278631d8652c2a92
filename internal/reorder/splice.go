package reorder

import (
	"fmt"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/graph"
)

type spliceState struct {
	clips  []*graph.Node
	counts []int64
}

// locate maps an output frame index to (clip index, that clip's own frame
// index), clamping to the last clip past its end the same way the filter
// this is grounded on does.
func (st *spliceState) locate(n int) (idx int, local int) {
	cum := int64(0)
	for i, c := range st.counts {
		if (int64(n) >= cum && int64(n) < cum+c) || i == len(st.counts)-1 {
			return i, n - int(cum)
		}
		cum += c
	}
	return len(st.counts) - 1, n
}

// NewSplice concatenates clips end to end. A single clip is a passthrough.
func NewSplice(name string, clips []*graph.Node, mismatch bool) (*graph.Node, error) {
	if len(clips) == 0 {
		return nil, fgerrors.NewConstructionError(name, "splice.no_clips", nil)
	}
	for _, c := range clips {
		if c == nil {
			return nil, fgerrors.NewConstructionError(name, "splice.nil_clip", nil)
		}
	}
	if len(clips) == 1 {
		return clips[0], nil
	}

	out, match, mismatchAt := findCommonOutputInfo(clips)
	if !match && !mismatch {
		return nil, fgerrors.NewConstructionError(name, "splice.format_mismatch", fmt.Errorf("clip #%d differs", mismatchAt))
	}

	counts := make([]int64, len(clips))
	var total int64
	anyUnbounded := false
	for i, c := range clips {
		if c.Output.NumFrames < 0 {
			anyUnbounded = true
		}
		counts[i] = c.Output.NumFrames
		total += c.Output.NumFrames
	}
	if anyUnbounded {
		total = -1
	}
	out.NumFrames = total

	st := &spliceState{clips: clips, counts: counts}
	deps := make([]graph.Dependency, len(clips))
	for i, c := range clips {
		deps[i] = graph.Dependency{Upstream: c, Mode: graph.NoFrameReuse}
	}
	return graph.New(name, out, spliceGetter, nil, graph.Parallel, deps, st, 0)
}

func spliceGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*spliceState)

	switch reason {
	case graph.Initial:
		idx, local := st.locate(n)
		*frameState = [2]int{idx, local}
		ctx.RequestFrom(st.clips[idx], local)
		return nil, false

	case graph.AllReady:
		pair := (*frameState).([2]int)
		f, err := ctx.Fetch(st.clips[pair[0]], pair[1])
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		return f, true

	default:
		return nil, true
	}
}
