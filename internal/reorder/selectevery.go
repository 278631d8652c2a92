package reorder

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// selectEveryState carries the resolved (non-negative) offset list, the
// cycle length, and whether to rescale _DurationNum/_DurationDen.
type selectEveryState struct {
	input          *graph.Node
	cycle          int
	offsets        []int
	modifyDuration bool
}

// NewSelectEvery keeps, out of every group of cycle consecutive input
// frames, the frames at the given offsets. A negative offset means "from
// the end of the cycle" (offset < 0 -> cycle + offset), carried forward
// from the filter this is grounded on.
func NewSelectEvery(name string, in *graph.Node, cycle int, offsets []int, modifyDuration bool) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "selectevery.nil_input", nil)
	}
	if cycle <= 1 {
		return nil, fgerrors.NewConstructionError(name, "selectevery.cycle.invalid", nil)
	}
	if len(offsets) == 0 {
		return nil, fgerrors.NewConstructionError(name, "selectevery.offsets.empty", nil)
	}

	resolved := make([]int, len(offsets))
	for i, o := range offsets {
		r := o
		if r < 0 {
			r = cycle + r
		}
		if r < 0 || r >= cycle {
			return nil, fgerrors.NewConstructionError(name, "selectevery.offset.range", nil)
		}
		resolved[i] = r
	}

	total := in.Output.NumFrames
	out := in.Output
	if total >= 0 {
		num := int64(len(resolved))
		outFrames := (total / int64(cycle)) * num
		rem := total % int64(cycle)
		for _, o := range resolved {
			if int64(o) < rem {
				outFrames++
			}
		}
		if outFrames == 0 {
			return nil, fgerrors.NewConstructionError(name, "selectevery.no_frames", nil)
		}
		out.NumFrames = outFrames
	}

	st := &selectEveryState{input: in, cycle: cycle, offsets: resolved, modifyDuration: modifyDuration}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.NoFrameReuse}}
	return graph.New(name, out, selectEveryGetter, nil, graph.Parallel, deps, st, 0)
}

func selectEveryGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*selectEveryState)
	num := len(st.offsets)

	switch reason {
	case graph.Initial:
		src := (n/num)*st.cycle + st.offsets[n%num]
		*frameState = src
		ctx.RequestFrom(st.input, src)
		return nil, false

	case graph.AllReady:
		src := (*frameState).(int)
		f, err := ctx.Fetch(st.input, src)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		if !st.modifyDuration {
			return f, true
		}
		vf := f.(*frame.VideoFrame)
		out, err := shareFrameWithScaledDuration(vf, int64(st.cycle), int64(num))
		vf.Release()
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		return out, true

	default:
		return nil, true
	}
}
