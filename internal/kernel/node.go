package kernel

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// planeFunc computes one output plane from the corresponding source plane.
type planeFunc func(src, out *frame.VideoFrame, plane int) error

// singleInputState is the instance state shared by every kernel that reads
// exactly one input frame per output frame (spec §4.4: "output frame for
// index n depends only on input frame n").
type singleInputState struct {
	input *graph.Node
	apply planeFunc
}

// newSingleInputNode builds a StrictSpatial, Parallel node whose output
// shares its upstream's format and dimensions, applying apply to every
// plane during AllReady.
func newSingleInputNode(name string, in *graph.Node, apply planeFunc, cacheCapacity int) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "kernel.nil_input", nil)
	}
	st := &singleInputState{input: in, apply: apply}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.StrictSpatial}}
	return graph.New(name, in.Output, singleInputGetter, nil, graph.Parallel, deps, st, cacheCapacity)
}

func singleInputGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*singleInputState)

	switch reason {
	case graph.Initial:
		ctx.RequestFrom(st.input, n)
		return nil, false

	case graph.AllReady:
		f, err := ctx.Fetch(st.input, n)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		src := f.(*frame.VideoFrame)
		defer src.Release()

		out, err := frame.NewVideoFrame(src.Format(), src.Width(), src.Height(), src.Properties())
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}

		for plane := 0; plane < src.Format().NumPlanes; plane++ {
			if err := st.apply(src, out, plane); err != nil {
				ctx.SetError(err)
				out.Release()
				return nil, true
			}
		}
		return out, true

	default:
		return nil, true
	}
}
