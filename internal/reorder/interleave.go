package reorder

import (
	"fmt"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

type interleaveState struct {
	clips          []*graph.Node
	modifyDuration bool
}

// NewInterleave weaves clips frame-by-frame: output frame n comes from
// clips[n % len(clips)] at its own frame n / len(clips). A single clip is a
// passthrough. mismatch relaxes the format/dimension equality check; extend
// repeats each clip to the longest input's length rather than the
// avisynth-style length formula used otherwise.
func NewInterleave(name string, clips []*graph.Node, mismatch, extend, modifyDuration bool) (*graph.Node, error) {
	if len(clips) == 0 {
		return nil, fgerrors.NewConstructionError(name, "interleave.no_clips", nil)
	}
	for _, c := range clips {
		if c == nil {
			return nil, fgerrors.NewConstructionError(name, "interleave.nil_clip", nil)
		}
	}
	if len(clips) == 1 {
		return clips[0], nil
	}

	out, match, mismatchAt := findCommonOutputInfo(clips)
	if !match && !mismatch {
		return nil, fgerrors.NewConstructionError(name, "interleave.format_mismatch", fmt.Errorf("clip #%d differs", mismatchAt))
	}

	numClips := int64(len(clips))
	anyUnbounded := false
	for _, c := range clips {
		if c.Output.NumFrames < 0 {
			anyUnbounded = true
		}
	}

	switch {
	case anyUnbounded:
		out.NumFrames = -1
	case extend:
		max := clips[0].Output.NumFrames
		for _, c := range clips {
			if c.Output.NumFrames > max {
				max = c.Output.NumFrames
			}
		}
		out.NumFrames = max * numClips
	default:
		// the same length formula as a well-known avisynth-compatible
		// interleave: the tail of the longest clip still gets visited.
		total := (clips[0].Output.NumFrames-1)*numClips + 1
		for i, c := range clips {
			v := (c.Output.NumFrames-1)*numClips + int64(i) + 1
			if v > total {
				total = v
			}
		}
		out.NumFrames = total
	}

	st := &interleaveState{clips: clips, modifyDuration: modifyDuration}
	deps := make([]graph.Dependency, len(clips))
	for i, c := range clips {
		mode := graph.General
		if out.NumFrames >= 0 && out.NumFrames <= c.Output.NumFrames {
			mode = graph.StrictSpatial
		}
		deps[i] = graph.Dependency{Upstream: c, Mode: mode}
	}
	return graph.New(name, out, interleaveGetter, nil, graph.Parallel, deps, st, 0)
}

func interleaveGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*interleaveState)
	num := len(st.clips)
	idx := n % num
	upN := n / num

	switch reason {
	case graph.Initial:
		ctx.RequestFrom(st.clips[idx], upN)
		return nil, false

	case graph.AllReady:
		f, err := ctx.Fetch(st.clips[idx], upN)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		if !st.modifyDuration {
			return f, true
		}
		vf := f.(*frame.VideoFrame)
		out, err := shareFrameWithScaledDuration(vf, 1, int64(num))
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
