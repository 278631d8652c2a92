// Package reorder implements pure index-remapping filters: Trim, Reverse,
// Loop, SelectEvery, Interleave, Splice, DuplicateFrames, DeleteFrames,
// FreezeFrames, SeparateFields, DoubleWeave. Most of these compute no new
// pixel data at all — the getter works out an upstream frame index during
// Initial and hands that frame back verbatim during AllReady, possibly with
// a property rewrite. SeparateFields and DoubleWeave are the exceptions:
// they reshuffle existing rows into a different frame shape rather than
// filter them.
package reorder

import (
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// remapState is the instance state shared by every filter that requests
// exactly one upstream frame at a computed index and returns it verbatim,
// with no property rewrite (Trim, Reverse, Loop, DuplicateFrames,
// DeleteFrames, FreezeFrames).
type remapState struct {
	input *graph.Node
	remap func(n int) int
}

func remapGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*remapState)

	switch reason {
	case graph.Initial:
		src := st.remap(n)
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
		return f, true

	default:
		return nil, true
	}
}

// findCommonOutputInfo intersects a set of clips' static output info the
// way Splice/Interleave do: width/height/format fall back to "unknown" the
// moment any clip disagrees, and the combined frame count is the max across
// all clips. Framerate is not modeled here — graph.OutputInfo carries no
// FPS field — so mismatch detection covers format and dimensions only.
func findCommonOutputInfo(nodes []*graph.Node) (out graph.OutputInfo, match bool, mismatchAt int) {
	out = nodes[0].Output
	match = true
	for i := 1; i < len(nodes); i++ {
		vi := nodes[i].Output
		if out.Width != vi.Width || out.Height != vi.Height {
			out.Width, out.Height = 0, 0
			match = false
			if mismatchAt == 0 {
				mismatchAt = i
			}
		}
		if out.VideoFormat == nil || vi.VideoFormat == nil || !out.VideoFormat.Equal(*vi.VideoFormat) {
			out.VideoFormat = nil
			match = false
			if mismatchAt == 0 {
				mismatchAt = i
			}
		}
		if out.NumFrames < 0 || vi.NumFrames < 0 {
			out.NumFrames = -1
		} else if out.NumFrames < vi.NumFrames {
			out.NumFrames = vi.NumFrames
		}
	}
	return out, match, mismatchAt
}

// shareFrameWithScaledDuration builds a new frame that aliases src's pixel
// planes (no pixel copy) but owns an independent, mutable property map, then
// scales _DurationNum/_DurationDen by mulNum/mulDen on that copy. Used by
// Interleave and SelectEvery when modify_duration is set, since src's
// property map may be cached and shared with other readers.
func shareFrameWithScaledDuration(src *frame.VideoFrame, mulNum, mulDen int64) (*frame.VideoFrame, error) {
	numPlanes := src.Format().NumPlanes
	srcFrames := make([]*frame.VideoFrame, numPlanes)
	srcPlanes := make([]int, numPlanes)
	for p := range srcFrames {
		srcFrames[p] = src
		srcPlanes[p] = p
	}
	out, err := frame.NewVideoFrame2(src.Format(), src.Width(), src.Height(), srcFrames, srcPlanes, src.Properties())
	if err != nil {
		return nil, err
	}
	scaleDuration(out.Properties(), mulNum, mulDen)
	return out, nil
}

// scaleDuration multiplies _DurationNum/_DurationDen by mulNum/mulDen,
// reduced by their gcd, leaving the properties untouched if either key is
// absent (spec §4.5: duration numerator/denominator scaled by cycle/rate
// changes).
func scaleDuration(props *frame.PropertyMap, mulNum, mulDen int64) {
	num, errN := props.GetInt(frame.PropDurationNum, 0)
	den, errD := props.GetInt(frame.PropDurationDen, 0)
	if errN != nil || errD != nil {
		return
	}
	num *= mulNum
	den *= mulDen
	if g := gcd(num, den); g > 1 {
		num /= g
		den /= g
	}
	props.SetInt(frame.PropDurationNum, num, frame.Replace)
	props.SetInt(frame.PropDurationDen, den, frame.Replace)
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
