package audio

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

type audioTrimState struct {
	input *graph.Node
	first int64
	total int64 // output sample count
}

// NewAudioTrim keeps samples [first, first+length) of an audio clip,
// addressed in samples rather than frames (reorder.NewTrim's video sibling).
// Exactly one of last/length may be given; neither means "trim to the end".
func NewAudioTrim(name string, in *graph.Node, first int64, last, length *int64) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.nil_input", nil)
	}
	if !in.Output.IsAudio() {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.not_audio", nil)
	}
	if last != nil && length != nil {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.last_and_length", nil)
	}
	if first < 0 {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.negative_first", nil)
	}
	if last != nil && *last < first {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.last_before_first", nil)
	}
	if length != nil && *length < 1 {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.length_too_small", nil)
	}

	total := in.Output.NumFrames
	var trimLen int64
	switch {
	case last != nil:
		trimLen = *last - first + 1
	case length != nil:
		trimLen = *length
	default:
		if total < 0 {
			return nil, fgerrors.NewConstructionError(name, "audiotrim.unknown_length", nil)
		}
		trimLen = total - first
	}
	if total >= 0 && first+trimLen > total {
		return nil, fgerrors.NewConstructionError(name, "audiotrim.out_of_range", nil)
	}

	if first == 0 && last == nil && length == nil {
		return in, nil
	}
	if total >= 0 && first == 0 && trimLen == total {
		return in, nil
	}

	out := in.Output
	out.NumFrames = trimLen

	st := &audioTrimState{input: in, first: first, total: trimLen}
	// Output frame n maps to an upstream index shifted by first/3072, and
	// a sample range spanning a frame boundary pulls a second, later
	// upstream index too — never just n itself, so this is General, not
	// StrictSpatial.
	deps := []graph.Dependency{{Upstream: in, Mode: graph.General}}
	return graph.New(name, out, audioTrimGetter, nil, graph.Parallel, deps, st, 0)
}

type audioTrimFrameState struct {
	outStart             int64
	thisCount            int
	frameIdx0, frameIdx1 int64
	sameFrame            bool
}

func audioTrimGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*audioTrimState)

	switch reason {
	case graph.Initial:
		outStart := st.first + int64(n)*format.AudioFrameSamples
		thisCount := int64(format.AudioFrameSamples)
		if remaining := st.total - int64(n)*format.AudioFrameSamples; remaining < thisCount {
			thisCount = remaining
		}
		frameIdx0, _ := frame.FrameIndexForSample(outStart)
		frameIdx1, _ := frame.FrameIndexForSample(outStart + thisCount - 1)

		fs := audioTrimFrameState{
			outStart:  outStart,
			thisCount: int(thisCount),
			frameIdx0: frameIdx0,
			frameIdx1: frameIdx1,
			sameFrame: frameIdx0 == frameIdx1,
		}
		*frameState = fs
		ctx.RequestFrom(st.input, int(frameIdx0))
		if !fs.sameFrame {
			ctx.RequestFrom(st.input, int(frameIdx1))
		}
		return nil, false

	case graph.AllReady:
		fs := (*frameState).(audioTrimFrameState)

		f0, err := ctx.Fetch(st.input, int(fs.frameIdx0))
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		src0 := f0.(*frame.AudioFrame)
		defer src0.Release()

		var src1 *frame.AudioFrame
		if !fs.sameFrame {
			f1, err := ctx.Fetch(st.input, int(fs.frameIdx1))
			if err != nil {
				ctx.SetError(err)
				return nil, true
			}
			src1 = f1.(*frame.AudioFrame)
			defer src1.Release()
		}

		fmtInfo := src0.Format()
		bps := fmtInfo.BytesPerSample()
		_, offset0 := frame.FrameIndexForSample(fs.outStart)

		out, err := frame.NewAudioFrame(fmtInfo, fs.thisCount, src0.Properties())
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}

		splitAt := fs.thisCount
		if !fs.sameFrame {
			splitAt = format.AudioFrameSamples - offset0
		}
		for c := 0; c < fmtInfo.NumChannels(); c++ {
			dst := out.GetWritePtr(c)
			src0Ptr := src0.GetReadPtr(c)
			copy(dst[:splitAt*bps], src0Ptr[offset0*bps:offset0*bps+splitAt*bps])
			if splitAt < fs.thisCount {
				src1Ptr := src1.GetReadPtr(c)
				copy(dst[splitAt*bps:fs.thisCount*bps], src1Ptr[:(fs.thisCount-splitAt)*bps])
			}
		}
		return out, true

	default:
		return nil, true
	}
}
