package audio

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

type mixAudioState struct {
	clip1, clip2 *graph.Node
}

// NewMixAudio averages two stereo clips sample-for-sample
// (audiofilter.cpp's MixAudioGetAudio). Non-stereo inputs are rejected:
// implemented exactly as specified, not generalized to arbitrary channel
// counts.
func NewMixAudio(name string, clip1, clip2 *graph.Node) (*graph.Node, error) {
	if clip1 == nil || clip2 == nil {
		return nil, fgerrors.NewConstructionError(name, "mixaudio.nil_input", nil)
	}
	if !clip1.Output.IsAudio() || !clip2.Output.IsAudio() {
		return nil, fgerrors.NewConstructionError(name, "mixaudio.not_audio", nil)
	}
	af1, af2 := *clip1.Output.AudioFormat, *clip2.Output.AudioFormat
	if !af1.Equal(af2) {
		return nil, fgerrors.NewConstructionError(name, "mixaudio.format_mismatch", nil)
	}
	if af1.NumChannels() != 2 {
		return nil, fgerrors.NewConstructionError(name, "mixaudio.not_stereo", nil)
	}

	total1, total2 := clip1.Output.NumFrames, clip2.Output.NumFrames
	var total int64
	switch {
	case total1 < 0 && total2 < 0:
		total = -1
	case total1 < 0:
		total = total2
	case total2 < 0:
		total = total1
	case total1 < total2:
		total = total1
	default:
		total = total2
	}

	out := clip1.Output
	out.NumFrames = total

	st := &mixAudioState{clip1: clip1, clip2: clip2}
	deps := []graph.Dependency{
		{Upstream: clip1, Mode: graph.StrictSpatial},
		{Upstream: clip2, Mode: graph.StrictSpatial},
	}
	return graph.New(name, out, mixAudioGetter, nil, graph.Parallel, deps, st, 0)
}

func mixAudioGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*mixAudioState)

	switch reason {
	case graph.Initial:
		ctx.RequestFrom(st.clip1, n)
		ctx.RequestFrom(st.clip2, n)
		return nil, false

	case graph.AllReady:
		r1, err := ctx.Fetch(st.clip1, n)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		a1 := r1.(*frame.AudioFrame)
		defer a1.Release()

		r2, err := ctx.Fetch(st.clip2, n)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		a2 := r2.(*frame.AudioFrame)
		defer a2.Release()

		numSamples := a1.NumSamples()
		if a2.NumSamples() < numSamples {
			numSamples = a2.NumSamples()
		}

		out, err := frame.NewAudioFrame(a1.Format(), numSamples, a1.Properties())
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		for c := 0; c < a1.Format().NumChannels(); c++ {
			mixChannel(out.GetWritePtr(c), a1.GetReadPtr(c), a2.GetReadPtr(c), numSamples, a1.Format())
		}
		return out, true

	default:
		return nil, true
	}
}
