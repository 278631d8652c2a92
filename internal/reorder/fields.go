package reorder

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

type separateFieldsState struct {
	input          *graph.Node
	tff            int // -1 unknown, 0 bottom-field-first, 1 top-field-first
	modifyDuration bool
	outFmt         format.VideoFormat
	outWidth       int
	outHeight      int
}

// NewSeparateFields splits each input frame into its two fields, doubling
// the frame count and halving the height. tff, if non-nil, gives the
// default field order; a frame's own _FieldBased property (1 = bottom
// first, 2 = top first) overrides it. Output frames carry _Field (0 =
// bottom, 1 = top) and have _FieldBased deleted.
func NewSeparateFields(name string, in *graph.Node, tff *bool, modifyDuration bool) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "separatefields.nil_input", nil)
	}
	if in.Output.VideoFormat == nil {
		return nil, fgerrors.NewConstructionError(name, "separatefields.format_unknown", nil)
	}
	f := *in.Output.VideoFormat
	if in.Output.Height%(1<<uint(f.SubSamplingH+1)) != 0 {
		return nil, fgerrors.NewConstructionError(name, "separatefields.height_not_mod2", nil)
	}

	tffVal := -1
	if tff != nil {
		if *tff {
			tffVal = 1
		} else {
			tffVal = 0
		}
	}

	total := in.Output.NumFrames
	out := in.Output
	out.Height = in.Output.Height / 2
	if total >= 0 {
		out.NumFrames = total * 2
	}

	st := &separateFieldsState{
		input: in, tff: tffVal, modifyDuration: modifyDuration,
		outFmt: f, outWidth: in.Output.Width, outHeight: out.Height,
	}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.StrictSpatial}}
	return graph.New(name, out, separateFieldsGetter, nil, graph.Parallel, deps, st, 0)
}

func separateFieldsGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*separateFieldsState)

	switch reason {
	case graph.Initial:
		ctx.RequestFrom(st.input, n/2)
		return nil, false

	case graph.AllReady:
		fr, err := ctx.Fetch(st.input, n/2)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		src := fr.(*frame.VideoFrame)
		defer src.Release()

		effectiveTFF := st.tff
		if fb, err := src.Properties().GetInt(frame.PropFieldBased, 0); err == nil {
			if fb == 1 {
				effectiveTFF = 0
			} else if fb == 2 {
				effectiveTFF = 1
			}
		}
		if effectiveTFF == -1 {
			ctx.SetError(fgerrors.NewRuntimeError("SeparateFields", n, -1, "separatefields.no_field_order", nil))
			return nil, true
		}

		out, err := frame.NewVideoFrame(st.outFmt, st.outWidth, st.outHeight, src.Properties())
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}

		fieldParity := (n & 1) ^ effectiveTFF
		for plane := 0; plane < st.outFmt.NumPlanes; plane++ {
			srcStride := src.Stride(plane)
			srcPtr := src.GetReadPtr(plane)
			rowOffset := 0
			if fieldParity == 0 {
				rowOffset = srcStride
			}
			dst := out.GetWritePtr(plane)
			dstStride := out.Stride(plane)
			rowBytes := out.PlaneWidth(plane) * st.outFmt.BytesPerSample
			for y := 0; y < out.PlaneHeight(plane); y++ {
				srcRow := rowOffset + y*2*srcStride
				copy(dst[y*dstStride:y*dstStride+rowBytes], srcPtr[srcRow:srcRow+rowBytes])
			}
		}

		out.Properties().SetInt(frame.PropField, int64(fieldParity), frame.Replace)
		out.Properties().Delete(frame.PropFieldBased)
		if st.modifyDuration {
			scaleDuration(out.Properties(), 1, 2)
		}
		return out, true

	default:
		return nil, true
	}
}

type doubleWeaveState struct {
	input     *graph.Node
	tff       int
	outFmt    format.VideoFormat
	outWidth  int
	outHeight int
}

// NewDoubleWeave is SeparateFields's inverse: it weaves frame n and n+1 of
// a field-separated clip back into one full-height frame. Field order
// comes from each frame's _Field property when both are present and
// consistent, falling back to tff.
func NewDoubleWeave(name string, in *graph.Node, tff *bool) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "doubleweave.nil_input", nil)
	}
	if in.Output.VideoFormat == nil {
		return nil, fgerrors.NewConstructionError(name, "doubleweave.format_unknown", nil)
	}
	f := *in.Output.VideoFormat

	tffVal := -1
	if tff != nil {
		if *tff {
			tffVal = 1
		} else {
			tffVal = 0
		}
	}

	out := in.Output
	out.Height = in.Output.Height * 2

	st := &doubleWeaveState{input: in, tff: tffVal, outFmt: f, outWidth: in.Output.Width, outHeight: out.Height}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.StrictSpatial}}
	return graph.New(name, out, doubleWeaveGetter, nil, graph.Parallel, deps, st, 0)
}

func fieldOf(f *frame.VideoFrame) (int64, bool) {
	v, err := f.Properties().GetInt(frame.PropField, 0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func doubleWeaveGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*doubleWeaveState)

	switch reason {
	case graph.Initial:
		ctx.RequestFrom(st.input, n)
		ctx.RequestFrom(st.input, n+1)
		return nil, false

	case graph.AllReady:
		fa, err := ctx.Fetch(st.input, n)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		src1 := fa.(*frame.VideoFrame)
		defer src1.Release()

		fb, err := ctx.Fetch(st.input, n+1)
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}
		src2 := fb.(*frame.VideoFrame)
		defer src2.Release()

		field1, ok1 := fieldOf(src1)
		field2, ok2 := fieldOf(src2)

		var top, bottom *frame.VideoFrame
		topIsFirst := false
		switch {
		case ok1 && ok2 && field1 == 0 && field2 == 1:
			bottom, top = src1, src2
		case ok1 && ok2 && field1 == 1 && field2 == 0:
			top, bottom = src1, src2
			topIsFirst = true
		case st.tff != -1:
			par := (n & 1) ^ st.tff
			if par != 0 {
				top, bottom = src1, src2
				topIsFirst = true
			} else {
				top, bottom = src2, src1
			}
		default:
			ctx.SetError(fgerrors.NewRuntimeError("DoubleWeave", n, -1, "doubleweave.no_field_order", nil))
			return nil, true
		}

		out, err := frame.NewVideoFrame(st.outFmt, st.outWidth, st.outHeight, src1.Properties())
		if err != nil {
			ctx.SetError(err)
			return nil, true
		}

		for plane := 0; plane < st.outFmt.NumPlanes; plane++ {
			topPtr := top.GetReadPtr(plane)
			topStride := top.Stride(plane)
			botPtr := bottom.GetReadPtr(plane)
			botStride := bottom.Stride(plane)
			dst := out.GetWritePtr(plane)
			dstStride := out.Stride(plane)
			rowBytes := top.PlaneWidth(plane) * st.outFmt.BytesPerSample
			h := top.PlaneHeight(plane)
			for y := 0; y < h; y++ {
				copy(dst[(2*y)*dstStride:(2*y)*dstStride+rowBytes], topPtr[y*topStride:y*topStride+rowBytes])
				copy(dst[(2*y+1)*dstStride:(2*y+1)*dstStride+rowBytes], botPtr[y*botStride:y*botStride+rowBytes])
			}
		}

		out.Properties().Delete(frame.PropField)
		fieldBased := int64(1)
		if topIsFirst {
			fieldBased = 2
		}
		out.Properties().SetInt(frame.PropFieldBased, fieldBased, frame.Replace)
		return out, true

	default:
		return nil, true
	}
}
