package expr

import (
	"encoding/binary"
	"math"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// exprState is the per-node instance state: one compiled program per output
// plane (nil meaning "passthrough this plane from the first input"), plus
// the static output shape needed to build each result frame.
type exprState struct {
	inputs   []*graph.Node
	programs []*Program
	outFmt   format.VideoFormat
	width    int
	height   int
}

// NewExpr builds a frame-graph node that evaluates one compiled postfix
// expression per output plane over a list of input clips (spec §4.3). All
// inputs must already share the output's per-plane dimensions; Expr does no
// resampling of its own. An empty expression string for a plane means copy
// that plane from the first input verbatim rather than evaluate anything.
func NewExpr(name string, inputs []*graph.Node, exprPerPlane []string, outFmt format.VideoFormat, width, height, cacheCapacity int) (*graph.Node, error) {
	if len(inputs) == 0 {
		return nil, fgerrors.NewConstructionError(name, "expr.no_inputs", nil)
	}
	if len(exprPerPlane) != outFmt.NumPlanes {
		return nil, fgerrors.NewConstructionError(name, "expr.plane_count_mismatch", nil)
	}

	st := &exprState{inputs: inputs, outFmt: outFmt, width: width, height: height}
	st.programs = make([]*Program, outFmt.NumPlanes)
	for i, src := range exprPerPlane {
		if src == "" {
			continue
		}
		prog, err := Compile(src, len(inputs))
		if err != nil {
			return nil, fgerrors.NewConstructionError(name, "expr.parse", err)
		}
		st.programs[i] = prog
	}

	deps := make([]graph.Dependency, len(inputs))
	for i, in := range inputs {
		deps[i] = graph.Dependency{Upstream: in, Mode: graph.StrictSpatial}
	}

	out := graph.OutputInfo{VideoFormat: &outFmt, Width: width, Height: height, NumFrames: -1}
	return graph.New(name, out, exprGetter, nil, graph.Parallel, deps, st, cacheCapacity)
}

// exprGetter implements the two-phase protocol (spec §6): Initial requests
// every input clip at frame n; AllReady evaluates each output plane and
// returns the assembled frame.
func exprGetter(n int, reason graph.ActivationReason, instanceState any, frameState *any, ctx graph.Context) (graph.FrameRef, bool) {
	st := instanceState.(*exprState)

	switch reason {
	case graph.Initial:
		for _, in := range st.inputs {
			ctx.RequestFrom(in, n)
		}
		return nil, false

	case graph.AllReady:
		srcFrames := make([]*frame.VideoFrame, len(st.inputs))
		for i, in := range st.inputs {
			f, err := ctx.Fetch(in, n)
			if err != nil {
				ctx.SetError(err)
				return nil, true
			}
			srcFrames[i] = f.(*frame.VideoFrame)
		}
		defer func() {
			for _, f := range srcFrames {
				f.Release()
			}
		}()

		out, err := frame.NewVideoFrame(st.outFmt, st.width, st.height, srcFrames[0].Properties())
		if err != nil {
			ctx.SetError(fgerrors.NewRuntimeError("Expr", n, -1, "expr.alloc", err))
			return nil, true
		}

		for plane := 0; plane < st.outFmt.NumPlanes; plane++ {
			if err := evalPlane(st, srcFrames, out, plane); err != nil {
				ctx.SetError(fgerrors.NewRuntimeError("Expr", n, plane, "expr.eval", err))
				out.Release()
				return nil, true
			}
		}
		return out, true

	default:
		return nil, true
	}
}

// evalPlane fills one output plane, either by verbatim copy (empty
// expression) or by running that plane's compiled program over every pixel.
func evalPlane(st *exprState, srcFrames []*frame.VideoFrame, out *frame.VideoFrame, plane int) error {
	pw, ph := out.PlaneWidth(plane), out.PlaneHeight(plane)

	if st.programs[plane] == nil {
		return copyPlaneVerbatim(srcFrames[0], out, plane, pw, ph)
	}

	prog := st.programs[plane]
	inputs := make([]float64, len(srcFrames))
	dst := out.GetWritePtr(plane)
	dstStride := out.Stride(plane)
	outBps := st.outFmt.BytesPerSample
	outSt := st.outFmt.SampleType
	outBits := st.outFmt.BitsPerSample

	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			for i, src := range srcFrames {
				inputs[i] = readSample(src, plane, x, y)
			}
			v := prog.Eval(inputs)
			writeSample(dst, dstStride, x, y, outBps, outSt, outBits, v)
		}
	}
	return nil
}

func copyPlaneVerbatim(src *frame.VideoFrame, out *frame.VideoFrame, plane, pw, ph int) error {
	if src.Format().BytesPerSample != out.Format().BytesPerSample || src.PlaneWidth(plane) != pw || src.PlaneHeight(plane) != ph {
		return fgerrors.NewGraphError("expr.passthrough_shape_mismatch", nil)
	}
	dst := out.GetWritePtr(plane)
	srcPtr := src.GetReadPtr(plane)
	bps := out.Format().BytesPerSample
	dstStride := out.Stride(plane)
	srcStride := src.Stride(plane)
	rowBytes := pw * bps
	for y := 0; y < ph; y++ {
		copy(dst[y*dstStride:y*dstStride+rowBytes], srcPtr[y*srcStride:y*srcStride+rowBytes])
	}
	return nil
}

// readSample loads one sample at (x, y) from plane, promoted to float64,
// per its format's sample type and width (spec §4.3: "samples are promoted
// to... arithmetic on read").
func readSample(f *frame.VideoFrame, plane, x, y int) float64 {
	p := f.GetReadPtr(plane)
	fmtInfo := f.Format()
	stride := f.Stride(plane)
	off := y*stride + x*fmtInfo.BytesPerSample

	switch {
	case fmtInfo.SampleType == format.Integer && fmtInfo.BytesPerSample == 1:
		return float64(p[off])
	case fmtInfo.SampleType == format.Integer && fmtInfo.BytesPerSample == 2:
		return float64(binary.LittleEndian.Uint16(p[off : off+2]))
	case fmtInfo.SampleType == format.Float && fmtInfo.BytesPerSample == 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p[off : off+4])))
	default:
		return 0
	}
}

// writeSample stores v at (x, y) in an output plane, saturating to the
// format's representable range for integer outputs (spec §4.3: "results
// are clamped to [0, (1<<bits)-1]... for integer output formats").
func writeSample(dst []byte, stride, x, y, bps int, st format.SampleType, bits int, v float64) {
	off := y*stride + x*bps

	switch {
	case st == format.Integer && bps == 1:
		dst[off] = clampToByte(v, 255)
	case st == format.Integer && bps == 2:
		binary.LittleEndian.PutUint16(dst[off:off+2], clampToUint16(v, (1<<uint(bits))-1))
	case st == format.Float && bps == 4:
		binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(float32(v)))
	}
}

func clampToByte(v, max float64) byte {
	if v < 0 {
		return 0
	}
	if v > max {
		return byte(max)
	}
	return byte(v + 0.5)
}

func clampToUint16(v float64, max int) uint16 {
	if v < 0 {
		return 0
	}
	if v > float64(max) {
		return uint16(max)
	}
	return uint16(v + 0.5)
}
