// Package kernel implements the generic per-plane pixel kernels: box blur,
// convolution, the min/max/median/deflate/inflate morphology family, edge
// detection (Prewitt/Sobel), and merge/maskedmerge. Every kernel is a pure
// StrictSpatial transform of input frame n into output frame n (spec §4.4)
// exposed both as a standalone per-plane function and as a graph.Node
// constructor, following the same two-phase getter wiring internal/expr
// uses for its own node.go.
package kernel

import (
	"encoding/binary"
	"math"

	"github.com/alxayo/framegraph/internal/format"
	"github.com/alxayo/framegraph/internal/frame"
)

// readSample loads one sample at (x, y) from plane, promoted to float64,
// clamping the coordinates to the plane's bounds so callers can address a
// virtual neighborhood that extends past the edge (spec §4.4: "out-of-
// bounds neighbors use the nearest in-bound pixel").
func readSample(f *frame.VideoFrame, plane, x, y int) float64 {
	x = clampCoord(x, f.PlaneWidth(plane))
	y = clampCoord(y, f.PlaneHeight(plane))

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

func clampCoord(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}

// writeSample stores v at (x, y) in an output plane, saturating to the
// format's representable range for integer outputs.
func writeSample(dst []byte, stride, x, y, bps int, st format.SampleType, bits int, v float64) {
	off := y*stride + x*bps

	switch {
	case st == format.Integer && bps == 1:
		dst[off] = clampToByte(v)
	case st == format.Integer && bps == 2:
		binary.LittleEndian.PutUint16(dst[off:off+2], clampToUint16(v, (1<<uint(bits))-1))
	case st == format.Float && bps == 4:
		binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(float32(v)))
	}
}

func clampToByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
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

// sampleMax returns the largest representable value for plane samples of
// the given format, used to normalize a mask plane to [0,1].
func sampleMax(f format.VideoFormat) float64 {
	if f.SampleType == format.Float {
		return 1
	}
	return float64((1 << uint(f.BitsPerSample)) - 1)
}
