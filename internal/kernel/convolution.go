package kernel

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// NewConvolution builds a 3x3, 5x5, or 1xN (odd length 3..25) convolution
// node (spec §4.4). divisor, if non-nil, overrides the default of the
// matrix's element sum (or 1 if that sum is zero). When saturate is false,
// a negative result is reflected to its absolute value instead of being
// clamped to zero.
func NewConvolution(name string, in *graph.Node, matrix []float64, mw, mh int, divisor *float64, bias float64, saturate bool) (*graph.Node, error) {
	if len(matrix) != mw*mh {
		return nil, fgerrors.NewConstructionError(name, "convolution.matrix_size", nil)
	}
	if err := validateConvolutionShape(mw, mh); err != nil {
		return nil, fgerrors.NewConstructionError(name, "convolution.shape", err)
	}

	d := defaultDivisor(matrix)
	if divisor != nil {
		d = *divisor
	}

	apply := func(src, out *frame.VideoFrame, plane int) error {
		return convolvePlane(src, out, plane, matrix, mw, mh, d, bias, saturate)
	}
	return newSingleInputNode(name, in, apply, 0)
}

func validateConvolutionShape(mw, mh int) error {
	if mw == 1 || mh == 1 {
		n := mw
		if mh > n {
			n = mh
		}
		if n < 3 || n > 25 || n%2 == 0 {
			return fgerrors.NewGraphError("convolution.strip_length", nil)
		}
		return nil
	}
	if mw != mh || (mw != 3 && mw != 5) {
		return fgerrors.NewGraphError("convolution.square_size", nil)
	}
	return nil
}

func defaultDivisor(matrix []float64) float64 {
	sum := 0.0
	for _, m := range matrix {
		sum += m
	}
	if sum == 0 {
		return 1
	}
	return sum
}

func convolvePlane(src, out *frame.VideoFrame, plane int, matrix []float64, mw, mh int, divisor, bias float64, saturate bool) error {
	pw, ph := src.PlaneWidth(plane), src.PlaneHeight(plane)
	dst := out.GetWritePtr(plane)
	stride := out.Stride(plane)
	outFmt := out.Format()
	cx, cy := mw/2, mh/2

	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			sum := 0.0
			idx := 0
			for ky := 0; ky < mh; ky++ {
				for kx := 0; kx < mw; kx++ {
					sum += matrix[idx] * readSample(src, plane, x+kx-cx, y+ky-cy)
					idx++
				}
			}
			v := sum/divisor + bias
			if !saturate && v < 0 {
				v = -v
			}
			writeSample(dst, stride, x, y, outFmt.BytesPerSample, outFmt.SampleType, outFmt.BitsPerSample, v)
		}
	}
	return nil
}
