package kernel

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// NewBoxBlur builds a separable box blur node: a horizontal pass with
// radius radiusH followed by a vertical pass with radius radiusV (spec
// §4.4), implemented as horizontal-blur / transpose / horizontal-blur /
// transpose-back rather than a second, independent vertical kernel.
func NewBoxBlur(name string, in *graph.Node, radiusH, radiusV int) (*graph.Node, error) {
	if radiusH < 0 || radiusV < 0 {
		return nil, fgerrors.NewConstructionError(name, "boxblur.negative_radius", nil)
	}
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return boxBlurPlane(src, out, plane, radiusH, radiusV)
	}
	return newSingleInputNode(name, in, apply, 0)
}

func boxBlurPlane(src, out *frame.VideoFrame, plane, radiusH, radiusV int) error {
	pw, ph := src.PlaneWidth(plane), src.PlaneHeight(plane)
	data := readPlaneFloats(src, plane, pw, ph)

	data = horizontalBoxBlur(data, pw, ph, radiusH)
	if radiusV > 0 {
		t := transpose(data, pw, ph)
		t = horizontalBoxBlur(t, ph, pw, radiusV)
		data = transpose(t, ph, pw)
	}

	writePlaneFloats(out, plane, pw, ph, data)
	return nil
}

func readPlaneFloats(f *frame.VideoFrame, plane, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = readSample(f, plane, x, y)
		}
	}
	return out
}

func writePlaneFloats(f *frame.VideoFrame, plane, w, h int, data []float64) {
	dst := f.GetWritePtr(plane)
	stride := f.Stride(plane)
	bps := f.Format().BytesPerSample
	st := f.Format().SampleType
	bits := f.Format().BitsPerSample
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			writeSample(dst, stride, x, y, bps, st, bits, data[y*w+x])
		}
	}
}

// transpose turns a w*h row-major grid into an h*w row-major grid.
func transpose(data []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[x*h+y] = data[y*w+x]
		}
	}
	return out
}

// horizontalBoxBlur runs a radius-r running-sum blur along each row of a
// w*h grid, clamping out-of-bounds taps to the row's edge samples. radius 1
// is specialized to a direct three-tap sum rather than maintaining a
// sliding window.
func horizontalBoxBlur(data []float64, w, h, radius int) []float64 {
	if radius <= 0 {
		return data
	}
	out := make([]float64, w*h)
	count := float64(2*radius + 1)

	for y := 0; y < h; y++ {
		row := data[y*w : y*w+w]
		outRow := out[y*w : y*w+w]

		if radius == 1 {
			for x := 0; x < w; x++ {
				l := row[clampCoord(x-1, w)]
				c := row[x]
				r := row[clampCoord(x+1, w)]
				outRow[x] = (l + c + r) / 3
			}
			continue
		}

		sum := 0.0
		for k := -radius; k <= radius; k++ {
			sum += row[clampCoord(k, w)]
		}
		outRow[0] = sum / count
		for x := 1; x < w; x++ {
			sum -= row[clampCoord(x-radius-1, w)]
			sum += row[clampCoord(x+radius, w)]
			outRow[x] = sum / count
		}
	}
	return out
}
