package kernel

import (
	"sort"

	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

// neighborOffsets is the canonical 8-neighbor stencil order a coordinates
// bitmask indexes into: top-left, top, top-right, left, right,
// bottom-left, bottom, bottom-right (spec §4.4, the original's
// "coordinates" 8-bit stencil).
var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0} /*   */, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// AllCoordinates is the default stencil selecting every neighbor.
const AllCoordinates uint8 = 0xFF

func selectedNeighbors(src *frame.VideoFrame, plane, x, y int, coordinates uint8) []float64 {
	vals := make([]float64, 0, 8)
	for i, off := range neighborOffsets {
		if coordinates&(1<<uint(i)) == 0 {
			continue
		}
		vals = append(vals, readSample(src, plane, x+off[0], y+off[1]))
	}
	return vals
}

func clampDelta(v, center, threshold float64) float64 {
	if v < center-threshold {
		return center - threshold
	}
	if v > center+threshold {
		return center + threshold
	}
	return v
}

// NewMinimum replaces each sample with the minimum of itself and its
// selected neighbors, never moving more than threshold below the original
// value.
func NewMinimum(name string, in *graph.Node, threshold float64, coordinates uint8) (*graph.Node, error) {
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return morphPlane(src, out, plane, threshold, coordinates, func(center float64, neighbors []float64) float64 {
			ext := center
			for _, v := range neighbors {
				if v < ext {
					ext = v
				}
			}
			if ext < center-threshold {
				ext = center - threshold
			}
			return ext
		})
	}
	return newSingleInputNode(name, in, apply, 0)
}

// NewMaximum mirrors NewMinimum for the neighborhood maximum.
func NewMaximum(name string, in *graph.Node, threshold float64, coordinates uint8) (*graph.Node, error) {
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return morphPlane(src, out, plane, threshold, coordinates, func(center float64, neighbors []float64) float64 {
			ext := center
			for _, v := range neighbors {
				if v > ext {
					ext = v
				}
			}
			if ext > center+threshold {
				ext = center + threshold
			}
			return ext
		})
	}
	return newSingleInputNode(name, in, apply, 0)
}

// NewMedian replaces each sample with the median of itself and its
// selected neighbors, clamped to [center-threshold, center+threshold].
func NewMedian(name string, in *graph.Node, threshold float64, coordinates uint8) (*graph.Node, error) {
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return morphPlane(src, out, plane, threshold, coordinates, func(center float64, neighbors []float64) float64 {
			vals := append(append([]float64{}, neighbors...), center)
			sort.Float64s(vals)
			med := vals[len(vals)/2]
			return clampDelta(med, center, threshold)
		})
	}
	return newSingleInputNode(name, in, apply, 0)
}

// NewDeflate moves each sample toward the average of its selected
// neighbors, but never upward and never past center-threshold.
func NewDeflate(name string, in *graph.Node, threshold float64, coordinates uint8) (*graph.Node, error) {
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return morphPlane(src, out, plane, threshold, coordinates, func(center float64, neighbors []float64) float64 {
			avg := average(neighbors, center)
			v := center
			if avg < v {
				v = avg
			}
			if v < center-threshold {
				v = center - threshold
			}
			return v
		})
	}
	return newSingleInputNode(name, in, apply, 0)
}

// NewInflate mirrors NewDeflate, moving each sample upward toward the
// neighbor average.
func NewInflate(name string, in *graph.Node, threshold float64, coordinates uint8) (*graph.Node, error) {
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return morphPlane(src, out, plane, threshold, coordinates, func(center float64, neighbors []float64) float64 {
			avg := average(neighbors, center)
			v := center
			if avg > v {
				v = avg
			}
			if v > center+threshold {
				v = center + threshold
			}
			return v
		})
	}
	return newSingleInputNode(name, in, apply, 0)
}

func average(vals []float64, fallback float64) float64 {
	if len(vals) == 0 {
		return fallback
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func morphPlane(src, out *frame.VideoFrame, plane int, threshold float64, coordinates uint8, combine func(center float64, neighbors []float64) float64) error {
	pw, ph := src.PlaneWidth(plane), src.PlaneHeight(plane)
	dst := out.GetWritePtr(plane)
	stride := out.Stride(plane)
	outFmt := out.Format()

	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			center := readSample(src, plane, x, y)
			neighbors := selectedNeighbors(src, plane, x, y, coordinates)
			v := combine(center, neighbors)
			writeSample(dst, stride, x, y, outFmt.BytesPerSample, outFmt.SampleType, outFmt.BitsPerSample, v)
		}
	}
	return nil
}
