package kernel

import (
	"math"

	"github.com/alxayo/framegraph/internal/frame"
	"github.com/alxayo/framegraph/internal/graph"
)

var sobelGx = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
var sobelGy = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}

var prewittGx = [9]float64{-1, 0, 1, -1, 0, 1, -1, 0, 1}
var prewittGy = [9]float64{-1, -1, -1, 0, 0, 0, 1, 1, 1}

// NewSobel builds a Sobel gradient-magnitude edge detector: sqrt(Gx^2+Gy^2)
// scaled by scale and saturated to the output format's range (spec §4.4).
func NewSobel(name string, in *graph.Node, scale float64) (*graph.Node, error) {
	return newGradientNode(name, in, sobelGx, sobelGy, scale)
}

// NewPrewitt mirrors NewSobel using the Prewitt gradient kernels.
func NewPrewitt(name string, in *graph.Node, scale float64) (*graph.Node, error) {
	return newGradientNode(name, in, prewittGx, prewittGy, scale)
}

func newGradientNode(name string, in *graph.Node, gx, gy [9]float64, scale float64) (*graph.Node, error) {
	apply := func(src, out *frame.VideoFrame, plane int) error {
		return gradientPlane(src, out, plane, gx, gy, scale)
	}
	return newSingleInputNode(name, in, apply, 0)
}

func gradientPlane(src, out *frame.VideoFrame, plane int, gx, gy [9]float64, scale float64) error {
	pw, ph := src.PlaneWidth(plane), src.PlaneHeight(plane)
	dst := out.GetWritePtr(plane)
	stride := out.Stride(plane)
	outFmt := out.Format()

	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			var sx, sy float64
			idx := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					s := readSample(src, plane, x+kx, y+ky)
					sx += gx[idx] * s
					sy += gy[idx] * s
					idx++
				}
			}
			mag := math.Sqrt(sx*sx+sy*sy) * scale
			writeSample(dst, stride, x, y, outFmt.BytesPerSample, outFmt.SampleType, outFmt.BitsPerSample, mag)
		}
	}
	return nil
}
