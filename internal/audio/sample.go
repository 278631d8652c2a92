// Package audio implements the sample-granular audio filters: AudioTrim
// (trim by sample index) and MixAudio (two-clip averaging), mirroring
// internal/reorder's pure index-remapping filters but addressed in samples
// rather than frames.
package audio

import (
	"encoding/binary"
	"math"

	"github.com/alxayo/framegraph/internal/format"
)

// readIntSample sign-extends a little-endian integer sample of bytesPerSample
// width (1, 2, 3, or 4) starting at off into an int64.
func readIntSample(p []byte, off, bytesPerSample int) int64 {
	switch bytesPerSample {
	case 1:
		return int64(int8(p[off]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(p[off : off+2])))
	case 3:
		v := uint32(p[off]) | uint32(p[off+1])<<8 | uint32(p[off+2])<<16
		if v&0x800000 != 0 {
			v |= 0xff000000
		}
		return int64(int32(v))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(p[off : off+4])))
	default:
		return 0
	}
}

// writeIntSample stores v (already clamped to the target's range) as a
// little-endian integer sample of bytesPerSample width.
func writeIntSample(dst []byte, off, bytesPerSample int, v int64) {
	switch bytesPerSample {
	case 1:
		dst[off] = byte(int8(v))
	case 2:
		binary.LittleEndian.PutUint16(dst[off:off+2], uint16(int16(v)))
	case 3:
		u := uint32(int32(v))
		dst[off] = byte(u)
		dst[off+1] = byte(u >> 8)
		dst[off+2] = byte(u >> 16)
	case 4:
		binary.LittleEndian.PutUint32(dst[off:off+4], uint32(int32(v)))
	}
}

func readFloatSample(p []byte, off, bytesPerSample int) float64 {
	if bytesPerSample == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p[off : off+4])))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p[off : off+8]))
}

func writeFloatSample(dst []byte, off, bytesPerSample int, v float64) {
	if bytesPerSample == 4 {
		binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(float32(v)))
	} else {
		binary.LittleEndian.PutUint64(dst[off:off+8], math.Float64bits(v))
	}
}

// clampInt saturates v to the signed range representable in bits bits.
func clampInt(v int64, bits int) int64 {
	max := int64(1)<<uint(bits-1) - 1
	min := -max - 1
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

// mixChannel averages one channel's worth of samples from two sources into
// dst, matching audiofilter.cpp's MixAudioGetAudio: integer formats add each
// source's own truncating halving (samples[i]/2 + clip_samples[i]/2) rather
// than averaging the sum, so a pair of odd values loses a combined value of
// up to 1 the same way the original's 16-bit arithmetic does; float formats
// average directly.
func mixChannel(dst, src1, src2 []byte, numSamples int, f format.AudioFormat) {
	bps := f.BytesPerSample()
	for i := 0; i < numSamples; i++ {
		off := i * bps
		if f.SampleType == format.Float {
			v := readFloatSample(src1, off, bps)/2 + readFloatSample(src2, off, bps)/2
			writeFloatSample(dst, off, bps, v)
			continue
		}
		v := readIntSample(src1, off, bps)/2 + readIntSample(src2, off, bps)/2
		writeIntSample(dst, off, bps, clampInt(v, f.BitsPerSample))
	}
}
