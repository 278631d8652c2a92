// Package format implements the canonical, value-semantic video and audio
// format descriptors the rest of the engine addresses frames by. Formats
// carry no pointers and no identity beyond their field values: two formats
// built from the same parameters always compare equal.
package format

import (
	"math/bits"

	"github.com/klauspost/cpuid/v2"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
)

// ColorFamily enumerates the plane layouts a VideoFormat can describe.
type ColorFamily int

const (
	Gray ColorFamily = iota
	YUV
	RGB
)

func (c ColorFamily) String() string {
	switch c {
	case Gray:
		return "Gray"
	case YUV:
		return "YUV"
	case RGB:
		return "RGB"
	default:
		return "Unknown"
	}
}

// SampleType enumerates the arithmetic domain samples are stored in.
type SampleType int

const (
	Integer SampleType = iota
	Float
)

func (s SampleType) String() string {
	if s == Float {
		return "Float"
	}
	return "Integer"
}

// VideoFormat is the immutable tuple identifying a pixel format: color
// family, sample type, bit depth, and per-plane chroma subsampling. Derived
// fields (NumPlanes, BytesPerSample) are computed once at construction.
type VideoFormat struct {
	ColorFamily    ColorFamily
	SampleType     SampleType
	BitsPerSample  int
	SubSamplingW   int
	SubSamplingH   int
	NumPlanes      int
	BytesPerSample int
}

// NewVideoFormat validates and constructs a VideoFormat per spec §3:
// RGB must have zero subsampling, Gray has one plane, YUV has three,
// integer formats use up to 16 bits, float formats use 16 or 32 bits (16
// only when F16C hardware is available), and subsampling is in [0,4].
func NewVideoFormat(cf ColorFamily, st SampleType, bits_ int, subW, subH int) (VideoFormat, error) {
	if subW < 0 || subW > 4 || subH < 0 || subH > 4 {
		return VideoFormat{}, fgerrors.NewConstructionError("format", "subsampling.range", nil)
	}
	if cf == RGB && (subW != 0 || subH != 0) {
		return VideoFormat{}, fgerrors.NewConstructionError("format", "rgb.subsampling", nil)
	}
	if cf == Gray && (subW != 0 || subH != 0) {
		return VideoFormat{}, fgerrors.NewConstructionError("format", "gray.subsampling", nil)
	}

	switch st {
	case Integer:
		if bits_ < 8 || bits_ > 16 {
			return VideoFormat{}, fgerrors.NewConstructionError("format", "integer.bits", nil)
		}
	case Float:
		if bits_ != 16 && bits_ != 32 {
			return VideoFormat{}, fgerrors.NewConstructionError("format", "float.bits", nil)
		}
		if bits_ == 16 && !Float16Supported() {
			return VideoFormat{}, fgerrors.NewConstructionError("format", "float16.unsupported", nil)
		}
	default:
		return VideoFormat{}, fgerrors.NewConstructionError("format", "sampletype.unknown", nil)
	}
	if bits_ < 8 || bits_ > 32 {
		return VideoFormat{}, fgerrors.NewConstructionError("format", "bits.range", nil)
	}

	numPlanes := 3
	if cf == Gray {
		numPlanes = 1
	}

	bytesPerSample := 1
	switch {
	case bits_ <= 8:
		bytesPerSample = 1
	case bits_ <= 16:
		bytesPerSample = 2
	default:
		bytesPerSample = 4
	}

	return VideoFormat{
		ColorFamily:    cf,
		SampleType:     st,
		BitsPerSample:  bits_,
		SubSamplingW:   subW,
		SubSamplingH:   subH,
		NumPlanes:      numPlanes,
		BytesPerSample: bytesPerSample,
	}, nil
}

// Float16Supported reports whether the host CPU has F16C, the hardware
// required to store 16-bit float samples (spec §9 open question).
func Float16Supported() bool {
	return cpuid.CPU.Supports(cpuid.F16C)
}

// PlaneWidth returns the pixel width of the given plane for a frame of the
// given overall width: chroma planes (plane > 0) are subsampled.
func (f VideoFormat) PlaneWidth(width, plane int) int {
	if plane == 0 {
		return width
	}
	return ceilDiv(width, 1<<f.SubSamplingW)
}

// PlaneHeight returns the pixel height of the given plane analogous to
// PlaneWidth.
func (f VideoFormat) PlaneHeight(height, plane int) int {
	if plane == 0 {
		return height
	}
	return ceilDiv(height, 1<<f.SubSamplingH)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ValidateDimensions checks the invariant that subsampling divides the
// frame's width/height evenly (spec §3: "(1 << subSamplingW) divides
// width").
func (f VideoFormat) ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fgerrors.NewConstructionError("format", "dimensions.positive", nil)
	}
	if width%(1<<f.SubSamplingW) != 0 {
		return fgerrors.NewConstructionError("format", "dimensions.subsamplingW", nil)
	}
	if height%(1<<f.SubSamplingH) != 0 {
		return fgerrors.NewConstructionError("format", "dimensions.subsamplingH", nil)
	}
	return nil
}

// Equal reports whether two formats describe the same layout. Formats are
// value types; this is a plain field comparison.
func (f VideoFormat) Equal(o VideoFormat) bool {
	return f == o
}

// ChannelLayout is a bitmap of active audio channels (spec §3: "64-bit
// bitmap"). NumChannels is its popcount.
type ChannelLayout uint64

func (c ChannelLayout) NumChannels() int {
	return bits.OnesCount64(uint64(c))
}

// AudioFormat is the immutable tuple identifying an audio sample format.
type AudioFormat struct {
	SampleType    SampleType
	BitsPerSample int
	ChannelLayout ChannelLayout
}

// NewAudioFormat validates and constructs an AudioFormat. expectedChannels,
// if > 0, must equal the layout's popcount (original_source's
// AssumeSampleRate channel-count cross-check, carried forward per
// SPEC_FULL.md's supplemented features).
func NewAudioFormat(st SampleType, bits_ int, layout ChannelLayout, expectedChannels int) (AudioFormat, error) {
	if layout == 0 {
		return AudioFormat{}, fgerrors.NewConstructionError("format", "audio.emptylayout", nil)
	}
	switch st {
	case Integer:
		if bits_ != 8 && bits_ != 16 && bits_ != 24 && bits_ != 32 {
			return AudioFormat{}, fgerrors.NewConstructionError("format", "audio.integer.bits", nil)
		}
	case Float:
		if bits_ != 32 && bits_ != 64 {
			return AudioFormat{}, fgerrors.NewConstructionError("format", "audio.float.bits", nil)
		}
	default:
		return AudioFormat{}, fgerrors.NewConstructionError("format", "audio.sampletype.unknown", nil)
	}
	if expectedChannels > 0 && layout.NumChannels() != expectedChannels {
		return AudioFormat{}, fgerrors.NewConstructionError("format", "audio.channelcount.mismatch", nil)
	}
	return AudioFormat{SampleType: st, BitsPerSample: bits_, ChannelLayout: layout}, nil
}

// NumChannels returns the number of active channels in the format's layout.
func (a AudioFormat) NumChannels() int { return a.ChannelLayout.NumChannels() }

// BytesPerSample returns the per-channel, per-sample storage width in bytes.
func (a AudioFormat) BytesPerSample() int { return a.BitsPerSample / 8 }

// Equal reports whether two audio formats are identical.
func (a AudioFormat) Equal(o AudioFormat) bool { return a == o }

// AudioFrameSamples is the fixed number of samples per channel carried by
// every audio frame except the last in a stream (spec §3).
const AudioFrameSamples = 3072
