package frame

import (
	"sync/atomic"

	"github.com/alxayo/framegraph/internal/bufpool"
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/format"
)

// AudioFrame is an immutable, reference-counted planar audio buffer
// carrying up to format.AudioFrameSamples samples per channel (spec §3).
// The final frame of a stream may carry fewer.
type AudioFrame struct {
	format     format.AudioFormat
	numSamples int
	planes     [][]byte // one slice per channel, length numSamples*bytesPerSample
	props      *PropertyMap
	refcount   *int32
}

// NewAudioFrame allocates a frame for numSamples samples per channel.
// numSamples must be in (0, format.AudioFrameSamples].
func NewAudioFrame(f format.AudioFormat, numSamples int, propSrc *PropertyMap) (*AudioFrame, error) {
	if numSamples <= 0 || numSamples > format.AudioFrameSamples {
		return nil, fgerrors.NewConstructionError("frame", "audioframe.samplecount", nil)
	}
	bps := f.BytesPerSample()
	channels := f.NumChannels()
	planes := make([][]byte, channels)
	for c := range planes {
		planes[c] = bufpool.AlignedAlloc(numSamples * bps)
	}

	var props *PropertyMap
	if propSrc != nil {
		props = propSrc.Clone()
	} else {
		props = NewPropertyMap()
	}

	rc := int32(1)
	return &AudioFrame{
		format:     f,
		numSamples: numSamples,
		planes:     planes,
		props:      props,
		refcount:   &rc,
	}, nil
}

func (f *AudioFrame) Ref() *AudioFrame {
	atomic.AddInt32(f.refcount, 1)
	return f
}

func (f *AudioFrame) Release() {
	atomic.AddInt32(f.refcount, -1)
}

func (f *AudioFrame) RefCount() int32 { return atomic.LoadInt32(f.refcount) }

func (f *AudioFrame) Format() format.AudioFormat { return f.format }
func (f *AudioFrame) NumSamples() int            { return f.numSamples }
func (f *AudioFrame) Properties() *PropertyMap   { return f.props }

func (f *AudioFrame) GetReadPtr(channel int) []byte { return f.planes[channel] }

func (f *AudioFrame) GetWritePtr(channel int) []byte {
	if f.RefCount() != 1 {
		fgerrors.ProgrammerError("frame.write", "GetWritePtr called on an audio frame with more than one reference")
	}
	return f.planes[channel]
}

// FrameIndexForSample returns the frame index and channel-local sample
// offset that stream-absolute sample s falls into (spec §3: "sample s of a
// stream lives in frame s/3072 at channel-local offset s%3072").
func FrameIndexForSample(s int64) (frameIndex int64, offset int) {
	return s / format.AudioFrameSamples, int(s % format.AudioFrameSamples)
}
