package frame

import (
	"sync/atomic"

	"github.com/alxayo/framegraph/internal/bufpool"
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/format"
)

// Plane is one channel of pixel data: a byte slice, its row stride in
// bytes, and the pixel dimensions it addresses. Strides are padded to a
// multiple of bufpool.PlaneAlignment and are always >= width*bytesPerSample.
type Plane struct {
	Data   []byte
	Stride int
	Width  int
	Height int
}

// VideoFrame is an immutable, reference-counted planar video buffer plus
// its attached property map. Frames are never mutated in place except via
// GetWritePtr, which requires the caller to hold the sole reference.
type VideoFrame struct {
	format format.VideoFormat
	width  int
	height int
	planes []Plane
	props  *PropertyMap

	refcount *int32
	// owners holds references this frame keeps alive because one or more of
	// its planes alias another frame's buffer (NewVideoFrame2). Released
	// when this frame's refcount reaches zero.
	owners []*VideoFrame
}

// NewVideoFrame allocates a fresh frame of the given format/dimensions.
// Each plane is allocated with at least 64-byte alignment and a stride
// padded to a 64-byte multiple. If propSrc is non-nil its property map is
// copied (by reference sharing, copy-on-write) into the new frame.
func NewVideoFrame(f format.VideoFormat, width, height int, propSrc *PropertyMap) (*VideoFrame, error) {
	if err := f.ValidateDimensions(width, height); err != nil {
		return nil, err
	}

	planes := make([]Plane, f.NumPlanes)
	for p := 0; p < f.NumPlanes; p++ {
		pw := f.PlaneWidth(width, p)
		ph := f.PlaneHeight(height, p)
		rowBytes := pw * f.BytesPerSample
		stride := bufpool.AlignUp(rowBytes)
		data := bufpool.AlignedAlloc(stride * ph)
		planes[p] = Plane{Data: data, Stride: stride, Width: pw, Height: ph}
	}

	var props *PropertyMap
	if propSrc != nil {
		props = propSrc.Clone()
	} else {
		props = NewPropertyMap()
	}

	rc := int32(1)
	return &VideoFrame{
		format:   f,
		width:    width,
		height:   height,
		planes:   planes,
		props:    props,
		refcount: &rc,
	}, nil
}

// NewVideoFrame2 builds a frame whose plane i is a shared reference to plane
// srcPlanes[i] of srcFrames[i] — no pixel data is copied. The source frames
// are Ref'd for the lifetime of the new frame. Plane shapes/strides across
// sources must be compatible with the declared format/dimensions.
func NewVideoFrame2(f format.VideoFormat, width, height int, srcFrames []*VideoFrame, srcPlanes []int, propSrc *PropertyMap) (*VideoFrame, error) {
	if len(srcFrames) != f.NumPlanes || len(srcPlanes) != f.NumPlanes {
		return nil, fgerrors.NewConstructionError("frame", "newvideoframe2.arity", nil)
	}
	if err := f.ValidateDimensions(width, height); err != nil {
		return nil, err
	}

	planes := make([]Plane, f.NumPlanes)
	owners := make([]*VideoFrame, 0, f.NumPlanes)
	for p := 0; p < f.NumPlanes; p++ {
		src := srcFrames[p]
		srcPlane := srcPlanes[p]
		if src == nil || srcPlane < 0 || srcPlane >= len(src.planes) {
			return nil, fgerrors.NewConstructionError("frame", "newvideoframe2.srcplane", nil)
		}
		sp := src.planes[srcPlane]
		wantW := f.PlaneWidth(width, p)
		wantH := f.PlaneHeight(height, p)
		if sp.Width != wantW || sp.Height != wantH {
			return nil, fgerrors.NewConstructionError("frame", "newvideoframe2.shape", nil)
		}
		planes[p] = sp
		src.Ref()
		owners = append(owners, src)
	}

	var props *PropertyMap
	if propSrc != nil {
		props = propSrc.Clone()
	} else {
		props = NewPropertyMap()
	}

	rc := int32(1)
	return &VideoFrame{
		format:   f,
		width:    width,
		height:   height,
		planes:   planes,
		props:    props,
		refcount: &rc,
		owners:   owners,
	}, nil
}

// CopyFrame returns a new frame with its own unique-ownership deep copy of
// every plane's pixel data; the property map is shared copy-on-write
// (spec §4.2). Mutating the clone never aliases the source.
func CopyFrame(src *VideoFrame) *VideoFrame {
	planes := make([]Plane, len(src.planes))
	for i, sp := range src.planes {
		data := bufpool.AlignedAlloc(sp.Stride * sp.Height)
		copy(data, sp.Data)
		planes[i] = Plane{Data: data, Stride: sp.Stride, Width: sp.Width, Height: sp.Height}
	}
	rc := int32(1)
	return &VideoFrame{
		format:   src.format,
		width:    src.width,
		height:   src.height,
		planes:   planes,
		props:    src.props.Clone(),
		refcount: &rc,
	}
}

// Ref increments the reference count and returns the same frame, mirroring
// the refcounted-handle idiom used at every call site that hands out a
// frame to more than one owner.
func (f *VideoFrame) Ref() *VideoFrame {
	atomic.AddInt32(f.refcount, 1)
	return f
}

// Release decrements the reference count, releasing owner references when
// it reaches zero. Plane buffers are not freed here; the garbage collector
// reclaims them once unreachable.
func (f *VideoFrame) Release() {
	if atomic.AddInt32(f.refcount, -1) > 0 {
		return
	}
	for _, o := range f.owners {
		o.Release()
	}
	f.owners = nil
}

// RefCount returns the current reference count (for tests and the
// writability check below).
func (f *VideoFrame) RefCount() int32 { return atomic.LoadInt32(f.refcount) }

// Format, Width, Height, Properties are the read-only accessors every
// filter uses.
func (f *VideoFrame) Format() format.VideoFormat { return f.format }
func (f *VideoFrame) Width() int                 { return f.width }
func (f *VideoFrame) Height() int                { return f.height }
func (f *VideoFrame) Properties() *PropertyMap   { return f.props }

// PlaneWidth/PlaneHeight report a specific plane's pixel dimensions.
func (f *VideoFrame) PlaneWidth(plane int) int  { return f.planes[plane].Width }
func (f *VideoFrame) PlaneHeight(plane int) int { return f.planes[plane].Height }
func (f *VideoFrame) Stride(plane int) int      { return f.planes[plane].Stride }

// GetReadPtr returns the plane's backing bytes for reading.
func (f *VideoFrame) GetReadPtr(plane int) []byte { return f.planes[plane].Data }

// GetWritePtr returns the plane's backing bytes for writing. Per spec §7
// this is a programmer error (undefined behavior / panic) unless the
// caller holds the sole reference to the frame.
func (f *VideoFrame) GetWritePtr(plane int) []byte {
	if f.RefCount() != 1 {
		fgerrors.ProgrammerError("frame.write", "GetWritePtr called on a frame with more than one reference")
	}
	return f.planes[plane].Data
}

// Equal reports whether two frames have the same format, dimensions, and
// identical per-plane pixel data — stride differences are ignored (spec
// §4.2 invariant).
func (f *VideoFrame) Equal(o *VideoFrame) bool {
	if !f.format.Equal(o.format) || f.width != o.width || f.height != o.height {
		return false
	}
	for p := range f.planes {
		a, b := f.planes[p], o.planes[p]
		if a.Width != b.Width || a.Height != b.Height {
			return false
		}
		rowBytes := a.Width * f.format.BytesPerSample
		for row := 0; row < a.Height; row++ {
			ar := a.Data[row*a.Stride : row*a.Stride+rowBytes]
			br := b.Data[row*b.Stride : row*b.Stride+rowBytes]
			for i := range ar {
				if ar[i] != br[i] {
					return false
				}
			}
		}
	}
	return true
}
