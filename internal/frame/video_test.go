package frame

import (
	"testing"

	"github.com/alxayo/framegraph/internal/format"
)

func yuv420(t *testing.T) format.VideoFormat {
	t.Helper()
	f, err := format.NewVideoFormat(format.YUV, format.Integer, 8, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error building format: %v", err)
	}
	return f
}

func TestNewVideoFrameShapes(t *testing.T) {
	f := yuv420(t)
	vf, err := NewVideoFrame(f, 64, 32, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer vf.Release()

	if vf.PlaneWidth(0) != 64 || vf.PlaneHeight(0) != 32 {
		t.Fatalf("luma plane shape wrong: %dx%d", vf.PlaneWidth(0), vf.PlaneHeight(0))
	}
	if vf.PlaneWidth(1) != 32 || vf.PlaneHeight(1) != 16 {
		t.Fatalf("chroma plane shape wrong: %dx%d", vf.PlaneWidth(1), vf.PlaneHeight(1))
	}
	if vf.Stride(0)%64 != 0 {
		t.Fatalf("stride not 64-byte aligned: %d", vf.Stride(0))
	}
	if vf.Stride(0) < vf.PlaneWidth(0) {
		t.Fatalf("stride %d smaller than width %d", vf.Stride(0), vf.PlaneWidth(0))
	}
}

func TestVideoFrameWritePtrRequiresSoleOwnership(t *testing.T) {
	f := yuv420(t)
	vf, _ := NewVideoFrame(f, 16, 16, nil)
	defer vf.Release()

	// Sole reference: must not panic.
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("unexpected panic with sole reference: %v", r)
			}
		}()
		_ = vf.GetWritePtr(0)
	}()

	vf.Ref()
	defer vf.Release()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic writing to a shared frame")
			}
		}()
		_ = vf.GetWritePtr(0)
	}()
}

func TestCopyFrameIsIndependent(t *testing.T) {
	f := yuv420(t)
	vf, _ := NewVideoFrame(f, 16, 16, nil)
	defer vf.Release()

	writeAll(vf, 0, 42)
	clone := CopyFrame(vf)
	defer clone.Release()

	if !vf.Equal(clone) {
		t.Fatalf("expected clone to equal source immediately after copy")
	}

	writeAll(clone, 0, 99)
	if vf.Equal(clone) {
		t.Fatalf("mutating clone must not affect source")
	}
	if readFirst(vf, 0) != 42 {
		t.Fatalf("source plane mutated by clone write")
	}
}

func TestVideoFrameEqualIgnoresStride(t *testing.T) {
	f := yuv420(t)
	a, _ := NewVideoFrame(f, 16, 16, nil)
	defer a.Release()
	b, _ := NewVideoFrame(f, 16, 16, nil)
	defer b.Release()

	writeAll(a, 0, 7)
	writeAll(b, 0, 7)
	writeAll(a, 1, 9)
	writeAll(b, 1, 9)
	writeAll(a, 2, 9)
	writeAll(b, 2, 9)

	if !a.Equal(b) {
		t.Fatalf("expected frames with identical pixel data to compare equal")
	}
}

func TestNewVideoFrame2SharesPlanes(t *testing.T) {
	f := yuv420(t)
	src, _ := NewVideoFrame(f, 16, 16, nil)
	writeAll(src, 0, 5)

	shared, err := NewVideoFrame2(f, 16, 16,
		[]*VideoFrame{src, src, src},
		[]int{0, 1, 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if readFirst(shared, 0) != 5 {
		t.Fatalf("expected shared plane data to match source")
	}
	if src.RefCount() != 4 { // 1 original + 3 plane refs
		t.Fatalf("expected refcount 4, got %d", src.RefCount())
	}

	shared.Release()
	if src.RefCount() != 1 {
		t.Fatalf("expected source refcount back to 1 after releasing shared frame, got %d", src.RefCount())
	}
	src.Release()
}

func TestRefRelease(t *testing.T) {
	f := yuv420(t)
	vf, _ := NewVideoFrame(f, 8, 8, nil)
	vf.Ref()
	if vf.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", vf.RefCount())
	}
	vf.Release()
	if vf.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", vf.RefCount())
	}
	vf.Release()
}

func writeAll(f *VideoFrame, plane int, value byte) {
	p := f.GetWritePtr(plane)
	for i := range p {
		p[i] = value
	}
}

func readFirst(f *VideoFrame, plane int) byte {
	return f.GetReadPtr(plane)[0]
}
