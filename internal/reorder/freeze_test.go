package reorder

import "testing"

func TestFreezeFramesScenario(t *testing.T) {
	f := grayFormat(t)
	src := indexedSource(t, f, 2, 2, 10)
	node, err := NewFreezeFrames("FreezeFrames", src, []int{2, 6}, []int{4, 8}, []int{0, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Output.NumFrames != 10 {
		t.Fatalf("length: got %d, want 10", node.Output.NumFrames)
	}
	want := []byte{0, 1, 0, 0, 0, 5, 9, 9, 9, 9}
	for n, w := range want {
		out := requestFrame(t, node, n)
		if got := planeValue(t, out); got != w {
			t.Fatalf("frame %d: got %d, want %d", n, got, w)
		}
		out.Release()
	}
}

func TestFreezeFramesEmptyListIsPassthrough(t *testing.T) {
	f := grayFormat(t)
	src := indexedSource(t, f, 2, 2, 10)
	node, err := NewFreezeFrames("FreezeFrames", src, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != src {
		t.Fatalf("expected an empty FreezeFrames to return the input node unchanged")
	}
}

func TestFreezeFramesRejectsOverlappingRanges(t *testing.T) {
	f := grayFormat(t)
	src := indexedSource(t, f, 2, 2, 10)
	if _, err := NewFreezeFrames("FreezeFrames", src, []int{2, 3}, []int{5, 7}, []int{0, 0}); err == nil {
		t.Fatalf("expected error for overlapping ranges")
	}
}

func TestFreezeFramesRejectsOutOfRange(t *testing.T) {
	f := grayFormat(t)
	src := indexedSource(t, f, 2, 2, 10)
	if _, err := NewFreezeFrames("FreezeFrames", src, []int{2}, []int{10}, []int{0}); err == nil {
		t.Fatalf("expected error for a last frame beyond the clip end")
	}
}

func TestFreezeFramesNormalizesReversedFirstLast(t *testing.T) {
	f := grayFormat(t)
	src := indexedSource(t, f, 2, 2, 10)
	node, err := NewFreezeFrames("FreezeFrames", src, []int{4}, []int{2}, []int{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0, 1, 0, 0, 0, 5, 6, 7, 8, 9}
	for n, w := range want {
		out := requestFrame(t, node, n)
		if got := planeValue(t, out); got != w {
			t.Fatalf("frame %d: got %d, want %d", n, got, w)
		}
		out.Release()
	}
}

func TestFreezeFramesRejectsLengthMismatch(t *testing.T) {
	f := grayFormat(t)
	src := indexedSource(t, f, 2, 2, 10)
	if _, err := NewFreezeFrames("FreezeFrames", src, []int{2}, []int{4, 5}, []int{0}); err == nil {
		t.Fatalf("expected error for mismatched slice lengths")
	}
}
