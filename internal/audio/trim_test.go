package audio

import "testing"

func TestAudioTrimScenario(t *testing.T) {
	f := monoInt16Format(t)
	src := indexedAudioSource(t, f, 10*3072)

	first := int64(1000)
	length := int64(5000)
	node, err := NewAudioTrim("AudioTrim", src, first, nil, &length)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Output.NumFrames != 5000 {
		t.Fatalf("total samples: got %d, want 5000", node.Output.NumFrames)
	}

	f0 := requestAudioFrame(t, node, 0)
	if f0.NumSamples() != 3072 {
		t.Fatalf("frame 0 sample count: got %d, want 3072", f0.NumSamples())
	}
	for i := 0; i < f0.NumSamples(); i++ {
		want := first + int64(i)
		if got := sampleAt(t, f0, 0, i); got != want {
			t.Fatalf("frame 0 sample %d: got %d, want %d", i, got, want)
		}
	}
	f0.Release()

	f1 := requestAudioFrame(t, node, 1)
	if f1.NumSamples() != 1928 {
		t.Fatalf("frame 1 sample count: got %d, want 1928", f1.NumSamples())
	}
	for i := 0; i < f1.NumSamples(); i++ {
		want := first + 3072 + int64(i)
		if got := sampleAt(t, f1, 0, i); got != want {
			t.Fatalf("frame 1 sample %d: got %d, want %d", i, got, want)
		}
	}
	f1.Release()
}

func TestAudioTrimNoBoundsIsPassthrough(t *testing.T) {
	f := monoInt16Format(t)
	src := indexedAudioSource(t, f, 10*3072)
	node, err := NewAudioTrim("AudioTrim", src, 0, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != src {
		t.Fatalf("expected a no-op AudioTrim to return the input node unchanged")
	}
}

func TestAudioTrimRejectsBothLastAndLength(t *testing.T) {
	f := monoInt16Format(t)
	src := indexedAudioSource(t, f, 10*3072)
	last, length := int64(100), int64(50)
	if _, err := NewAudioTrim("AudioTrim", src, 0, &last, &length); err == nil {
		t.Fatalf("expected error when both last and length are specified")
	}
}

func TestAudioTrimRejectsOutOfRange(t *testing.T) {
	f := monoInt16Format(t)
	src := indexedAudioSource(t, f, 10*3072)
	length := int64(100000)
	if _, err := NewAudioTrim("AudioTrim", src, 0, nil, &length); err == nil {
		t.Fatalf("expected error for a length beyond the stream end")
	}
}

func TestAudioTrimAlignedToFrameBoundary(t *testing.T) {
	f := monoInt16Format(t)
	src := indexedAudioSource(t, f, 3*3072)
	length := int64(3072)
	node, err := NewAudioTrim("AudioTrim", src, 3072, nil, &length)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := requestAudioFrame(t, node, 0)
	defer out.Release()
	if out.NumSamples() != 3072 {
		t.Fatalf("sample count: got %d, want 3072", out.NumSamples())
	}
	if got := sampleAt(t, out, 0, 0); got != 3072 {
		t.Fatalf("sample 0: got %d, want 3072", got)
	}
}
