package kernel

import (
	"math"
	"testing"
)

// TestMaskedMergeRampScenario exercises the exact end-to-end case: two
// constant clips (0 and 200) blended through a mask ramping 0..255
// horizontally should produce column i = round(200*i/255).
func TestMaskedMergeRampScenario(t *testing.T) {
	f := grayFormat(t)
	width := 256
	a := constantPlaneSource(t, f, width, 1, 0)
	b := constantPlaneSource(t, f, width, 1, 200)
	mask := planeSource(t, f, width, 1, func(x, y int) byte { return byte(x) })

	node, err := NewMaskedMerge("MaskedMerge", a, b, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := requestFrame(t, node)
	defer out.Release()

	row := out.GetReadPtr(0)
	for x := 0; x < width; x++ {
		want := byte(math.Round(200 * float64(x) / 255))
		if got := row[x]; got != want {
			t.Fatalf("column %d: got %d, want %d", x, got, want)
		}
	}
}
