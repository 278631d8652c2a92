package reorder

import (
	"sort"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/graph"
)

// NewDuplicateFrames inserts an extra copy of each listed input frame,
// shifting every later frame's position down by however many duplicates
// precede it.
func NewDuplicateFrames(name string, in *graph.Node, frames []int) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "duplicateframes.nil_input", nil)
	}
	total := in.Output.NumFrames
	dups := append([]int(nil), frames...)
	sort.Ints(dups)
	for _, d := range dups {
		if d < 0 || (total >= 0 && int64(d) > total-1) {
			return nil, fgerrors.NewConstructionError(name, "duplicateframes.out_of_range", nil)
		}
	}

	out := in.Output
	if total >= 0 {
		out.NumFrames = total + int64(len(dups))
	}

	st := &remapState{input: in, remap: func(n int) int {
		for _, d := range dups {
			if n > d {
				n--
			} else {
				break
			}
		}
		return n
	}}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.General}}
	return graph.New(name, out, remapGetter, nil, graph.Parallel, deps, st, 0)
}

// NewDeleteFrames removes each listed input frame from the output,
// shifting every later frame's position up to close the gap.
func NewDeleteFrames(name string, in *graph.Node, frames []int) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "deleteframes.nil_input", nil)
	}
	total := in.Output.NumFrames
	del := append([]int(nil), frames...)
	sort.Ints(del)
	for i, d := range del {
		if d < 0 || (total >= 0 && int64(d) >= total) {
			return nil, fgerrors.NewConstructionError(name, "deleteframes.out_of_range", nil)
		}
		if i > 0 && del[i] == del[i-1] {
			return nil, fgerrors.NewConstructionError(name, "deleteframes.duplicate", nil)
		}
	}

	out := in.Output
	if total >= 0 {
		out.NumFrames = total - int64(len(del))
		if out.NumFrames <= 0 {
			return nil, fgerrors.NewConstructionError(name, "deleteframes.deletes_everything", nil)
		}
	}

	st := &remapState{input: in, remap: func(n int) int {
		for _, d := range del {
			if n >= d {
				n++
			} else {
				break
			}
		}
		return n
	}}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.NoFrameReuse}}
	return graph.New(name, out, remapGetter, nil, graph.Parallel, deps, st, 0)
}
