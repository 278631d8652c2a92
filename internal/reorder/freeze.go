package reorder

import (
	"sort"

	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/graph"
)

type freezeRange struct {
	first, last, replacement int
}

// NewFreezeFrames replaces every frame in [first[i], last[i]] with
// replacement[i]. Ranges are validated, sorted, and checked for overlap at
// construction time rather than at request time: a sorted, non-overlapping
// range list is a precondition the getter can then rely on rather than
// reverify per frame.
func NewFreezeFrames(name string, in *graph.Node, first, last, replacement []int) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "freezeframes.nil_input", nil)
	}
	if len(first) != len(last) || len(first) != len(replacement) {
		return nil, fgerrors.NewConstructionError(name, "freezeframes.length_mismatch", nil)
	}
	if len(first) == 0 {
		return in, nil
	}

	total := in.Output.NumFrames
	ranges := make([]freezeRange, len(first))
	for i := range first {
		f, l, r := first[i], last[i], replacement[i]
		if f > l {
			f, l = l, f
		}
		if f < 0 || (total >= 0 && int64(l) >= total) || r < 0 || (total >= 0 && int64(r) >= total) {
			return nil, fgerrors.NewConstructionError(name, "freezeframes.out_of_range", nil)
		}
		ranges[i] = freezeRange{first: f, last: l, replacement: r}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].first < ranges[j].first })
	for i := 0; i+1 < len(ranges); i++ {
		if ranges[i].last >= ranges[i+1].first {
			return nil, fgerrors.NewConstructionError(name, "freezeframes.overlap", nil)
		}
	}

	st := &remapState{input: in, remap: func(n int) int {
		if n < ranges[0].first || n > ranges[len(ranges)-1].last {
			return n
		}
		for _, r := range ranges {
			if n >= r.first && n <= r.last {
				return r.replacement
			}
		}
		return n
	}}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.General}}
	return graph.New(name, in.Output, remapGetter, nil, graph.Parallel, deps, st, 0)
}
