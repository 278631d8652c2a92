package reorder

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
	"github.com/alxayo/framegraph/internal/graph"
)

// NewTrim builds a node exposing frames [first, first+length) of in, where
// length comes from an explicit last frame, an explicit length, or the
// remainder of in's frame count (spec §4.5). last and length are mutually
// exclusive; pass nil for whichever is not given. A no-op trim (no bounds
// at all, or bounds spanning the whole clip) returns in unchanged.
func NewTrim(name string, in *graph.Node, first int, last, length *int) (*graph.Node, error) {
	if in == nil {
		return nil, fgerrors.NewConstructionError(name, "trim.nil_input", nil)
	}
	if last != nil && length != nil {
		return nil, fgerrors.NewConstructionError(name, "trim.last_and_length", nil)
	}
	if first < 0 {
		return nil, fgerrors.NewConstructionError(name, "trim.first.negative", nil)
	}
	if last != nil && *last < first {
		return nil, fgerrors.NewConstructionError(name, "trim.last.before_first", nil)
	}
	if length != nil && *length < 1 {
		return nil, fgerrors.NewConstructionError(name, "trim.length.invalid", nil)
	}

	total := in.Output.NumFrames

	var trimLen int64
	switch {
	case last != nil:
		trimLen = int64(*last) - int64(first) + 1
	case length != nil:
		trimLen = int64(*length)
	default:
		if total < 0 {
			return nil, fgerrors.NewConstructionError(name, "trim.length.unknown", nil)
		}
		trimLen = total - int64(first)
	}

	if total >= 0 {
		if last != nil && int64(*last) >= total {
			return nil, fgerrors.NewConstructionError(name, "trim.last.out_of_range", nil)
		}
		if length != nil && int64(first)+trimLen > total {
			return nil, fgerrors.NewConstructionError(name, "trim.length.out_of_range", nil)
		}
		if total <= int64(first) {
			return nil, fgerrors.NewConstructionError(name, "trim.first.out_of_range", nil)
		}
	}

	// nop() when no bounds were given, or when the computed trim spans the
	// entire clip — pass the input straight through.
	if first == 0 && last == nil && length == nil {
		return in, nil
	}
	if total >= 0 && trimLen == total {
		return in, nil
	}

	out := in.Output
	out.NumFrames = trimLen

	st := &remapState{input: in, remap: func(n int) int { return n + first }}
	deps := []graph.Dependency{{Upstream: in, Mode: graph.NoFrameReuse}}
	return graph.New(name, out, remapGetter, nil, graph.Parallel, deps, st, 0)
}
