package mapping

import (
	"github.com/luismqueral/data-synth-sub000/internal/analysis"
	"github.com/luismqueral/data-synth-sub000/internal/record"
)

// Params is one tick's fully-populated audio parameter record, keyed by
// parameter id.
type Params map[string]float64

// DataRanges computes the observed min/max per mapped path over the
// whole record list. It runs once at playback start; mappings whose
// path never resolves get no entry and evaluate to their fixed value.
func DataRanges(records []record.Record, mappings []Mapping) map[string]Range {
	out := make(map[string]Range, len(mappings))
	for _, m := range mappings {
		if m.Path == "" {
			continue
		}
		first := true
		var r Range
		for _, rec := range records {
			v, ok := record.ResolveNumber(rec, m.Path)
			if !ok {
				continue
			}
			if first {
				r = Range{Min: v, Max: v}
				first = false
				continue
			}
			if v < r.Min {
				r.Min = v
			}
			if v > r.Max {
				r.Max = v
			}
		}
		if !first {
			out[m.Param] = r
		}
	}
	return out
}

// Evaluate produces the audio parameters for one record. It is pure:
// extract, normalize into the observed data range, apply the curve, and
// scale into the mapping's output range. Misses fall back to the fixed
// value; a degenerate data range pins the output at the mapping's Min.
func Evaluate(rec record.Record, mappings []Mapping, ranges map[string]Range) Params {
	out := make(Params, len(mappings))
	for _, m := range mappings {
		out[m.Param] = evaluateOne(rec, m, ranges)
	}
	return out
}

func evaluateOne(rec record.Record, m Mapping, ranges map[string]Range) float64 {
	if m.Path == "" {
		return m.Fixed
	}
	r, ok := ranges[m.Param]
	if !ok {
		return m.Fixed
	}
	raw, ok := record.ResolveNumber(rec, m.Path)
	if !ok {
		return m.Fixed
	}
	if r.Max == r.Min {
		return m.Min
	}
	n := (raw - r.Min) / (r.Max - r.Min)
	if n < 0 {
		n = 0
	} else if n > 1 {
		n = 1
	}
	return m.Min + analysis.Apply(m.Curve, n)*(m.Max-m.Min)
}
