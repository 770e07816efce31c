package mapping

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/luismqueral/data-synth-sub000/internal/analysis"
	"github.com/luismqueral/data-synth-sub000/internal/record"
)

var log = logrus.WithFields(logrus.Fields{"system": "mapping"})

// Pentatonic span used as the planner's frequency range: C4 up to A5.
const (
	freqRangeLow  = 261.63
	freqRangeHigh = 880.0
)

// pathAnalysis pairs a discovered path with its column statistics.
type pathAnalysis struct {
	path  string
	stats analysis.Stats
}

// analyzePaths runs the range/variance analyzer over every numeric path
// and sorts the results by descending interest score.
func analyzePaths(records []record.Record, paths []record.PathDescriptor) []pathAnalysis {
	numeric := record.NumericPaths(paths)
	out := make([]pathAnalysis, 0, len(numeric))
	for _, desc := range numeric {
		values := make([]float64, 0, len(records))
		for _, rec := range records {
			if v, ok := record.ResolveNumber(rec, desc.Path); ok {
				values = append(values, v)
			}
		}
		stats := analysis.Analyze(values)
		if stats.Count == 0 {
			continue
		}
		out = append(out, pathAnalysis{path: desc.Path, stats: stats})
	}
	// Stable order: score, then path, so equal scores do not reshuffle
	// between plans.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.stats.InterestScore > b.stats.InterestScore ||
				(a.stats.InterestScore == b.stats.InterestScore && a.path <= b.path) {
				break
			}
			out[j-1], out[j] = b, a
		}
	}
	return out
}

// Plan assigns the most interesting paths to the parameter tiers,
// choosing curves and narrowing ranges per parameter. Existing path
// assignments are cleared first. With no numeric paths the plan is a
// no-op.
func (s *Set) Plan(records []record.Record, paths []record.PathDescriptor) {
	analyses := analyzePaths(records, paths)
	s.ClearPaths()
	if len(analyses) == 0 {
		log.Warn("no numeric paths to map; playback will use fixed values")
		return
	}

	_, sampler := s.byID[ParamPitch]

	tier1 := []string{ParamNoteSpacing, ParamFrequency, ParamDuration}
	if sampler {
		tier1[1] = ParamSampleOffset
	}
	tier2 := []string{ParamPan, ParamFilterFreq, ParamDelayTime, ParamDelayFeedback,
		ParamDelayMix, ParamAttack, ParamRelease}
	if sampler {
		tier2 = append(tier2, ParamPitch)
	}
	tier3 := []string{ParamFilterQ, ParamReverbDecay, ParamReverbMix}

	next := 0
	assign := func(id string) bool {
		if next >= len(analyses) {
			return false
		}
		m, ok := s.mappings[id]
		if !ok {
			return true
		}
		a := analyses[next]
		next++
		m.Path = a.path
		m.Curve = curveFor(id, a.stats.CoefficientOfVariation)
		applyRangeOverride(m, id)
		return true
	}
	for _, tier := range [][]string{tier1, tier2, tier3} {
		for _, id := range tier {
			if !assign(id) {
				return
			}
		}
	}

	// Surplus paths spill into the delay section with widened ranges.
	surplus := []struct {
		id       string
		min, max float64
	}{
		{ParamDelayTime, 1, 2000},
		{ParamDelayFeedback, 0, 0.9},
		{ParamDelayMix, 0, 1},
	}
	for _, sp := range surplus {
		if next >= len(analyses) {
			return
		}
		a := analyses[next]
		next++
		m := s.mappings[sp.id]
		m.Path = a.path
		m.Curve = curveFor(sp.id, a.stats.CoefficientOfVariation)
		m.Min, m.Max = sp.min, sp.max
	}
}

// curveFor follows the analyzer recommendation, with a noteSpacing
// override: low-variance spacing columns bias to exponential so the
// rhythm keeps some drama.
func curveFor(id string, cv float64) analysis.Curve {
	if id == ParamNoteSpacing && cv < 0.5 {
		return analysis.CurveExponential
	}
	return analysis.RecommendCurve(cv)
}

func applyRangeOverride(m *Mapping, id string) {
	switch id {
	case ParamNoteSpacing:
		m.Min, m.Max = 80, 1200
	case ParamFrequency:
		m.Min, m.Max = freqRangeLow, freqRangeHigh
	case ParamPan:
		m.Min, m.Max = -1, 1
	case ParamFilterFreq:
		m.Min, m.Max = 400, 8000
	case ParamAttack:
		m.Min, m.Max = 5, 300
	case ParamRelease:
		m.Min, m.Max = 50, 800
	}
}

// RandomizePaths rebinds parameters to uniformly random numeric paths.
// Each parameter is assigned with probability 0.7, except noteSpacing
// which is always assigned. Curves randomize with a linear baseline;
// noteSpacing biases toward exponential.
func (s *Set) RandomizePaths(paths []record.PathDescriptor, rng *rand.Rand) {
	numeric := record.NumericPaths(paths)
	if len(numeric) == 0 {
		log.Warn("no numeric paths to randomize over")
		return
	}
	for _, p := range s.params {
		m := s.mappings[p.ID]
		if p.ID != ParamNoteSpacing && rng.Float64() >= 0.7 {
			m.Path = ""
			continue
		}
		m.Path = numeric[rng.Intn(len(numeric))].Path
		m.Curve = randomCurve(p.ID, rng)
	}
}

func randomCurve(id string, rng *rand.Rand) analysis.Curve {
	if id == ParamNoteSpacing && rng.Float64() < 0.6 {
		return analysis.CurveExponential
	}
	if rng.Float64() < 0.5 {
		return analysis.CurveLinear
	}
	return analysis.Curves[rng.Intn(len(analysis.Curves))]
}

// RandomizeRanges perturbs each mapping's output range by small uniform
// offsets (about +/-30% of the span on min, +/-50% on max), then
// re-sorts so Min <= Max and clamps to the declared parameter extremes.
func (s *Set) RandomizeRanges(rng *rand.Rand) {
	for _, p := range s.params {
		m := s.mappings[p.ID]
		span := m.Max - m.Min
		if span <= 0 {
			span = p.Max - p.Min
		}
		min := m.Min + (rng.Float64()*2-1)*0.3*span
		max := m.Max + (rng.Float64()*2-1)*0.5*span
		if min > max {
			min, max = max, min
		}
		m.Min = clampFloat(min, p.Min, p.Max)
		m.Max = clampFloat(max, p.Min, p.Max)
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
