// Package mapping binds discovered data paths to audio parameters: the
// parameter declarations, the planner that auto-assigns paths by
// interestingness, and the pure per-record evaluator.
package mapping

import (
	"fmt"

	"github.com/luismqueral/data-synth-sub000/internal/analysis"
)

// Mapping is the configured binding for one audio parameter. An empty
// Path means the parameter holds at Fixed; otherwise the parameter is
// data-driven over [Min, Max] through Curve.
type Mapping struct {
	Param string         `yaml:"param"`
	Path  string         `yaml:"path,omitempty"`
	Fixed float64        `yaml:"fixed"`
	Min   float64        `yaml:"min"`
	Max   float64        `yaml:"max"`
	Curve analysis.Curve `yaml:"curve"`
}

// Set holds one mapping per parameter of the active parameter set,
// preserving declaration order.
type Set struct {
	params   []AudioParameter
	byID     map[string]AudioParameter
	mappings map[string]*Mapping
}

// NewSet builds a Set with every parameter at its fixed default.
func NewSet(params []AudioParameter) *Set {
	s := &Set{
		params:   params,
		byID:     make(map[string]AudioParameter, len(params)),
		mappings: make(map[string]*Mapping, len(params)),
	}
	for _, p := range params {
		s.byID[p.ID] = p
		s.mappings[p.ID] = defaultMapping(p)
	}
	return s
}

func defaultMapping(p AudioParameter) *Mapping {
	return &Mapping{
		Param: p.ID,
		Fixed: p.Default,
		Min:   p.Min,
		Max:   p.Max,
		Curve: analysis.CurveLinear,
	}
}

// Parameters returns the declared parameter set in order.
func (s *Set) Parameters() []AudioParameter {
	out := make([]AudioParameter, len(s.params))
	copy(out, s.params)
	return out
}

// Parameter looks up a declaration by id.
func (s *Set) Parameter(id string) (AudioParameter, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Mappings returns a snapshot of all mappings in declaration order.
func (s *Set) Mappings() []Mapping {
	out := make([]Mapping, 0, len(s.params))
	for _, p := range s.params {
		out = append(out, *s.mappings[p.ID])
	}
	return out
}

// Get returns a copy of the mapping for one parameter.
func (s *Set) Get(id string) (Mapping, bool) {
	m, ok := s.mappings[id]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// Partial carries the fields of a mapping a caller wants to change.
type Partial struct {
	Path  *string
	Fixed *float64
	Min   *float64
	Max   *float64
	Curve *analysis.Curve
}

// Apply merges a partial update into one mapping, re-sorting the range
// so Min <= Max always holds.
func (s *Set) Apply(id string, p Partial) error {
	m, ok := s.mappings[id]
	if !ok {
		return fmt.Errorf("unknown audio parameter %q", id)
	}
	if p.Path != nil {
		m.Path = *p.Path
	}
	if p.Fixed != nil {
		m.Fixed = *p.Fixed
	}
	if p.Min != nil {
		m.Min = *p.Min
	}
	if p.Max != nil {
		m.Max = *p.Max
	}
	if p.Curve != nil {
		m.Curve = *p.Curve
	}
	if m.Min > m.Max {
		m.Min, m.Max = m.Max, m.Min
	}
	return nil
}

// Reset restores every mapping to the parameter defaults.
func (s *Set) Reset() {
	for _, p := range s.params {
		s.mappings[p.ID] = defaultMapping(p)
	}
}

// ClearPaths empties the path of every mapping, leaving ranges intact.
func (s *Set) ClearPaths() {
	for _, m := range s.mappings {
		m.Path = ""
	}
}

// SwitchParameters swaps in a new parameter set (mode change). Mappings
// for parameters present in both sets survive; mappings keyed to
// parameters no longer declared are invalidated, and new parameters
// start at their defaults.
func (s *Set) SwitchParameters(params []AudioParameter) {
	byID := make(map[string]AudioParameter, len(params))
	mappings := make(map[string]*Mapping, len(params))
	for _, p := range params {
		byID[p.ID] = p
		if old, ok := s.mappings[p.ID]; ok {
			mappings[p.ID] = old
		} else {
			mappings[p.ID] = defaultMapping(p)
		}
	}
	s.params = params
	s.byID = byID
	s.mappings = mappings
}

// Restore replaces mappings from a snapshot, ignoring entries that name
// parameters outside the current set.
func (s *Set) Restore(ms []Mapping) {
	for _, m := range ms {
		if _, ok := s.byID[m.Param]; !ok {
			continue
		}
		cp := m
		if cp.Min > cp.Max {
			cp.Min, cp.Max = cp.Max, cp.Min
		}
		s.mappings[m.Param] = &cp
	}
}

// Range is the observed data extent for one mapped path.
type Range struct {
	Min float64
	Max float64
}
