package mapping

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Preset is a serializable snapshot of the mapping configuration, so a
// dialed-in sonification can be carried between datasets and sessions.
type Preset struct {
	Mode     string    `yaml:"mode"`
	Waveform string    `yaml:"waveform,omitempty"`
	Mappings []Mapping `yaml:"mappings"`
}

// EncodePreset writes a preset as YAML.
func EncodePreset(w io.Writer, p Preset) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	return nil
}

// DecodePreset reads a YAML preset and validates the ranges.
func DecodePreset(r io.Reader) (Preset, error) {
	var p Preset
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	for i := range p.Mappings {
		m := &p.Mappings[i]
		if m.Min > m.Max {
			m.Min, m.Max = m.Max, m.Min
		}
		if m.Curve == "" {
			m.Curve = "linear"
		}
	}
	return p, nil
}
