// Package quantize snaps continuous audio values onto musical grids: a
// pitch quantizer over named scales and a rhythm quantizer over a
// 120-bpm note grid.
package quantize

import "math"

// Scale names a pitch-class set.
type Scale string

const (
	ScalePentatonic Scale = "pentatonic"
	ScaleMajor      Scale = "major"
	ScaleMinor      Scale = "minor"
	ScaleDorian     Scale = "dorian"
	ScaleMixolydian Scale = "mixolydian"
	ScaleChromatic  Scale = "chromatic"
)

var scaleDegrees = map[Scale][]float64{
	ScalePentatonic: {0, 2, 4, 7, 9},
	ScaleMajor:      {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:      {0, 2, 3, 5, 7, 8, 10},
	ScaleDorian:     {0, 2, 3, 5, 7, 9, 10},
	ScaleMixolydian: {0, 2, 4, 5, 7, 9, 10},
	ScaleChromatic:  {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// Valid reports whether the scale name is known.
func Valid(s Scale) bool {
	_, ok := scaleDegrees[s]
	return ok
}

// Frequency snaps f to the nearest degree of the scale: convert to MIDI
// note space, snap the pitch class, convert back. Unknown scales and
// non-positive frequencies pass through unchanged.
func Frequency(f float64, scale Scale) float64 {
	degrees, ok := scaleDegrees[scale]
	if !ok || f <= 0 {
		return f
	}
	midi := 69 + 12*math.Log2(f/440)
	octave := math.Floor(midi / 12)
	pitchClass := midi - octave*12

	best := degrees[0]
	bestDist := math.Abs(pitchClass - degrees[0])
	for _, d := range degrees[1:] {
		if dist := math.Abs(pitchClass - d); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	// The octave above the top degree can be closer than any in-octave
	// degree (e.g. pitch class 11.5 against a pentatonic set).
	if dist := math.Abs(pitchClass - (degrees[0] + 12)); dist < bestDist {
		best = degrees[0] + 12
	}
	return 440 * math.Pow(2, (octave*12+best-69)/12)
}

// rhythmGrid is eighths through halves at a 120-bpm reference.
var rhythmGrid = []float64{125, 250, 375, 500, 750, 1000, 1500, 2000}

// Spacing snaps a note spacing in milliseconds to the nearest grid slot.
func Spacing(ms float64) float64 {
	best := rhythmGrid[0]
	bestDist := math.Abs(ms - rhythmGrid[0])
	for _, g := range rhythmGrid[1:] {
		if dist := math.Abs(ms - g); dist < bestDist {
			best, bestDist = g, dist
		}
	}
	return best
}
