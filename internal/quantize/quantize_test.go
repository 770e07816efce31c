package quantize

import (
	"math"
	"testing"
)

func TestFrequencyLeavesScaleTonesAlone(t *testing.T) {
	// A440 is pitch class 9, a degree of these scales.
	for _, scale := range []Scale{ScalePentatonic, ScaleMajor, ScaleDorian, ScaleMixolydian, ScaleChromatic} {
		if got := Frequency(440, scale); math.Abs(got-440) > 1e-6 {
			t.Errorf("%s: Frequency(440) = %v, want 440", scale, got)
		}
	}
	// The natural minor has no degree 9; A440 must move a semitone.
	got := Frequency(440, ScaleMinor)
	gSharp := 440 * math.Pow(2, -1.0/12)
	bFlat := 440 * math.Pow(2, 1.0/12)
	if math.Abs(got-gSharp) > 1e-6 && math.Abs(got-bFlat) > 1e-6 {
		t.Fatalf("minor snap of 440 = %v, want %v or %v", got, gSharp, bFlat)
	}
}

func TestFrequencySnapsToNearestDegree(t *testing.T) {
	// C#4 (277.18 Hz) is not in the C-rooted pentatonic set; it should
	// snap to a neighbor, not pass through.
	cSharp := 440 * math.Pow(2, (61.0-69)/12)
	got := Frequency(cSharp, ScalePentatonic)
	c4 := 440 * math.Pow(2, (60.0-69)/12)
	d4 := 440 * math.Pow(2, (62.0-69)/12)
	if math.Abs(got-c4) > 1e-6 && math.Abs(got-d4) > 1e-6 {
		t.Fatalf("C#4 snapped to %v, want C4 (%v) or D4 (%v)", got, c4, d4)
	}
}

func TestFrequencyChromaticIsNearlyIdentityOnSemitones(t *testing.T) {
	e5 := 440 * math.Pow(2, (76.0-69)/12)
	if got := Frequency(e5, ScaleChromatic); math.Abs(got-e5) > 1e-6 {
		t.Fatalf("chromatic snap moved an exact semitone: %v != %v", got, e5)
	}
}

func TestFrequencyPassThroughOnUnknownScale(t *testing.T) {
	if got := Frequency(333, Scale("klingon")); got != 333 {
		t.Fatalf("unknown scale should pass through, got %v", got)
	}
	if got := Frequency(-5, ScaleMajor); got != -5 {
		t.Fatalf("non-positive frequency should pass through, got %v", got)
	}
}

func TestSpacingSnapsToGrid(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{100, 125},
		{180, 125},
		{190, 250},
		{605, 500},
		{640, 750},
		{1300, 1500},
		{5000, 2000},
	}
	for _, c := range cases {
		if got := Spacing(c.in); got != c.want {
			t.Errorf("Spacing(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid(ScaleDorian) {
		t.Fatal("dorian should be valid")
	}
	if Valid(Scale("nope")) {
		t.Fatal("unknown scale should be invalid")
	}
}
