package graph

import "math"

// maxDelaySec bounds the delay line memory.
const maxDelaySec = 2.0

// delayLine is a stereo feedback delay whose delay time is an
// automatable parameter. Ramping the time sweeps the fractional read
// position, which is what produces the tape-style pitch bend on the
// echo tail.
type delayLine struct {
	bufL, bufR []float64
	pos        int
	sampleRate float64
	time       *Param // seconds
	feedback   *Param
}

func newDelayLine(sampleRate int, initialSec, initialFeedback float64) *delayLine {
	n := int(float64(sampleRate)*maxDelaySec) + 2
	return &delayLine{
		bufL:       make([]float64, n),
		bufR:       make([]float64, n),
		sampleRate: float64(sampleRate),
		time:       NewParam(initialSec),
		feedback:   NewParam(initialFeedback),
	}
}

func (d *delayLine) process(inL, inR float64, frame int64) (float64, float64) {
	ds := d.time.ValueAt(frame) * d.sampleRate
	limit := float64(len(d.bufL) - 2)
	if ds < 1 {
		ds = 1
	} else if ds > limit {
		ds = limit
	}

	read := float64(d.pos) - ds
	for read < 0 {
		read += float64(len(d.bufL))
	}
	i := int(read)
	frac := read - float64(i)
	j := i + 1
	if j >= len(d.bufL) {
		j = 0
	}
	outL := d.bufL[i]*(1-frac) + d.bufL[j]*frac
	outR := d.bufR[i]*(1-frac) + d.bufR[j]*frac

	fb := d.feedback.ValueAt(frame)
	if fb < 0 {
		fb = 0
	} else if fb > 0.9 {
		fb = 0.9
	}
	d.bufL[d.pos] = inL + outL*fb
	d.bufR[d.pos] = inR + outR*fb
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return outL, outR
}

func (d *delayLine) reset() {
	for i := range d.bufL {
		d.bufL[i] = 0
		d.bufR[i] = 0
	}
	d.pos = 0
}

// clamp01 keeps a mix value in [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampDelaySec keeps a requested delay time inside the line's range.
func clampDelaySec(sec float64) float64 {
	return math.Min(math.Max(sec, 0.001), maxDelaySec)
}
