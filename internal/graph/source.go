package graph

import (
	"math"
	"math/rand"
)

// Waveform identifiers accepted by the synthesizer source builder.
const (
	WaveSine       = "sine"
	WaveSquare     = "square"
	WaveSawtooth   = "sawtooth"
	WaveTriangle   = "triangle"
	WaveWhiteNoise = "white-noise"
	WavePinkNoise  = "pink-noise"
	WaveBrownNoise = "brown-noise"
	WaveFM         = "fm"
	WaveAdditive   = "additive"
	WavePWM        = "pwm"
)

// Waveforms lists every supported synthesizer waveform.
var Waveforms = []string{
	WaveSine, WaveSquare, WaveSawtooth, WaveTriangle,
	WaveWhiteNoise, WavePinkNoise, WaveBrownNoise,
	WaveFM, WaveAdditive, WavePWM,
}

// source produces one mono sample per call at the graph sample rate.
type source interface {
	render() float64
}

type oscShape int

const (
	shapeSine oscShape = iota
	shapeSquare
	shapeSawtooth
	shapeTriangle
)

type oscillator struct {
	phase float64 // cycles, [0,1)
	inc   float64
	shape oscShape
}

func newOscillator(shape oscShape, freq, sampleRate float64) *oscillator {
	return &oscillator{inc: freq / sampleRate, shape: shape}
}

func (o *oscillator) render() float64 {
	var out float64
	switch o.shape {
	case shapeSquare:
		if o.phase < 0.5 {
			out = 1
		} else {
			out = -1
		}
	case shapeSawtooth:
		out = 2*math.Mod(o.phase+0.5, 1) - 1
	case shapeTriangle:
		out = 1 - 4*math.Abs(math.Mod(o.phase+0.25, 1)-0.5)
	default:
		out = math.Sin(2 * math.Pi * o.phase)
	}
	o.phase += o.inc
	if o.phase >= 1 {
		o.phase -= 1
	}
	return out
}

// fmSource is a carrier with a sine modulator at 2.5x the carrier
// frequency and a deviation of 0.8x. The modulator lives and dies with
// the carrier: both stop at the note's stop frame.
type fmSource struct {
	freq       float64
	depth      float64 // frequency deviation in Hz
	sampleRate float64
	carPhase   float64 // radians
	modPhase   float64
	modInc     float64
}

func newFMSource(freq, sampleRate float64) *fmSource {
	return &fmSource{
		freq:       freq,
		depth:      freq * 0.8,
		sampleRate: sampleRate,
		modInc:     2 * math.Pi * freq * 2.5 / sampleRate,
	}
}

func (s *fmSource) render() float64 {
	mod := math.Sin(s.modPhase)
	s.modPhase += s.modInc
	s.carPhase += 2 * math.Pi * (s.freq + s.depth*mod) / s.sampleRate
	return math.Sin(s.carPhase)
}

// additiveSource sums a fundamental at 0.6 with partials at 2f, 3f, 4f
// scaled 0.3/h.
type additiveSource struct {
	phases [4]float64
	incs   [4]float64
	gains  [4]float64
}

func newAdditiveSource(freq, sampleRate float64) *additiveSource {
	s := &additiveSource{}
	for h := 0; h < 4; h++ {
		s.incs[h] = 2 * math.Pi * freq * float64(h+1) / sampleRate
		if h == 0 {
			s.gains[h] = 0.6
		} else {
			s.gains[h] = 0.3 / float64(h+1)
		}
	}
	return s
}

func (s *additiveSource) render() float64 {
	var out float64
	for h := 0; h < 4; h++ {
		out += math.Sin(s.phases[h]) * s.gains[h]
		s.phases[h] += s.incs[h]
	}
	return out
}

// bufferSource plays a pre-generated buffer once, then silence.
type bufferSource struct {
	buf []float64
	pos int
}

func (s *bufferSource) render() float64 {
	if s.pos >= len(s.buf) {
		return 0
	}
	v := s.buf[s.pos]
	s.pos++
	return v
}

func whiteNoise(n int, rng *rand.Rand) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = rng.Float64()*2 - 1
	}
	return buf
}

// pinkNoise uses Paul Kellett's 7-coefficient filtered-white method.
func pinkNoise(n int, rng *rand.Rand) []float64 {
	buf := make([]float64, n)
	var b0, b1, b2, b3, b4, b5, b6 float64
	for i := range buf {
		w := rng.Float64()*2 - 1
		b0 = 0.99886*b0 + w*0.0555179
		b1 = 0.99332*b1 + w*0.0750759
		b2 = 0.96900*b2 + w*0.1538520
		b3 = 0.86650*b3 + w*0.3104856
		b4 = 0.55000*b4 + w*0.5329522
		b5 = -0.7616*b5 - w*0.0168980
		buf[i] = (b0 + b1 + b2 + b3 + b4 + b5 + b6 + w*0.5362) * 0.11
		b6 = w * 0.115926
	}
	return buf
}

// brownNoise leaky-integrates white noise, scaled by 3.5 to restore
// loudness lost to the integration.
func brownNoise(n int, rng *rand.Rand) []float64 {
	buf := make([]float64, n)
	var last float64
	for i := range buf {
		w := rng.Float64()*2 - 1
		last = (last + 0.02*w) / 1.02
		buf[i] = last * 3.5
	}
	return buf
}

// buildSynthSource constructs the per-note source for a synthesizer
// waveform. Noise waveforms pre-generate a buffer sized to the note
// duration. PWM is a plain square for now; duty-cycle modulation is a
// reserved extension.
func buildSynthSource(waveform string, freq, durationMs, sampleRate float64, rng *rand.Rand) source {
	switch waveform {
	case WaveSquare, WavePWM:
		return newOscillator(shapeSquare, freq, sampleRate)
	case WaveSawtooth:
		return newOscillator(shapeSawtooth, freq, sampleRate)
	case WaveTriangle:
		return newOscillator(shapeTriangle, freq, sampleRate)
	case WaveWhiteNoise:
		return &bufferSource{buf: whiteNoise(noiseLen(durationMs, sampleRate), rng)}
	case WavePinkNoise:
		return &bufferSource{buf: pinkNoise(noiseLen(durationMs, sampleRate), rng)}
	case WaveBrownNoise:
		return &bufferSource{buf: brownNoise(noiseLen(durationMs, sampleRate), rng)}
	case WaveFM:
		return newFMSource(freq, sampleRate)
	case WaveAdditive:
		return newAdditiveSource(freq, sampleRate)
	default:
		return newOscillator(shapeSine, freq, sampleRate)
	}
}

func noiseLen(durationMs, sampleRate float64) int {
	n := int(math.Ceil(durationMs * sampleRate / 1000))
	if n < 1 {
		n = 1
	}
	return n
}

// samplerSource reads the loaded sample buffer at a variable rate from a
// start offset, mixed down to mono ahead of the per-note filter.
type samplerSource struct {
	sample *SampleBuffer
	pos    float64 // frames into the sample
	rate   float64
}

func newSamplerSource(sample *SampleBuffer, rate, offsetSec float64) *samplerSource {
	if rate <= 0 {
		rate = 1
	}
	return &samplerSource{
		sample: sample,
		pos:    offsetSec * float64(sample.SampleRate),
		rate:   rate,
	}
}

func (s *samplerSource) render() float64 {
	frames := s.sample.Frames()
	i := int(s.pos)
	if i < 0 || i >= frames-1 {
		return 0
	}
	frac := s.pos - float64(i)
	s.pos += s.rate
	var out float64
	for _, ch := range s.sample.Data {
		out += float64(ch[i])*(1-frac) + float64(ch[i+1])*frac
	}
	return out / float64(len(s.sample.Data))
}
