package graph

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/dsp/fourier"
)

// convBlock is the uniform partition size of the convolver. Output lags
// the input by one block.
const convBlock = 512

// decayEpsilonSec is the regeneration threshold: the impulse is rebuilt
// only when the requested decay moves further than this from the decay
// the current impulse was generated with.
const decayEpsilonSec = 0.5

// reverb is a convolution reverb over a synthesized stereo noise
// impulse. The impulse is regenerated when the requested decay drifts;
// convolution runs as uniform partitioned overlap-add via gonum's FFT.
type reverb struct {
	sampleRate int
	decay      float64
	rng        *rand.Rand
	convL      *convolver
	convR      *convolver
}

func newReverb(sampleRate int, decaySec float64, rng *rand.Rand) *reverb {
	r := &reverb{sampleRate: sampleRate, rng: rng}
	r.regenerate(decaySec)
	return r
}

// SetDecay regenerates the impulse iff the requested decay differs from
// the current one by more than the threshold.
func (r *reverb) SetDecay(decaySec float64) {
	if math.Abs(decaySec-r.decay) <= decayEpsilonSec {
		return
	}
	r.regenerate(decaySec)
}

func (r *reverb) regenerate(decaySec float64) {
	if decaySec < 0.1 {
		decaySec = 0.1
	} else if decaySec > 8 {
		decaySec = 8
	}
	impL, impR := synthesizeImpulse(decaySec, r.sampleRate, r.rng)
	r.convL = newConvolver(impL)
	r.convR = newConvolver(impR)
	r.decay = decaySec
}

func (r *reverb) process(l, rIn float64) (float64, float64) {
	return r.convL.process(l), r.convR.process(rIn)
}

// synthesizeImpulse builds a stereo noise burst of decaySec seconds with
// a (1 - i/length)^decay amplitude contour, normalized to unit energy
// per channel so wet level stays independent of decay length.
func synthesizeImpulse(decaySec float64, sampleRate int, rng *rand.Rand) ([]float64, []float64) {
	length := int(decaySec * float64(sampleRate))
	if length < 1 {
		length = 1
	}
	impL := make([]float64, length)
	impR := make([]float64, length)
	for i := 0; i < length; i++ {
		env := math.Pow(1-float64(i)/float64(length), decaySec)
		impL[i] = (rng.Float64()*2 - 1) * env
		impR[i] = (rng.Float64()*2 - 1) * env
	}
	normalizeEnergy(impL)
	normalizeEnergy(impR)
	return impL, impR
}

func normalizeEnergy(imp []float64) {
	var sum float64
	for _, v := range imp {
		sum += v * v
	}
	if sum <= 0 {
		return
	}
	scale := 1 / math.Sqrt(sum)
	for i := range imp {
		imp[i] *= scale
	}
}

// convolver convolves a mono stream against a fixed kernel using
// uniform partitioned overlap-add in the frequency domain.
type convolver struct {
	fft     *fourier.FFT
	parts   [][]complex128 // kernel partition spectra
	history [][]complex128 // ring of recent input block spectra
	histPos int

	inBlock []float64 // current input block being gathered
	inPos   int
	outCur  []float64 // output for the block being consumed
	overlap []float64 // tail carried into the next block

	seq   []float64    // scratch, length 2*convBlock
	spec  []complex128 // scratch spectrum
	acc   []complex128 // multiply-accumulate scratch
	timeD []float64    // inverse-transform scratch
}

func newConvolver(impulse []float64) *convolver {
	n := 2 * convBlock
	fft := fourier.NewFFT(n)
	bins := n/2 + 1

	nParts := (len(impulse) + convBlock - 1) / convBlock
	if nParts < 1 {
		nParts = 1
	}
	c := &convolver{
		fft:     fft,
		parts:   make([][]complex128, nParts),
		history: make([][]complex128, nParts),
		inBlock: make([]float64, convBlock),
		outCur:  make([]float64, convBlock),
		overlap: make([]float64, convBlock),
		seq:     make([]float64, n),
		spec:    make([]complex128, bins),
		acc:     make([]complex128, bins),
		timeD:   make([]float64, n),
	}
	for p := 0; p < nParts; p++ {
		for i := range c.seq {
			c.seq[i] = 0
		}
		start := p * convBlock
		end := start + convBlock
		if end > len(impulse) {
			end = len(impulse)
		}
		copy(c.seq, impulse[start:end])
		c.parts[p] = fft.Coefficients(nil, c.seq)
		c.history[p] = make([]complex128, bins)
	}
	return c
}

func (c *convolver) process(x float64) float64 {
	out := c.outCur[c.inPos]
	c.inBlock[c.inPos] = x
	c.inPos++
	if c.inPos == convBlock {
		c.computeBlock()
		c.inPos = 0
	}
	return out
}

func (c *convolver) computeBlock() {
	copy(c.seq, c.inBlock)
	for i := convBlock; i < len(c.seq); i++ {
		c.seq[i] = 0
	}
	copy(c.history[c.histPos], c.fft.Coefficients(c.spec, c.seq))

	for i := range c.acc {
		c.acc[i] = 0
	}
	for k, part := range c.parts {
		idx := c.histPos - k
		if idx < 0 {
			idx += len(c.history)
		}
		h := c.history[idx]
		for i := range c.acc {
			c.acc[i] += part[i] * h[i]
		}
	}

	c.timeD = c.fft.Sequence(c.timeD, c.acc)
	scale := 1 / float64(len(c.seq))
	for i := 0; i < convBlock; i++ {
		c.outCur[i] = c.timeD[i]*scale + c.overlap[i]
		c.overlap[i] = c.timeD[convBlock+i] * scale
	}
	c.histPos++
	if c.histPos >= len(c.history) {
		c.histPos = 0
	}
}
