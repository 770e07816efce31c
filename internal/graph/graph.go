package graph

import (
	"math"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
)

// delayRampMs is the smoothing window for large delay-time moves. A
// linear sweep of the read head over 50 ms is audible as a tape-style
// pitch bend on the echo tail.
const delayRampMs = 50

// delayStepThresholdSec: moves at or below 5 ms step instantly instead
// of ramping.
const delayStepThresholdSec = 0.005

// NoteSpec carries everything the graph needs to schedule one note. All
// values are final: the driver has already applied transpose,
// quantization and mode rules.
type NoteSpec struct {
	// Synthesizer source. Ignored when Sampler is set.
	Frequency float64
	Waveform  string

	// Sampler source. A nil Sample with Sampler set schedules a silent,
	// gain-only envelope.
	Sampler      bool
	Sample       *SampleBuffer
	PlaybackRate float64
	OffsetSec    float64

	DurationMs float64
	AttackMs   float64
	ReleaseMs  float64
	Volume     float64

	Pan        float64
	FilterType string
	FilterFreq float64
	FilterQ    float64

	DelayTimeMs   float64
	DelayFeedback float64
	DelayMix      float64
	ReverbDecay   float64
	ReverbMix     float64
}

// Graph owns the persistent effects topology and the live note set, and
// renders stereo float32 frames for the device stream. The zero-latency
// control surface (PlayNote, snapshots) and the render callback share
// one mutex; control code only posts setpoints, so the lock is held
// briefly.
type Graph struct {
	mu         sync.Mutex
	sampleRate int
	srF        float64
	frame      int64
	notes      []*note

	delay              *delayLine
	delayWet, delayDry *Param
	rev                *reverb
	revWet, revDry     *Param
	tap                *analyser

	prevDelaySec float64
	hasPrevDelay bool

	rng          *rand.Rand
	log          *logrus.Entry
	warnedEffect bool
}

// New constructs the graph with its global effects chain. The chain is
// built exactly once per graph; playback only mutates it through
// scheduled parameter updates.
func New(sampleRate int, rng *rand.Rand) *Graph {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Graph{
		sampleRate: sampleRate,
		srF:        float64(sampleRate),
		delay:      newDelayLine(sampleRate, 0.25, 0.3),
		delayWet:   NewParam(0.2),
		delayDry:   NewParam(0.8),
		rev:        newReverb(sampleRate, 1.5, rng),
		revWet:     NewParam(0.25),
		revDry:     NewParam(0.75),
		tap:        newAnalyser(2048),
		rng:        rng,
		log:        logrus.WithFields(logrus.Fields{"system": "graph"}),
	}
}

// SampleRate returns the render rate in Hz.
func (g *Graph) SampleRate() int { return g.sampleRate }

// Frame returns the current render frame.
func (g *Graph) Frame() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frame
}

// PlayNote schedules one note starting now: global effects setpoints,
// source construction, fresh filter/panner, envelope, and the source
// stop at the note's natural end.
func (g *Graph) PlayNote(spec NoteSpec) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t0 := g.frame
	g.updateEffects(t0, spec)

	var src source
	switch {
	case spec.Sampler && spec.Sample != nil:
		src = newSamplerSource(spec.Sample, spec.PlaybackRate, spec.OffsetSec)
	case spec.Sampler:
		// No sample loaded: gain-only silent envelope.
	default:
		src = buildSynthSource(spec.Waveform, spec.Frequency, spec.DurationMs, g.srF, g.rng)
	}

	durF := int64(spec.DurationMs * g.srF / 1000)
	if durF < 1 {
		durF = 1
	}
	filter := newBiquad(spec.FilterType, spec.FilterFreq, spec.FilterQ, g.srF)
	n := newNote(src, filter, spec.Pan, t0, t0+durF)
	scheduleEnvelope(n.env, t0, spec.AttackMs, spec.ReleaseMs, spec.DurationMs, spec.Volume, spec.Sampler, g.srF)
	g.notes = append(g.notes, n)
}

// updateEffects posts this note's global effect setpoints on the audio
// clock. A large delay-time move ramps over delayRampMs; a small one
// steps. Wet and dry gains always sum to 1 per ticked value.
func (g *Graph) updateEffects(t0 int64, spec NoteSpec) {
	if g.delay == nil || g.rev == nil {
		if !g.warnedEffect {
			g.warnedEffect = true
			g.log.Warn("effects chain unavailable; skipping effect updates")
		}
		return
	}

	requested := clampDelaySec(spec.DelayTimeMs / 1000)
	switch {
	case !g.hasPrevDelay:
		g.delay.time.SetValueAt(t0, requested)
	case math.Abs(requested-g.prevDelaySec) > delayStepThresholdSec:
		g.delay.time.SetValueAt(t0, g.prevDelaySec)
		g.delay.time.LinearRampTo(t0+int64(delayRampMs*g.srF/1000), requested)
	default:
		g.delay.time.SetValueAt(t0, requested)
	}
	g.prevDelaySec = requested
	g.hasPrevDelay = true

	fb := spec.DelayFeedback
	if fb < 0 {
		fb = 0
	} else if fb > 0.9 {
		fb = 0.9
	}
	g.delay.feedback.SetValueAt(t0, fb)

	dMix := clamp01(spec.DelayMix)
	g.delayWet.SetValueAt(t0, dMix)
	g.delayDry.SetValueAt(t0, 1-dMix)

	g.rev.SetDecay(spec.ReverbDecay)
	rMix := clamp01(spec.ReverbMix)
	g.revWet.SetValueAt(t0, rMix)
	g.revDry.SetValueAt(t0, 1-rMix)
}

// ResetDelayMemory forgets the previous delay time so the next session's
// first note steps instead of ramping from stale state.
func (g *Graph) ResetDelayMemory() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prevDelaySec = 0
	g.hasPrevDelay = false
}

// ActiveNotes reports how many notes are still sounding.
func (g *Graph) ActiveNotes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.notes)
}

// WaveformSnapshot copies the analyser window, oldest sample first.
func (g *Graph) WaveformSnapshot() []float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tap.snapshot()
}

// ReverbDecay reports the decay the current impulse was generated with.
func (g *Graph) ReverbDecay() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rev.decay
}

// DelayTimeAt reports the delay time in seconds at a given frame,
// consuming no events before the graph reaches it. Intended for tests
// and diagnostics.
func (g *Graph) DelayTimeAt(frame int64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	probe := *g.delay.time
	probe.events = append([]paramEvent(nil), g.delay.time.events...)
	return probe.ValueAt(frame)
}

// Process renders interleaved stereo float32 into dst. It implements
// the device stream's sample source contract and runs on the audio
// callback goroutine.
func (g *Graph) Process(dst []float32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	frames := len(dst) / 2
	for i := 0; i < frames; i++ {
		l, r := g.renderFrame()
		dst[i*2] = float32(l)
		dst[i*2+1] = float32(r)
	}
}

func (g *Graph) renderFrame() (float64, float64) {
	var sumL, sumR float64
	kept := g.notes[:0]
	for _, n := range g.notes {
		if !n.renderInto(g.frame, &sumL, &sumR) {
			kept = append(kept, n)
		}
	}
	g.notes = kept

	// Envelope output feeds the reverb and a dry tap around it; both
	// mix into the delay input, so delay repeats inherit reverb tail.
	revL, revR := g.rev.process(sumL, sumR)
	rw := g.revWet.ValueAt(g.frame)
	rd := g.revDry.ValueAt(g.frame)
	delayInL := sumL*rd + revL*rw
	delayInR := sumR*rd + revR*rw

	echoL, echoR := g.delay.process(delayInL, delayInR, g.frame)
	dw := g.delayWet.ValueAt(g.frame)
	dd := g.delayDry.ValueAt(g.frame)
	outL := delayInL*dd + echoL*dw
	outR := delayInR*dd + echoR*dw

	g.tap.push(outL, outR)
	g.frame++
	return outL, outR
}
