package datasynth

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luismqueral/data-synth-sub000/internal/audio"
	"github.com/luismqueral/data-synth-sub000/internal/graph"
	"github.com/luismqueral/data-synth-sub000/internal/mapping"
	"github.com/luismqueral/data-synth-sub000/internal/quantize"
	"github.com/luismqueral/data-synth-sub000/internal/record"
)

// Play starts a playback session. Any running session is superseded:
// the session counter advances, the old loop observes it and exits, and
// a fresh loop starts from the first record. Data ranges are computed
// once here and never recomputed mid-session.
func (e *Engine) Play() error {
	e.mu.Lock()
	if len(e.records) == 0 {
		e.mu.Unlock()
		return ErrNoRecords
	}
	if err := e.ensureOutputLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.stopCh != nil {
		close(e.stopCh)
	}
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	my := e.session.Add(1)
	e.noSampleNotified = false
	e.graph.ResetDelayMemory()

	records := append([]record.Record(nil), e.records...)
	mappings := e.set.Mappings()
	ranges := mapping.DataRanges(records, mappings)
	e.playing.Store(true)
	e.mu.Unlock()

	go e.run(my, stopCh, records, mappings, ranges)
	return nil
}

// Stop ends the current session. It is idempotent and non-blocking:
// the loop's pending sleep is cancelled, the delay-time memory is
// cleared, and a cleared snapshot is published. Notes already scheduled
// on the audio clock play out their tails.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.session.Add(1)
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	wasPlaying := e.playing.Swap(false)
	e.graph.ResetDelayMemory()
	e.mu.Unlock()

	if wasPlaying {
		e.publishTick(Snapshot{Cleared: true})
		e.sendEvent(Event{Kind: EventStopped})
	}
}

// IsPlaying reports whether a session is live.
func (e *Engine) IsPlaying() bool {
	return e.playing.Load()
}

// ensureOutputLocked opens the device stream on first use. This is the
// user-gesture analogue: nothing touches the platform until someone
// asks for sound.
func (e *Engine) ensureOutputLocked() error {
	if e.out != nil || e.noDevice {
		return nil
	}
	out, err := audio.NewPlayer(e.sampleRate, e.graph)
	if err != nil {
		if !e.deviceWarned {
			e.deviceWarned = true
			e.log.WithError(err).Warn("audio device unavailable")
		}
		return err
	}
	e.out = out
	e.out.Play()
	return nil
}

// run is the cooperative playback loop. It owns no engine state: the
// record list, mappings and data ranges were snapshotted at Play. After
// every suspension it re-checks the session counter before any further
// side effect, which is what keeps rapid start/stop chatter down to at
// most one live loop.
func (e *Engine) run(my int64, stopCh <-chan struct{}, records []record.Record, mappings []mapping.Mapping, ranges map[string]mapping.Range) {
	total := len(records)
	for {
		for i, rec := range records {
			if e.session.Load() != my {
				return
			}
			params := mapping.Evaluate(rec, mappings, ranges)
			e.publishTick(Snapshot{
				Record:   rec,
				Params:   params,
				Mappings: mappings,
				Index:    i + 1,
				Total:    total,
				Playing:  true,
			})
			e.scheduleNote(params)

			wait := e.noteWait(params)
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-stopCh:
				timer.Stop()
				return
			}
			if e.session.Load() != my {
				return
			}
		}
		e.sendEvent(Event{Kind: EventLoopCompleted})
	}
}

// noteWait computes the inter-note delay from the evaluated spacing and
// the global speed, optionally snapped to the rhythm grid.
func (e *Engine) noteWait(params mapping.Params) time.Duration {
	e.mu.Lock()
	speed := e.speed
	rq := e.rhythmQuantize
	e.mu.Unlock()

	ms := params[mapping.ParamNoteSpacing] / speed
	if rq {
		ms = quantize.Spacing(ms)
	}
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// scheduleNote turns one tick's parameters into a scheduled note:
// transpose and quantization applied, mode rules resolved, then handed
// to the graph, which posts effects setpoints, builds the source and
// schedules the envelope before the source starts.
func (e *Engine) scheduleNote(params mapping.Params) {
	e.mu.Lock()
	mode := e.mode
	sample := e.sample
	waveform := e.waveform
	filterType := e.filterType
	volume := e.volume
	transpose := e.transpose
	pitchQ := e.pitchQuantize
	scale := e.scale
	randomChop := e.randomChop
	fullNote := e.fullNote
	chopOffset := 0.0
	if mode == ModeSampler && sample != nil && randomChop {
		chopOffset = e.chopOffsetSec(sample.Duration())
	}
	notifyNoSample := mode == ModeSampler && sample == nil && !e.noSampleNotified
	if notifyNoSample {
		e.noSampleNotified = true
	}
	e.mu.Unlock()

	if notifyNoSample {
		e.log.Warn("sampler mode without a loaded sample; emitting silent envelopes")
		e.sendEvent(Event{Kind: EventError, Err: ErrNoSample})
	}

	spec := graph.NoteSpec{
		DurationMs:    params[mapping.ParamDuration],
		AttackMs:      params[mapping.ParamAttack],
		ReleaseMs:     params[mapping.ParamRelease],
		Volume:        volume,
		Pan:           params[mapping.ParamPan],
		FilterType:    filterType,
		FilterFreq:    params[mapping.ParamFilterFreq],
		FilterQ:       params[mapping.ParamFilterQ],
		DelayTimeMs:   params[mapping.ParamDelayTime],
		DelayFeedback: params[mapping.ParamDelayFeedback],
		DelayMix:      params[mapping.ParamDelayMix],
		ReverbDecay:   params[mapping.ParamReverbDecay],
		ReverbMix:     params[mapping.ParamReverbMix],
	}

	if mode == ModeSampler {
		spec.Sampler = true
		spec.Sample = sample
		rate := params[mapping.ParamPitch]
		if rate <= 0 {
			rate = 1
		}
		spec.PlaybackRate = rate * math.Pow(2, float64(transpose)/12)
		if sample != nil {
			dur := sample.Duration()
			switch {
			case randomChop:
				spec.OffsetSec = chopOffset
				spec.DurationMs = 5000
			case fullNote:
				spec.OffsetSec = params[mapping.ParamSampleOffset] * dur
				spec.DurationMs = params[mapping.ParamNoteSpacing]
			default:
				spec.OffsetSec = params[mapping.ParamSampleOffset] * dur
			}
		}
	} else {
		freq := params[mapping.ParamFrequency] * math.Pow(2, float64(transpose)/12)
		if pitchQ {
			freq = quantize.Frequency(freq, scale)
		}
		spec.Frequency = freq
		spec.Waveform = waveform
	}

	e.graph.PlayNote(spec)
}

// chopOffsetSec picks a whole-second chop start that leaves room for
// the 5 s chop window. Callers hold e.mu (the rand source is shared).
func (e *Engine) chopOffsetSec(sampleDurSec float64) float64 {
	maxStart := int(sampleDurSec) - 5
	if maxStart < 0 {
		maxStart = 0
	}
	return float64(e.rng.Intn(maxStart + 1))
}

// publishTick delivers a snapshot to the registered observer. Observer
// failures are contained here; they never reach the audio pipeline.
func (e *Engine) publishTick(s Snapshot) {
	e.mu.Lock()
	fn := e.tick
	e.mu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if e.warnLimiter.Allow() {
				e.log.WithFields(logrus.Fields{"panic": r}).Warn("tick observer failed")
			}
		}
	}()
	fn(s)
}

func (e *Engine) sendEvent(ev Event) {
	e.eventMu.Lock()
	ch := e.eventCh
	e.eventMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event.
		}
	}
}
