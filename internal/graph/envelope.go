package graph

// envelopeFloor is the conventional non-zero endpoint for exponential
// gain ramps.
const envelopeFloor = 0.001

// minSamplerEdgeMs floors attack and release in sampler mode: buffer
// playback can begin at any amplitude, so the edges must always fade.
const minSamplerEdgeMs = 3

// scheduleEnvelope posts the four-point gain shape for one note starting
// at frame t0: floor, exponential attack to volume, hold until release
// begins, exponential release back to the floor.
func scheduleEnvelope(env *Param, t0 int64, attackMs, releaseMs, durationMs, volume float64, sampler bool, sampleRate float64) {
	if sampler {
		if attackMs < minSamplerEdgeMs {
			attackMs = minSamplerEdgeMs
		}
		if releaseMs < minSamplerEdgeMs {
			releaseMs = minSamplerEdgeMs
		}
	}
	if attackMs > durationMs {
		attackMs = durationMs
	}
	if releaseMs > durationMs {
		releaseMs = durationMs
	}
	if volume < envelopeFloor {
		volume = envelopeFloor
	}

	toFrames := func(ms float64) int64 {
		f := int64(ms * sampleRate / 1000)
		if f < 1 {
			f = 1
		}
		return f
	}
	attackF := toFrames(attackMs)
	releaseF := toFrames(releaseMs)
	durF := toFrames(durationMs)

	sustainStart := durF - releaseF
	if sustainStart < attackF {
		sustainStart = attackF
	}

	env.SetValueAt(t0, envelopeFloor)
	env.ExponentialRampTo(t0+attackF, volume)
	env.SetValueAt(t0+sustainStart, volume)
	env.ExponentialRampTo(t0+durF, envelopeFloor)
}
