// Package datasynth is a real-time data sonification engine: it ingests
// structured records, plans a mapping from their numeric fields to
// audio parameters, and loops through the records emitting one note per
// record through a persistent synthesis and effects graph.
package datasynth

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/luismqueral/data-synth-sub000/internal/audio"
	"github.com/luismqueral/data-synth-sub000/internal/config"
	"github.com/luismqueral/data-synth-sub000/internal/graph"
	"github.com/luismqueral/data-synth-sub000/internal/mapping"
	"github.com/luismqueral/data-synth-sub000/internal/quantize"
	"github.com/luismqueral/data-synth-sub000/internal/record"
)

// Record re-exports the input record type.
type Record = record.Record

// Mapping re-exports the parameter binding type.
type Mapping = mapping.Mapping

// MappingUpdate re-exports the partial-update type used by SetMapping.
type MappingUpdate = mapping.Partial

// SampleInfo summarizes a successfully decoded sample.
type SampleInfo struct {
	Duration   float64
	SampleRate int
	Channels   int
}

// Mode selects the note source family.
type Mode string

const (
	ModeSynthesizer Mode = "synthesizer"
	ModeSampler     Mode = "sampler"
)

type EngineOption func(*engineConfig)

type engineConfig struct {
	sampleRate int
	seed       int64
	cfg        *config.Config
}

func defaultEngineConfig() engineConfig {
	return engineConfig{sampleRate: 44100, seed: time.Now().UnixNano()}
}

// WithSampleRate overrides the render rate.
func WithSampleRate(hz int) EngineOption {
	return func(c *engineConfig) {
		if hz > 0 {
			c.sampleRate = hz
		}
	}
}

// WithSeed fixes the random source, for reproducible randomize
// operations and chop choices.
func WithSeed(seed int64) EngineOption {
	return func(c *engineConfig) { c.seed = seed }
}

// WithConfig applies a loaded configuration (sample rate, volume,
// speed, waveform, filter, mode, quantizers).
func WithConfig(cfg config.Config) EngineOption {
	return func(c *engineConfig) {
		if cfg.SampleRate > 0 {
			c.sampleRate = cfg.SampleRate
		}
		c.cfg = &cfg
	}
}

// Engine is the sonification core: data model, mapping state, playback
// driver, and the audio graph. All methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	log        *logrus.Entry
	sampleRate int
	graph      *graph.Graph
	out        *audio.Player
	noDevice   bool // render without opening the platform device (tests)
	rng        *rand.Rand

	records []record.Record
	paths   []record.PathDescriptor
	set     *mapping.Set
	mode    Mode
	sample  *graph.SampleBuffer

	volume         float64
	speed          float64
	transpose      int
	waveform       string
	filterType     string
	pitchQuantize  bool
	scale          quantize.Scale
	rhythmQuantize bool
	randomChop     bool
	fullNote       bool

	tick        TickFunc
	warnLimiter *rate.Limiter

	eventMu sync.Mutex
	eventCh chan Event

	session          atomic.Int64
	playing          atomic.Bool
	stopCh           chan struct{}
	noSampleNotified bool
	deviceWarned     bool
}

// NewEngine constructs the engine and its audio graph. The platform
// audio device itself is opened lazily on the first Play.
func NewEngine(opts ...EngineOption) *Engine {
	ec := defaultEngineConfig()
	for _, opt := range opts {
		opt(&ec)
	}
	// The graph renders on the device goroutine; it gets its own random
	// source rather than sharing the engine's.
	rng := rand.New(rand.NewSource(ec.seed))
	graphRng := rand.New(rand.NewSource(ec.seed + 1))
	e := &Engine{
		log:         logrus.WithFields(logrus.Fields{"system": "engine"}),
		sampleRate:  ec.sampleRate,
		graph:       graph.New(ec.sampleRate, graphRng),
		rng:         rng,
		set:         mapping.NewSet(mapping.SynthParameters()),
		mode:        ModeSynthesizer,
		volume:      0.8,
		speed:       1.0,
		waveform:    graph.WaveSine,
		filterType:  graph.FilterLowpass,
		scale:       quantize.ScalePentatonic,
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
	if ec.cfg != nil {
		e.applyConfig(*ec.cfg)
	}
	return e
}

func (e *Engine) applyConfig(cfg config.Config) {
	e.volume = clamp01(cfg.MasterVolume)
	if cfg.Speed > 0 {
		e.speed = cfg.Speed
	}
	e.transpose = cfg.Transpose
	if validWaveform(cfg.Waveform) {
		e.waveform = cfg.Waveform
	}
	if validFilterType(cfg.FilterType) {
		e.filterType = cfg.FilterType
	}
	if Mode(cfg.Mode) == ModeSampler {
		e.mode = ModeSampler
		e.set = mapping.NewSet(mapping.SamplerParameters())
	}
	e.pitchQuantize = cfg.PitchQuantize
	if quantize.Valid(quantize.Scale(cfg.Scale)) {
		e.scale = quantize.Scale(cfg.Scale)
	}
	e.rhythmQuantize = cfg.RhythmQuantize
}

// Close stops playback and releases the device stream.
func (e *Engine) Close() error {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return nil
	}
	err := e.out.Close()
	e.out = nil
	return err
}

// SetRecords hands the engine an already-parsed record array. It runs
// path discovery and a fresh planner pass over the new data.
func (e *Engine) SetRecords(records []Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append([]record.Record(nil), records...)
	e.paths = record.Discover(e.records)
	e.set.Plan(e.records, e.paths)
	e.log.WithFields(logrus.Fields{
		"records": len(e.records),
		"paths":   len(e.paths),
	}).Info("records loaded")
}

// Paths returns the discovered path descriptors.
func (e *Engine) Paths() []record.PathDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]record.PathDescriptor(nil), e.paths...)
}

// Mappings returns the current mapping per audio parameter.
func (e *Engine) Mappings() []Mapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.Mappings()
}

// SetMapping merges a partial update into one parameter's mapping. A
// non-empty path must name a discovered numeric path.
func (e *Engine) SetMapping(paramID string, update MappingUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if update.Path != nil && *update.Path != "" && !e.hasNumericPath(*update.Path) {
		return fmt.Errorf("path %q is not a discovered numeric path", *update.Path)
	}
	return e.set.Apply(paramID, update)
}

func (e *Engine) hasNumericPath(path string) bool {
	for _, d := range record.NumericPaths(e.paths) {
		if d.Path == path {
			return true
		}
	}
	return false
}

// RandomizePaths rebinds parameters to random numeric paths.
func (e *Engine) RandomizePaths() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set.RandomizePaths(e.paths, e.rng)
}

// RandomizeRanges perturbs every mapping's output range.
func (e *Engine) RandomizeRanges() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set.RandomizeRanges(e.rng)
}

// RandomizeAll randomizes paths, then ranges.
func (e *Engine) RandomizeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set.RandomizePaths(e.paths, e.rng)
	e.set.RandomizeRanges(e.rng)
}

// ResetMappings restores parameter defaults and re-runs the planner
// over the current records.
func (e *Engine) ResetMappings() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set.Reset()
	e.set.Plan(e.records, e.paths)
}

// SetMode switches between synthesizer and sampler parameter sets,
// invalidates mappings keyed to parameters no longer present, and
// re-runs the planner. The audio graph and effects chain are untouched.
// Leaving sampler mode releases the loaded sample.
func (e *Engine) SetMode(mode Mode) error {
	if mode != ModeSynthesizer && mode != ModeSampler {
		return fmt.Errorf("unknown mode %q", mode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if mode == e.mode {
		return nil
	}
	if e.mode == ModeSampler {
		e.sample = nil
	}
	e.mode = mode
	if mode == ModeSampler {
		e.set.SwitchParameters(mapping.SamplerParameters())
	} else {
		e.set.SwitchParameters(mapping.SynthParameters())
	}
	e.set.Plan(e.records, e.paths)
	return nil
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// LoadSample decodes a WAV sample for sampler mode. Decode failures
// leave any previously loaded sample intact.
func (e *Engine) LoadSample(data []byte) (SampleInfo, error) {
	stream, err := wav.DecodeWithSampleRate(e.sampleRate, bytes.NewReader(data))
	if err != nil {
		return SampleInfo{}, &DecodeError{Err: err}
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return SampleInfo{}, &DecodeError{Err: err}
	}
	// Decoded stream is 16-bit little-endian stereo at the engine rate.
	frames := len(pcm) / 4
	if frames == 0 {
		return SampleInfo{}, &DecodeError{Err: fmt.Errorf("empty sample")}
	}
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8)
		r := int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8)
		left[i] = float32(l) / 32768
		right[i] = float32(r) / 32768
	}
	buf := &graph.SampleBuffer{Data: [][]float32{left, right}, SampleRate: e.sampleRate}

	e.mu.Lock()
	e.sample = buf
	e.mu.Unlock()

	info := SampleInfo{Duration: buf.Duration(), SampleRate: buf.SampleRate, Channels: buf.Channels()}
	e.log.WithFields(logrus.Fields{
		"duration": info.Duration,
		"channels": info.Channels,
	}).Info("sample loaded")
	return info, nil
}

// ClearSample releases the loaded sample.
func (e *Engine) ClearSample() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sample = nil
}

// SetVolume sets the master volume in [0,1]; it takes effect on the
// next note's envelope.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = clamp01(v)
}

// SetTranspose sets the global pitch shift in semitones.
func (e *Engine) SetTranspose(semitones int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transpose = semitones
}

// SetSpeed sets the global tempo multiplier applied to note spacing.
func (e *Engine) SetSpeed(mult float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mult > 0 {
		e.speed = mult
	}
}

// SetWaveform selects the synthesizer waveform.
func (e *Engine) SetWaveform(waveform string) error {
	if !validWaveform(waveform) {
		return fmt.Errorf("unknown waveform %q", waveform)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waveform = waveform
	return nil
}

// SetFilterType selects the per-note filter response.
func (e *Engine) SetFilterType(kind string) error {
	if !validFilterType(kind) {
		return fmt.Errorf("unknown filter type %q", kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filterType = kind
	return nil
}

// SetPitchQuantize toggles snapping synthesized pitches to a scale.
func (e *Engine) SetPitchQuantize(enabled bool, scale string) error {
	s := quantize.Scale(scale)
	if enabled && !quantize.Valid(s) {
		return fmt.Errorf("unknown scale %q", scale)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pitchQuantize = enabled
	if enabled {
		e.scale = s
	}
	return nil
}

// SetRhythmQuantize toggles snapping note spacing to the rhythm grid.
func (e *Engine) SetRhythmQuantize(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rhythmQuantize = enabled
}

// SetRandomChop toggles sampler random-chop playback. Random chop takes
// precedence over full-note duration.
func (e *Engine) SetRandomChop(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.randomChop = enabled
}

// SetFullNoteDuration makes sampler notes span the full note spacing.
func (e *Engine) SetFullNoteDuration(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fullNote = enabled
}

// OnTick registers the observer callback for per-note snapshots.
func (e *Engine) OnTick(fn TickFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = fn
}

// Watch returns a buffered channel of lifecycle events. Only the most
// recent Watch channel receives events.
func (e *Engine) Watch() <-chan Event {
	ch := make(chan Event, 8)
	e.eventMu.Lock()
	e.eventCh = ch
	e.eventMu.Unlock()
	return ch
}

// Analyser returns the most recent output window for waveform display,
// oldest sample first.
func (e *Engine) Analyser() []float32 {
	return e.graph.WaveformSnapshot()
}

// SavePreset writes the current mapping configuration as YAML.
func (e *Engine) SavePreset(w io.Writer) error {
	e.mu.Lock()
	p := mapping.Preset{
		Mode:     string(e.mode),
		Waveform: e.waveform,
		Mappings: e.set.Mappings(),
	}
	e.mu.Unlock()
	return mapping.EncodePreset(w, p)
}

// LoadPreset restores a YAML mapping preset: mode first (so the right
// parameter set is in force), then waveform and mappings.
func (e *Engine) LoadPreset(r io.Reader) error {
	p, err := mapping.DecodePreset(r)
	if err != nil {
		return err
	}
	if p.Mode != "" {
		if err := e.SetMode(Mode(p.Mode)); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if validWaveform(p.Waveform) {
		e.waveform = p.Waveform
	}
	e.set.Restore(p.Mappings)
	return nil
}

func validWaveform(w string) bool {
	for _, v := range graph.Waveforms {
		if v == w {
			return true
		}
	}
	return false
}

func validFilterType(k string) bool {
	switch k {
	case graph.FilterLowpass, graph.FilterHighpass, graph.FilterBandpass, graph.FilterNotch:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
