package datasynth

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/luismqueral/data-synth-sub000/internal/mapping"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(WithSeed(42))
	e.noDevice = true
	t.Cleanup(func() { e.Stop() })
	return e
}

func testRecords() []Record {
	return []Record{
		{"properties": map[string]any{"mag": 4.5}},
		{"properties": map[string]any{"mag": 3.2}},
		{"properties": map[string]any{"mag": 5.1}},
	}
}

// fastSpacing pins noteSpacing to a fixed small value so timing tests
// tick quickly and predictably.
func fastSpacing(t *testing.T, e *Engine, ms float64) {
	t.Helper()
	empty := ""
	if err := e.SetMapping(mapping.ParamNoteSpacing, MappingUpdate{Path: &empty, Fixed: &ms}); err != nil {
		t.Fatal(err)
	}
}

type tickLog struct {
	mu    sync.Mutex
	ticks []Snapshot
}

func (l *tickLog) add(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks = append(l.ticks, s)
}

func (l *tickLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ticks)
}

func (l *tickLog) clearedSeen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.ticks {
		if s.Cleared {
			return true
		}
	}
	return false
}

func TestPlayWithoutRecords(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Play(); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("Play with no records = %v, want ErrNoRecords", err)
	}
}

func TestPlayStopPlayKeepsOneLiveLoop(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())
	fastSpacing(t, e, 20)

	log := &tickLog{}
	e.OnTick(log.add)

	// Synchronous chatter: the middle stop must clear, and only the
	// last session may keep ticking.
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	e.Stop()
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	if !e.IsPlaying() {
		t.Fatal("engine should report playing after final Play")
	}
	time.Sleep(150 * time.Millisecond)
	if !log.clearedSeen() {
		t.Fatal("observer should see a cleared event between sessions")
	}

	e.Stop()
	if e.IsPlaying() {
		t.Fatal("engine should not report playing after Stop")
	}
	settled := log.count()
	time.Sleep(150 * time.Millisecond)
	if got := log.count(); got != settled {
		t.Fatalf("ghost loop advanced after stop: %d -> %d ticks", settled, got)
	}
}

func TestTickSnapshotsAdvanceIndex(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())
	fastSpacing(t, e, 15)

	log := &tickLog{}
	e.OnTick(log.add)
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	e.Stop()

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.ticks) < 3 {
		t.Fatalf("expected several ticks, got %d", len(log.ticks))
	}
	for i, s := range log.ticks {
		if s.Cleared {
			continue
		}
		if s.Total != 3 {
			t.Fatalf("tick %d total = %d, want 3", i, s.Total)
		}
		if s.Index < 1 || s.Index > 3 {
			t.Fatalf("tick %d index = %d out of range", i, s.Index)
		}
		if s.Params == nil || s.Record == nil {
			t.Fatalf("tick %d missing params or record", i)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	log := &tickLog{}
	e.OnTick(log.add)
	e.Stop()
	e.Stop()
	if log.count() != 0 {
		t.Fatal("stop without a session should not publish cleared")
	}
}

func TestObserverPanicIsContained(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())
	fastSpacing(t, e, 15)
	e.OnTick(func(Snapshot) { panic("observer bug") })
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if !e.IsPlaying() {
		t.Fatal("observer panic must not kill the driver")
	}
	e.Stop()
}

func TestModeSwitchSwapsParameterSet(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())

	if err := e.SetMode(ModeSampler); err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, m := range e.Mappings() {
		ids[m.Param] = true
	}
	if ids[mapping.ParamFrequency] {
		t.Fatal("sampler set should not contain frequency")
	}
	if !ids[mapping.ParamPitch] || !ids[mapping.ParamSampleOffset] {
		t.Fatal("sampler set should add pitch and sampleOffset")
	}

	if err := e.SetMode(ModeSynthesizer); err != nil {
		t.Fatal(err)
	}
	ids = map[string]bool{}
	for _, m := range e.Mappings() {
		ids[m.Param] = true
	}
	if !ids[mapping.ParamFrequency] || ids[mapping.ParamPitch] {
		t.Fatal("synth set should restore frequency and drop pitch")
	}

	if err := e.SetMode(Mode("granular")); err == nil {
		t.Fatal("unknown mode should error")
	}
}

func TestSamplerWithoutSampleNotifiesOncePerSession(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())
	if err := e.SetMode(ModeSampler); err != nil {
		t.Fatal(err)
	}
	fastSpacing(t, e, 15)

	events := e.Watch()
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	e.Stop()

	noSample := 0
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventError && errors.Is(ev.Err, ErrNoSample) {
				noSample++
			}
			continue
		default:
		}
		break
	}
	if noSample != 1 {
		t.Fatalf("no-sample notice count = %d, want exactly 1 per session", noSample)
	}
}

func TestSetMappingRejectsUnknownPath(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())
	bogus := "does.not.exist"
	if err := e.SetMapping(mapping.ParamPan, MappingUpdate{Path: &bogus}); err == nil {
		t.Fatal("unknown path should be rejected")
	}
	real := "properties.mag"
	if err := e.SetMapping(mapping.ParamPan, MappingUpdate{Path: &real}); err != nil {
		t.Fatalf("discovered path rejected: %v", err)
	}
}

func TestControlValidation(t *testing.T) {
	e := newTestEngine(t)
	e.SetVolume(-2)
	if e.volume != 0 {
		t.Fatalf("volume should clamp to 0, got %v", e.volume)
	}
	e.SetVolume(3)
	if e.volume != 1 {
		t.Fatalf("volume should clamp to 1, got %v", e.volume)
	}
	if err := e.SetWaveform("zigzag"); err == nil {
		t.Fatal("unknown waveform should error")
	}
	if err := e.SetWaveform("pink-noise"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetFilterType("allpass"); err == nil {
		t.Fatal("unknown filter should error")
	}
	if err := e.SetPitchQuantize(true, "klingon"); err == nil {
		t.Fatal("unknown scale should error")
	}
	if err := e.SetPitchQuantize(true, "dorian"); err != nil {
		t.Fatal(err)
	}
}

// makeWAV builds a minimal PCM16 stereo WAV at the given rate.
func makeWAV(sampleRate, frames int) []byte {
	var buf bytes.Buffer
	dataSize := frames * 4
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*4))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < frames; i++ {
		v := int16(i % 1000)
		binary.Write(&buf, binary.LittleEndian, v)
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestLoadSampleReportsInfo(t *testing.T) {
	e := newTestEngine(t)
	info, err := e.LoadSample(makeWAV(44100, 44100))
	if err != nil {
		t.Fatal(err)
	}
	if info.Channels != 2 {
		t.Fatalf("channels = %d, want 2", info.Channels)
	}
	if info.Duration < 0.9 || info.Duration > 1.1 {
		t.Fatalf("duration = %v, want ~1s", info.Duration)
	}
}

func TestLoadSampleDecodeFailureKeepsPrior(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.LoadSample(makeWAV(44100, 4410)); err != nil {
		t.Fatal(err)
	}
	_, err := e.LoadSample([]byte("definitely not a wav"))
	if err == nil {
		t.Fatal("garbage should fail to decode")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error should be a DecodeError, got %T", err)
	}
	if e.sample == nil {
		t.Fatal("decode failure must leave the prior sample intact")
	}
}

func TestClearSampleAndModeSwitchReleaseSample(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetMode(ModeSampler); err != nil {
		t.Fatal(err)
	}
	if _, err := e.LoadSample(makeWAV(44100, 4410)); err != nil {
		t.Fatal(err)
	}
	if e.sample == nil {
		t.Fatal("sample should be held after load")
	}
	if err := e.SetMode(ModeSynthesizer); err != nil {
		t.Fatal(err)
	}
	if e.sample != nil {
		t.Fatal("leaving sampler mode should release the sample")
	}

	if err := e.SetMode(ModeSampler); err != nil {
		t.Fatal(err)
	}
	if _, err := e.LoadSample(makeWAV(44100, 4410)); err != nil {
		t.Fatal(err)
	}
	e.ClearSample()
	if e.sample != nil {
		t.Fatal("ClearSample should release the sample")
	}
}

func TestPresetRoundTripThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	e.SetRecords(testRecords())
	if err := e.SetWaveform("fm"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := e.SavePreset(&buf); err != nil {
		t.Fatal(err)
	}

	other := NewEngine(WithSeed(7))
	other.noDevice = true
	other.SetRecords(testRecords())
	if err := other.LoadPreset(&buf); err != nil {
		t.Fatal(err)
	}
	if other.waveform != "fm" {
		t.Fatalf("waveform = %q, want fm", other.waveform)
	}
	want := e.Mappings()
	got := other.Mappings()
	if len(want) != len(got) {
		t.Fatalf("mapping counts differ: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mapping %d differs:\n got %+v\nwant %+v", i, got[i], want[i])
		}
	}
}

func TestRandomChopOffsetDistribution(t *testing.T) {
	e := newTestEngine(t)
	seen := map[float64]bool{}
	for i := 0; i < 500; i++ {
		off := e.chopOffsetSec(30)
		if off != float64(int(off)) {
			t.Fatalf("chop offset %v is not a whole second", off)
		}
		if off < 0 || off > 25 {
			t.Fatalf("chop offset %v escapes [0,25] for a 30 s sample", off)
		}
		seen[off] = true
	}
	if len(seen) < 20 {
		t.Fatalf("offsets poorly distributed: only %d distinct values", len(seen))
	}
	// Short samples never seek past the start.
	for i := 0; i < 50; i++ {
		if off := e.chopOffsetSec(3); off != 0 {
			t.Fatalf("3 s sample should always chop from 0, got %v", off)
		}
	}
}

func TestAnalyserReturnsWindow(t *testing.T) {
	e := newTestEngine(t)
	if got := e.Analyser(); len(got) == 0 {
		t.Fatal("analyser window should be non-empty")
	}
}
