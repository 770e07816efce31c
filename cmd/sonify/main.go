// Command sonify plays a JSON record array through the sonification
// engine: discover numeric paths, plan mappings, loop the records as
// notes until interrupted or a loop count is reached.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	datasynth "github.com/luismqueral/data-synth-sub000"
	"github.com/luismqueral/data-synth-sub000/internal/config"
	"github.com/luismqueral/data-synth-sub000/internal/mapping"
)

func main() {
	var (
		recordsPath = flag.String("file", "", "path to a JSON array of records")
		mode        = flag.String("mode", "", "synthesizer|sampler (default from config)")
		samplePath  = flag.String("sample", "", "WAV sample for sampler mode")
		waveform    = flag.String("waveform", "", "synth waveform (sine, square, fm, pink-noise, ...)")
		filterType  = flag.String("filter", "", "note filter: lowpass|highpass|bandpass|notch")
		volume      = flag.Float64("volume", -1, "master volume 0..1 (default from config)")
		transpose   = flag.Int("transpose", 0, "global transpose in semitones")
		speed       = flag.Float64("speed", 0, "tempo multiplier (default from config)")
		loops       = flag.Int("loops", 0, "stop after N whole-list loops (0 = until interrupt)")
		randomize   = flag.Bool("randomize", false, "randomize paths and ranges before playing")
		presetPath  = flag.String("preset", "", "YAML mapping preset to load")
		quiet       = flag.Bool("quiet", false, "suppress per-tick output")
	)
	flag.Parse()

	if err := config.Load(); err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	cfg := config.Get()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	if *recordsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: sonify -file records.json [flags]")
		os.Exit(2)
	}
	records, err := loadRecords(*recordsPath)
	if err != nil {
		logrus.WithError(err).Fatal("load records")
	}

	eng := datasynth.NewEngine(datasynth.WithConfig(cfg))
	defer eng.Close()

	if *mode != "" {
		if err := eng.SetMode(datasynth.Mode(*mode)); err != nil {
			logrus.WithError(err).Fatal("set mode")
		}
	}
	if *samplePath != "" {
		data, err := os.ReadFile(*samplePath)
		if err != nil {
			logrus.WithError(err).Fatal("read sample")
		}
		info, err := eng.LoadSample(data)
		if err != nil {
			logrus.WithError(err).Fatal("decode sample")
		}
		logrus.WithFields(logrus.Fields{
			"duration": fmt.Sprintf("%.1fs", info.Duration),
			"channels": info.Channels,
		}).Info("sample ready")
	}
	if *waveform != "" {
		if err := eng.SetWaveform(*waveform); err != nil {
			logrus.WithError(err).Fatal("set waveform")
		}
	}
	if *filterType != "" {
		if err := eng.SetFilterType(*filterType); err != nil {
			logrus.WithError(err).Fatal("set filter")
		}
	}
	if *volume >= 0 {
		eng.SetVolume(*volume)
	}
	if *speed > 0 {
		eng.SetSpeed(*speed)
	}
	eng.SetTranspose(*transpose)

	eng.SetRecords(records)
	if *presetPath != "" {
		f, err := os.Open(*presetPath)
		if err != nil {
			logrus.WithError(err).Fatal("open preset")
		}
		err = eng.LoadPreset(f)
		f.Close()
		if err != nil {
			logrus.WithError(err).Fatal("load preset")
		}
	}
	if *randomize {
		eng.RandomizeAll()
	}

	// Live volume/speed from config hot-reload.
	stopWatch, err := config.Watch(func(_, next config.Config) {
		eng.SetVolume(next.MasterVolume)
		eng.SetSpeed(next.Speed)
	})
	if err == nil {
		defer stopWatch()
	}

	if !*quiet {
		eng.OnTick(func(s datasynth.Snapshot) {
			if s.Cleared {
				return
			}
			fmt.Printf("note %d/%d  spacing=%.0fms  dur=%.0fms\n",
				s.Index, s.Total,
				s.Params[mapping.ParamNoteSpacing], s.Params[mapping.ParamDuration])
		})
	}

	events := eng.Watch()
	if err := eng.Play(); err != nil {
		logrus.WithError(err).Fatal("play")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	loopCount := 0
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case datasynth.EventLoopCompleted:
				loopCount++
				if *loops > 0 && loopCount >= *loops {
					eng.Stop()
					fmt.Println("done")
					return
				}
			case datasynth.EventStopped:
				fmt.Println("stopped")
				return
			case datasynth.EventError:
				logrus.WithError(ev.Err).Warn("playback notice")
			}
		case <-interrupt:
			eng.Stop()
			fmt.Println("interrupted")
			return
		}
	}
}

func loadRecords(path string) ([]datasynth.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []datasynth.Record
	if err := json.Unmarshal(data, &records); err != nil {
		// Accept GeoJSON-style wrappers with a "features" array.
		var wrapper struct {
			Features []datasynth.Record `json:"features"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil || len(wrapper.Features) == 0 {
			return nil, err
		}
		records = wrapper.Features
	}
	return records, nil
}
