// Package config handles loading and storing engine configuration.
package config

import (
	"context"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all engine configuration values.
type Config struct {
	SampleRate     int     `mapstructure:"SampleRate"`
	MasterVolume   float64 `mapstructure:"MasterVolume"`
	Speed          float64 `mapstructure:"Speed"`
	Transpose      int     `mapstructure:"Transpose"`
	Waveform       string  `mapstructure:"Waveform"`
	FilterType     string  `mapstructure:"FilterType"`
	Mode           string  `mapstructure:"Mode"`
	PitchQuantize  bool    `mapstructure:"PitchQuantize"`
	Scale          string  `mapstructure:"Scale"`
	RhythmQuantize bool    `mapstructure:"RhythmQuantize"`
	LogLevel       string  `mapstructure:"LogLevel"`
}

// C is the global configuration instance.
var C Config

// mu protects concurrent access to C during hot-reload.
var mu sync.RWMutex

var (
	watcherMu       sync.Mutex
	watcherActive   bool
	watcherCtx      context.Context
	watcherCancel   context.CancelFunc
	currentCallback ReloadCallback
)

// ReloadCallback is called when the configuration is hot-reloaded.
type ReloadCallback func(old, new Config)

// Load reads configuration from file and environment, populating C.
func Load() error {
	viper.SetConfigName("datasynth")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.datasynth")

	viper.SetDefault("SampleRate", 44100)
	viper.SetDefault("MasterVolume", 0.8)
	viper.SetDefault("Speed", 1.0)
	viper.SetDefault("Transpose", 0)
	viper.SetDefault("Waveform", "sine")
	viper.SetDefault("FilterType", "lowpass")
	viper.SetDefault("Mode", "synthesizer")
	viper.SetDefault("PitchQuantize", false)
	viper.SetDefault("Scale", "pentatonic")
	viper.SetDefault("RhythmQuantize", false)
	viper.SetDefault("LogLevel", "info")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return viper.Unmarshal(&C)
}

// Get returns a copy of the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return C
}

// Watch starts hot-reloading the configuration file, invoking callback
// on every successful reload. The returned stop function ends watching;
// the underlying file watcher stays registered for the process lifetime
// (viper keeps it), so Watch can be called again later.
func Watch(callback ReloadCallback) (stop func(), err error) {
	watcherMu.Lock()
	defer watcherMu.Unlock()

	if !watcherActive {
		ctx, cancel := context.WithCancel(context.Background())
		watcherCtx = ctx
		watcherCancel = cancel
		currentCallback = callback
		watcherActive = true

		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			watcherMu.Lock()
			cb := currentCallback
			ctx := watcherCtx
			watcherMu.Unlock()

			if ctx != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}

			mu.Lock()
			old := C
			var newCfg Config
			if err := viper.Unmarshal(&newCfg); err != nil {
				mu.Unlock()
				return
			}
			C = newCfg
			mu.Unlock()
			if cb != nil {
				cb(old, newCfg)
			}
		})
	} else {
		currentCallback = callback
	}

	return func() {
		watcherMu.Lock()
		defer watcherMu.Unlock()
		if watcherCancel != nil {
			watcherCancel()
		}
		watcherActive = false
		currentCallback = nil
	}, nil
}
