package datasynth

import (
	"errors"
	"fmt"
)

// ErrNoSample reports playback scheduled in sampler mode before a
// sample was loaded. Notes still tick with a silent envelope; the
// observer hears about it once per session.
var ErrNoSample = errors.New("no sample loaded")

// ErrNoRecords reports Play called before SetRecords.
var ErrNoRecords = errors.New("no records loaded")

// DecodeError wraps a sample decode failure. The previously loaded
// sample, if any, stays intact.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("sample decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
