package datasynth

import (
	"github.com/luismqueral/data-synth-sub000/internal/mapping"
	"github.com/luismqueral/data-synth-sub000/internal/record"
)

// Snapshot is what the engine publishes to the tick observer: the
// record just sonified, the computed audio parameters, the mappings in
// force, and position within the record list. A Cleared snapshot (zero
// record, Playing false) is published when a session stops.
type Snapshot struct {
	Record   record.Record
	Params   mapping.Params
	Mappings []mapping.Mapping
	Index    int
	Total    int
	Playing  bool
	Cleared  bool
}

// TickFunc receives snapshots on the driver goroutine. It must not
// block the audio path; failures are caught and logged, never
// propagated.
type TickFunc func(Snapshot)

// EventKind identifies engine lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventStopped
	EventError
)

// Event carries lifecycle and error notifications from Watch.
type Event struct {
	Kind EventKind
	Err  error
}
