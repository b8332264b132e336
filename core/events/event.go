package events

import (
	"sync"

	"dscengine/core/types"
)

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. websocket streams,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Fanout forwards every event to each of the wrapped emitters in order.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Journal forwards events to a sink. Between Begin and Commit events are held
// back instead; Rollback drops them, so reverted operations never publish.
type Journal struct {
	mu      sync.Mutex
	sink    Emitter
	open    bool
	pending []Event
}

func NewJournal(sink Emitter) *Journal {
	if sink == nil {
		sink = NoopEmitter{}
	}
	return &Journal{sink: sink}
}

func (j *Journal) Emit(evt Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.open {
		j.pending = append(j.pending, evt)
		return
	}
	j.sink.Emit(evt)
}

// Begin starts holding events back. Scopes do not nest.
func (j *Journal) Begin() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.open = true
	j.pending = nil
}

// Commit publishes the held events in emission order and closes the scope.
func (j *Journal) Commit() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, evt := range j.pending {
		j.sink.Emit(evt)
	}
	j.pending = nil
	j.open = false
}

// Rollback drops the held events and closes the scope.
func (j *Journal) Rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = nil
	j.open = false
}

// Pending reports how many events are held back.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}
