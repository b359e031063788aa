package lifecycle

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory event log. Oldest events are evicted
// first once the cap is reached.
const DefaultCapacity = 200

// Emitter receives lifecycle events. Controllers hold one by reference.
type Emitter interface {
	Emit(e Event)
}

// Sink receives a copy of every event accepted by a RingEmitter. Used to fan
// events out to streams or recorders without the controllers knowing.
type Sink func(e Event)

// RingEmitter is a bounded in-memory event log. Reads return snapshot copies.
type RingEmitter struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	sinks    []Sink
}

// NewRingEmitter creates an emitter with the given capacity; values < 1 fall
// back to DefaultCapacity.
func NewRingEmitter(capacity int) *RingEmitter {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &RingEmitter{capacity: capacity}
}

// AddSink registers a fan-out sink. Sinks run synchronously inside Emit and
// must not block.
func (r *RingEmitter) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Emit appends an event, stamping the time if unset, and evicts oldest-first
// beyond capacity.
func (r *RingEmitter) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	r.mu.Lock()
	r.events = append(r.events, e)
	if overflow := len(r.events) - r.capacity; overflow > 0 {
		r.events = append([]Event(nil), r.events[overflow:]...)
	}
	sinks := r.sinks
	r.mu.Unlock()

	for _, s := range sinks {
		s(e)
	}
}

// Events returns a snapshot copy of the log.
func (r *RingEmitter) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfType returns a snapshot of events matching the given type.
func (r *RingEmitter) EventsOfType(t EventType) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// EventsForInstance returns a snapshot of events carrying the instance ID.
func (r *RingEmitter) EventsForInstance(instanceID string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.ReflexInstanceID == instanceID {
			out = append(out, e)
		}
	}
	return out
}
