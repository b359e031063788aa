package reflex

import (
	"sync"
	"time"

	"github.com/voxelmind/reflexcore/observability"
	"github.com/voxelmind/reflexcore/proof"
)

// Accumulator retention bounds. Entries are evicted on bundle build, on
// enqueue-skip, by TTL, and oldest-first beyond the cap.
const (
	DefaultAccumulatorTTL = 30 * time.Minute
	DefaultAccumulatorCap = 50
)

// accumulatorMap is a bounded TTL map of proof accumulators keyed by reflex
// instance ID. Owned by one controller and mutated only from tick-loop paths.
type accumulatorMap struct {
	mu      sync.Mutex
	entries map[string]*proof.Accumulator
	ttl     time.Duration
	cap     int
	reflex  string // gauge label
}

func newAccumulatorMap(reflexName string, ttl time.Duration, capacity int) *accumulatorMap {
	if ttl <= 0 {
		ttl = DefaultAccumulatorTTL
	}
	if capacity <= 0 {
		capacity = DefaultAccumulatorCap
	}
	return &accumulatorMap{
		entries: make(map[string]*proof.Accumulator),
		ttl:     ttl,
		cap:     capacity,
		reflex:  reflexName,
	}
}

func (m *accumulatorMap) put(instanceID string, acc *proof.Accumulator) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.cap {
		m.evictOldestLocked()
	}
	m.entries[instanceID] = acc
	m.updateGaugeLocked()
}

// take removes and returns the accumulator for instanceID.
func (m *accumulatorMap) take(instanceID string) (*proof.Accumulator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.entries[instanceID]
	if ok {
		delete(m.entries, instanceID)
		m.updateGaugeLocked()
	}
	return acc, ok
}

func (m *accumulatorMap) drop(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, instanceID)
	m.updateGaugeLocked()
}

func (m *accumulatorMap) evictExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, acc := range m.entries {
		if now.Sub(acc.TriggeredAt) > m.ttl {
			delete(m.entries, id)
		}
	}
	m.updateGaugeLocked()
}

func (m *accumulatorMap) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *accumulatorMap) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, acc := range m.entries {
		if oldestID == "" || acc.TriggeredAt.Before(oldestAt) {
			oldestID = id
			oldestAt = acc.TriggeredAt
		}
	}
	if oldestID != "" {
		delete(m.entries, oldestID)
	}
}

func (m *accumulatorMap) updateGaugeLocked() {
	observability.AccumulatorOccupancy.WithLabelValues(m.reflex).Set(float64(len(m.entries)))
}
