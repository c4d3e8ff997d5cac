package monitor

import (
	"sync"

	"github.com/airsstack/overseer"
)

// DefaultCapacity is the history size of an InMemory monitor created with a
// non-positive capacity.
const DefaultCapacity = 1000

// InMemory keeps a bounded history of events plus per-severity counters.
// Events below the minimum severity are counted in Dropped but not stored.
type InMemory struct {
	mu          sync.Mutex
	capacity    int
	minSeverity overseer.Severity
	events      []overseer.SupervisionEvent
	counts      map[overseer.Severity]int
	kinds       map[overseer.EventKind]int
	dropped     int
}

// NewInMemory returns a monitor holding at most capacity events. The oldest
// events are evicted first.
func NewInMemory(capacity int, minSeverity overseer.Severity) *InMemory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemory{
		capacity:    capacity,
		minSeverity: minSeverity,
		counts:      make(map[overseer.Severity]int),
		kinds:       make(map[overseer.EventKind]int),
	}
}

func (m *InMemory) Record(e overseer.SupervisionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sev := e.Severity()
	if sev < m.minSeverity {
		m.dropped++
		return
	}
	m.counts[sev]++
	m.kinds[e.Kind]++

	if len(m.events) == m.capacity {
		copy(m.events, m.events[1:])
		m.events = m.events[:len(m.events)-1]
	}
	m.events = append(m.events, e)
}

// Events returns a copy of the stored history, oldest first.
func (m *InMemory) Events() []overseer.SupervisionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]overseer.SupervisionEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsFor returns the stored events of one child.
func (m *InMemory) EventsFor(id overseer.ChildID) []overseer.SupervisionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []overseer.SupervisionEvent
	for _, e := range m.events {
		if e.ChildID == id {
			out = append(out, e)
		}
	}
	return out
}

// Stats is a point-in-time summary of an InMemory monitor.
type Stats struct {
	Stored     int
	Dropped    int
	BySeverity map[overseer.Severity]int
	ByKind     map[overseer.EventKind]int
}

// Snapshot returns the current counters. Counters include events that were
// since evicted from the history.
func (m *InMemory) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Stored:     len(m.events),
		Dropped:    m.dropped,
		BySeverity: make(map[overseer.Severity]int, len(m.counts)),
		ByKind:     make(map[overseer.EventKind]int, len(m.kinds)),
	}
	for k, v := range m.counts {
		st.BySeverity[k] = v
	}
	for k, v := range m.kinds {
		st.ByKind[k] = v
	}
	return st
}

// Reset clears the history and all counters.
func (m *InMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.dropped = 0
	clear(m.counts)
	clear(m.kinds)
}
