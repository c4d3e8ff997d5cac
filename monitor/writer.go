package monitor

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/airsstack/overseer"
)

// Entry is the flattened JSON form of one event.
type Entry struct {
	Time         time.Time          `json:"time"`
	Severity     string             `json:"severity"`
	Kind         string             `json:"kind"`
	SupervisorID string             `json:"supervisor_id"`
	Supervisor   string             `json:"supervisor"`
	Child        overseer.ChildID   `json:"child,omitempty"`
	OldState     string             `json:"old_state,omitempty"`
	NewState     string             `json:"new_state,omitempty"`
	Cause        string             `json:"cause,omitempty"`
	Restarts     int                `json:"restarts"`
	Strategy     string             `json:"strategy,omitempty"`
	Affected     []overseer.ChildID `json:"affected,omitempty"`
}

// Writer writes each event as one JSON line.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// NewEntry flattens e.
func NewEntry(e overseer.SupervisionEvent) Entry {
	r := Entry{
		Time:         e.Time,
		Severity:     e.Severity().String(),
		Kind:         e.Kind.String(),
		SupervisorID: e.SupervisorID,
		Supervisor:   e.SupervisorName,
		Child:        e.ChildID,
		Restarts:     e.RestartCount,
	}
	if e.ChildID != "" {
		r.OldState = e.OldState.String()
		r.NewState = e.NewState.String()
	}
	if e.Cause != nil {
		r.Cause = e.Cause.Error()
	}
	if e.Decision != nil {
		r.Strategy = e.Decision.Strategy.String()
		r.Affected = e.Decision.Affected
	}
	return r
}

func (w *Writer) Record(e overseer.SupervisionEvent) {
	r := NewEntry(e)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil && w.err == nil {
		w.err = err
	}
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
