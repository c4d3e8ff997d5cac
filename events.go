package overseer

import (
	"fmt"
	"strings"
	"time"
)

// EventKind represents the type of supervision event.
type EventKind int

const (
	// ChildStarted is emitted when a child reaches Running for the first time.
	ChildStarted EventKind = iota

	// ChildStopped is emitted when a child reaches Stopped. Cause is set when
	// the stop failed or had to be forced.
	ChildStopped

	// ChildFailed is emitted when a child is marked Failed.
	ChildFailed

	// ChildRestarted is emitted when a new instance of a child reaches Running.
	ChildRestarted

	// ChildRemoved is emitted when a child leaves the child set because its
	// restart policy forbids a restart.
	ChildRemoved

	// ChildDegraded is emitted when a health check reports Degraded.
	ChildDegraded

	// HealthCheckFailed is emitted when a health check reports Unhealthy or times out.
	HealthCheckFailed

	// StrategyApplied summarizes one restart decision.
	StrategyApplied

	// RestartLimitExceeded is emitted when the restart budget is exhausted
	// and the failure escalates.
	RestartLimitExceeded

	// SupervisorStarted is emitted once all initial children are running.
	SupervisorStarted

	// SupervisorStopping is emitted when the supervisor begins shutting down.
	SupervisorStopping
)

// String returns the string representation of an EventKind.
func (k EventKind) String() string {
	switch k {
	case ChildStarted:
		return "ChildStarted"
	case ChildStopped:
		return "ChildStopped"
	case ChildFailed:
		return "ChildFailed"
	case ChildRestarted:
		return "ChildRestarted"
	case ChildRemoved:
		return "ChildRemoved"
	case ChildDegraded:
		return "ChildDegraded"
	case HealthCheckFailed:
		return "HealthCheckFailed"
	case StrategyApplied:
		return "StrategyApplied"
	case RestartLimitExceeded:
		return "RestartLimitExceeded"
	case SupervisorStarted:
		return "SupervisorStarted"
	case SupervisorStopping:
		return "SupervisorStopping"
	default:
		return "Unknown"
	}
}

// Severity classifies events for filtering and alerting.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity parses a lowercase severity name as produced by String.
func ParseSeverity(s string) (Severity, error) {
	for sev := SeverityInfo; sev <= SeverityCritical; sev++ {
		if strings.EqualFold(s, sev.String()) {
			return sev, nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", s)
}

// StrategyDecision summarizes how a failure was handled.
type StrategyDecision struct {
	Strategy     Strategy
	Failed       ChildID
	Affected     []ChildID
	StopOrder    []ChildID
	RestartOrder []ChildID
}

// SupervisionEvent describes one observable supervision step.
type SupervisionEvent struct {
	Time           time.Time
	SupervisorID   string
	SupervisorName string
	ChildID        ChildID
	Kind           EventKind
	OldState       ChildState
	NewState       ChildState
	Cause          error
	Decision       *StrategyDecision
	RestartCount   int
}

// Severity returns the event's severity.
func (e SupervisionEvent) Severity() Severity {
	switch e.Kind {
	case ChildFailed, HealthCheckFailed:
		return SeverityError
	case RestartLimitExceeded:
		return SeverityCritical
	case ChildRestarted, ChildDegraded:
		return SeverityWarning
	case ChildStopped:
		if e.Cause != nil {
			return SeverityWarning
		}
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// Monitor receives supervision events. Implementations must be safe for
// concurrent use and must not block for long; Record is called while the
// supervisor holds its lock.
type Monitor interface {
	Record(SupervisionEvent)
}

// MonitorFunc adapts a function to the Monitor interface.
//
// Example:
//
//	overseer.WithMonitor(overseer.MonitorFunc(func(e overseer.SupervisionEvent) {
//	    log.Printf("[%s] %s", e.Kind, e.ChildID)
//	}))
type MonitorFunc func(SupervisionEvent)

func (f MonitorFunc) Record(e SupervisionEvent) { f(e) }

// NoopMonitor discards every event.
type NoopMonitor struct{}

func (NoopMonitor) Record(SupervisionEvent) {}

// emit fills in the supervisor fields and forwards the event to all monitors.
func (s *Supervisor) emit(e SupervisionEvent) {
	if len(s.monitors) == 0 {
		return
	}
	if e.Time.IsZero() {
		e.Time = timeNow()
	}
	e.SupervisorID = s.id
	e.SupervisorName = s.name
	for _, m := range s.monitors {
		m.Record(e)
	}
}
