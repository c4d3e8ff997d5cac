package monitor

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/airsstack/overseer"
)

const flushTimeout = 5 * time.Second

// Sentry reports events at or above a minimum severity to Sentry.
type Sentry struct {
	hub         *sentry.Hub
	minSeverity overseer.Severity
}

// NewSentry reports through hub, or the current hub when hub is nil.
func NewSentry(hub *sentry.Hub, minSeverity overseer.Severity) *Sentry {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Sentry{hub: hub, minSeverity: minSeverity}
}

func (s *Sentry) Record(e overseer.SupervisionEvent) {
	sev := e.Severity()
	if sev < s.minSeverity {
		return
	}

	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(sev))
		scope.SetTag("supervisor", e.SupervisorName)
		scope.SetTag("supervisor_id", e.SupervisorID)
		scope.SetTag("event", e.Kind.String())
		if e.ChildID != "" {
			scope.SetTag("child", string(e.ChildID))
		}
		scope.SetContext("supervision", sentry.Context{
			"old_state": e.OldState.String(),
			"new_state": e.NewState.String(),
			"restarts":  e.RestartCount,
		})

		if e.Cause != nil {
			s.hub.CaptureException(e.Cause)
			return
		}
		s.hub.CaptureMessage(fmt.Sprintf("%s: %s %s", e.SupervisorName, e.Kind, e.ChildID))
	})
}

// Flush waits for buffered events to be sent.
func (s *Sentry) Flush() bool {
	return s.hub.Flush(flushTimeout)
}

func sentryLevel(s overseer.Severity) sentry.Level {
	switch s {
	case overseer.SeverityCritical:
		return sentry.LevelFatal
	case overseer.SeverityError:
		return sentry.LevelError
	case overseer.SeverityWarning:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
