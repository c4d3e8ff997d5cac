package overseer

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultStartTimeout bounds Child.Start when a spec does not set one.
	DefaultStartTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds an Infinity shutdown when the caller
	// supplies no deadline.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultGracePeriod is the Graceful shutdown window of NewChildSpec.
	DefaultGracePeriod = 10 * time.Second
)

// ChildID identifies a child within one supervisor. It stays the same across
// restarts of the same logical child.
type ChildID string

// Child is the lifecycle contract every supervised unit implements, including
// nested supervisors.
//
// Start may block until the child is ready; the supervisor bounds it with the
// spec's StartTimeout. The ctx passed to Start stays valid for the lifetime of
// the instance and is canceled when the supervisor force-terminates it.
//
// Stop asks the child to terminate gracefully before ctx expires. When it does
// not, the supervisor cancels the instance lifetime context.
//
// HealthCheck must return promptly; it is bounded by the check timeout.
type Child interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck(ctx context.Context) ChildHealth
}

// ExitNotifier is implemented by children that can terminate on their own.
// A value sent on (or a close of) the channel reports task termination; a nil
// error is a clean exit.
type ExitNotifier interface {
	Exited() <-chan error
}

// ChildFactory builds a fresh Child instance. It is invoked for the first
// start and again for every restart; instances are never reused.
type ChildFactory func() (Child, error)

// ChildFunc is the function signature for a goroutine-style child.
// The function receives a context that will be canceled when the supervisor
// wants the child to stop. Children should monitor this context and exit gracefully.
//
// Returning nil indicates normal exit. Returning an error indicates abnormal exit.
// Panics are automatically recovered and treated as abnormal exits.
//
// Example:
//
//	func worker(ctx context.Context) error {
//	    ticker := time.NewTicker(time.Second)
//	    defer ticker.Stop()
//
//	    for {
//	        select {
//	        case <-ctx.Done():
//	            return nil // Graceful shutdown
//	        case <-ticker.C:
//	            if err := doWork(); err != nil {
//	                return err // Will trigger restart based on RestartPolicy
//	            }
//	        }
//	    }
//	}
type ChildFunc func(ctx context.Context) error

// ChildSpec is the immutable recipe for a supervised child.
type ChildSpec struct {
	// ID is the unique identifier for this child within its supervisor.
	ID ChildID

	// Factory constructs a new instance on every start.
	Factory ChildFactory

	// Restart determines when this child should be restarted after exit.
	// - Permanent: Always restart (use for critical services)
	// - Transient: Restart only on error/panic (use for retriable tasks)
	// - Temporary: Never restart (use for one-off tasks)
	Restart RestartPolicy

	// Shutdown controls how the child is stopped. The zero value means
	// Graceful(DefaultGracePeriod).
	Shutdown ShutdownPolicy

	// StartTimeout bounds Child.Start. Zero means DefaultStartTimeout.
	StartTimeout time.Duration

	// ShutdownTimeout bounds an Infinity shutdown when the caller has no
	// deadline. Zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// NewChildSpec returns a spec with the default policies: Permanent restart and
// a 10 second graceful shutdown.
//
// Example:
//
//	spec := overseer.NewChildSpec("cache", newCache).
//	    WithRestart(overseer.Transient).
//	    WithShutdown(overseer.Immediate())
func NewChildSpec(id ChildID, factory ChildFactory) ChildSpec {
	return ChildSpec{
		ID:              id,
		Factory:         factory,
		Restart:         Permanent,
		Shutdown:        Graceful(DefaultGracePeriod),
		StartTimeout:    DefaultStartTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// NewFuncSpec is NewChildSpec for a goroutine-style child.
func NewFuncSpec(id ChildID, fn ChildFunc) ChildSpec {
	return NewChildSpec(id, FuncFactory(fn))
}

// WithRestart returns a copy of the child spec using the given restart policy.
func (s ChildSpec) WithRestart(p RestartPolicy) ChildSpec {
	s.Restart = p
	return s
}

// WithShutdown returns a copy of the child spec using the given shutdown policy.
func (s ChildSpec) WithShutdown(p ShutdownPolicy) ChildSpec {
	s.Shutdown = p
	return s
}

// WithStartTimeout returns a copy of the child spec with a different start timeout.
func (s ChildSpec) WithStartTimeout(d time.Duration) ChildSpec {
	s.StartTimeout = d
	return s
}

// WithShutdownTimeout returns a copy of the child spec with a different shutdown timeout.
func (s ChildSpec) WithShutdownTimeout(d time.Duration) ChildSpec {
	s.ShutdownTimeout = d
	return s
}

// normalize fills zero fields with defaults and validates the child spec.
func (s ChildSpec) normalize() (ChildSpec, error) {
	if s.ID == "" {
		return s, &SupervisorError{Op: "register", Err: ErrInvalidChildSpec, Cause: errEmptyID}
	}
	if s.Factory == nil {
		return s, &SupervisorError{Op: "register", Child: s.ID, Err: ErrInvalidChildSpec, Cause: errNilFactory}
	}
	if s.Shutdown.isZero() {
		s.Shutdown = Graceful(DefaultGracePeriod)
	}
	if s.StartTimeout <= 0 {
		s.StartTimeout = DefaultStartTimeout
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	return s, nil
}

// HealthStatus is the coarse result of a health check.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Degraded
	Unhealthy
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "Healthy"
	case Degraded:
		return "Degraded"
	case Unhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// ChildHealth is the self-reported quality of service of a child. It is
// independent from the child's supervision state.
type ChildHealth struct {
	Status HealthStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// HealthyStatus reports a healthy child.
func HealthyStatus() ChildHealth { return ChildHealth{Status: Healthy} }

// DegradedStatus reports a child that works with reduced quality.
func DegradedStatus(reason string) ChildHealth {
	return ChildHealth{Status: Degraded, Reason: reason}
}

// UnhealthyStatus reports a child that should be treated as failed.
func UnhealthyStatus(reason string) ChildHealth {
	return ChildHealth{Status: Unhealthy, Reason: reason}
}

func (h ChildHealth) String() string {
	if h.Reason == "" {
		return h.Status.String()
	}
	return h.Status.String() + "(" + h.Reason + ")"
}

// MarshalText renders the status name in JSON and YAML output.
func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HealthStatus) UnmarshalText(text []byte) error {
	for _, s := range []HealthStatus{Healthy, Degraded, Unhealthy} {
		if string(text) == s.String() {
			*h = s
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", text)
}
