package overseer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSupervisorStopped is returned when operations are attempted on a stopped supervisor.
	ErrSupervisorStopped = errors.New("supervisor is stopped")

	// ErrDuplicateChildID is returned when registering a child whose ID is already in use.
	ErrDuplicateChildID = errors.New("duplicate child id")

	// ErrChildNotFound is returned when a child with the specified ID doesn't exist.
	ErrChildNotFound = errors.New("child not found")

	// ErrInvalidChildSpec is returned for specs without an ID or factory.
	ErrInvalidChildSpec = errors.New("invalid child spec")

	// ErrStartTimeout is returned when a child does not become ready within its start timeout.
	ErrStartTimeout = errors.New("child start timed out")

	// ErrShutdownTimeout is returned when a child had to be force-terminated.
	// It is a degraded outcome, not a fatal one.
	ErrShutdownTimeout = errors.New("child shutdown timed out")

	// ErrRestartLimitExceeded is returned when the restart budget of a
	// supervisor is exhausted. It is the only error that escalates.
	ErrRestartLimitExceeded = errors.New("restart limit exceeded")

	// ErrFactory is returned when a ChildFactory fails to build an instance.
	ErrFactory = errors.New("child factory failed")

	// ErrChildStart wraps an error returned by Child.Start.
	ErrChildStart = errors.New("child failed to start")

	// ErrChildStop wraps an error returned by Child.Stop.
	ErrChildStop = errors.New("child failed to stop")

	// ErrHealthCheckFailed is the failure cause recorded for health-triggered restarts.
	ErrHealthCheckFailed = errors.New("health check failed")

	// ErrChildPanicked wraps a panic recovered from a child.
	ErrChildPanicked = errors.New("child panicked")
)

var (
	errEmptyID    = errors.New("empty id")
	errNilFactory = errors.New("nil factory")
)

// SupervisorError describes a failed supervisor operation. It unwraps to
// both its sentinel (Err) and the underlying Cause, so errors.Is matches either.
type SupervisorError struct {
	Op      string
	Child   ChildID
	Err     error
	Cause   error
	Timeout time.Duration
}

func (e *SupervisorError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Child != "" {
		fmt.Fprintf(&b, " %s", e.Child)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Timeout > 0 {
		fmt.Fprintf(&b, " after %s", e.Timeout)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *SupervisorError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsFatal reports whether err is an escalation that the supervisor could not
// recover from locally.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRestartLimitExceeded)
}
