package overseer

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Strategy defines which children are restarted when one fails.
// It is fixed when the supervisor is built.
type Strategy int

const (
	// OneForOne restarts only the failed child.
	// Use this when children are independent and can fail/restart individually.
	OneForOne Strategy = iota

	// OneForAll stops all children and restarts all when one fails.
	// Use this when children are tightly coupled and depend on each other.
	OneForAll

	// RestForOne stops and restarts the failed child and all children registered after it.
	// Use this when children have startup dependencies (e.g., A must start before B).
	RestForOne
)

// String returns the string representation of a Strategy.
func (s Strategy) String() string {
	switch s {
	case OneForOne:
		return "OneForOne"
	case OneForAll:
		return "OneForAll"
	case RestForOne:
		return "RestForOne"
	default:
		return "Unknown"
	}
}

// ParseStrategy accepts the String form case-insensitively, with or without
// separators ("one_for_all", "one-for-all", "OneForAll").
func ParseStrategy(s string) (Strategy, error) {
	switch normalizeName(s) {
	case "oneforone":
		return OneForOne, nil
	case "oneforall":
		return OneForAll, nil
	case "restforone":
		return RestForOne, nil
	default:
		return OneForOne, fmt.Errorf("unknown strategy %q", s)
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
}

// AffectedChildren returns the children that must be stopped and restarted
// when failed terminates, in registration order. order is the node's current
// registration order. An unknown failed ID yields an empty set.
func (s Strategy) AffectedChildren(order []ChildID, failed ChildID) []ChildID {
	idx := slices.Index(order, failed)
	if idx < 0 {
		return nil
	}

	switch s {
	case OneForAll:
		return slices.Clone(order)
	case RestForOne:
		return slices.Clone(order[idx:])
	default:
		return []ChildID{failed}
	}
}

// StopOrder returns affected in reverse registration order.
func (s Strategy) StopOrder(affected []ChildID) []ChildID {
	out := slices.Clone(affected)
	slices.Reverse(out)
	return out
}

// RestartOrder returns affected in registration order.
func (s Strategy) RestartOrder(affected []ChildID) []ChildID {
	return slices.Clone(affected)
}

// RestartPolicy determines when a child should be restarted.
type RestartPolicy int

const (
	// Permanent children are always restarted, even on normal exit.
	// Use this for critical services that must always be running.
	Permanent RestartPolicy = iota

	// Transient children are restarted only if they exit abnormally (error or panic).
	// Use this for tasks that can complete successfully but should retry on failure.
	Transient

	// Temporary children are never restarted and are removed once they terminate.
	// Use this for one-off initialization tasks or operations that should not retry.
	Temporary
)

// String returns the string representation of a RestartPolicy.
func (rp RestartPolicy) String() string {
	switch rp {
	case Permanent:
		return "Permanent"
	case Transient:
		return "Transient"
	case Temporary:
		return "Temporary"
	default:
		return "Unknown"
	}
}

// shouldRestart reports whether a termination with cause warrants a restart.
func (rp RestartPolicy) shouldRestart(cause error) bool {
	switch rp {
	case Permanent:
		return true
	case Transient:
		return cause != nil
	default:
		return false
	}
}

type shutdownKind int

const (
	shutdownUnset shutdownKind = iota
	shutdownGraceful
	shutdownImmediate
	shutdownInfinity
)

// ShutdownPolicy controls how a child is stopped.
type ShutdownPolicy struct {
	kind    shutdownKind
	timeout time.Duration
}

// Graceful asks the child to stop and waits up to d before forcing it.
// A non-positive d leaves no time to stop and is the same as Immediate.
func Graceful(d time.Duration) ShutdownPolicy {
	if d <= 0 {
		return Immediate()
	}
	return ShutdownPolicy{kind: shutdownGraceful, timeout: d}
}

// Immediate force-terminates the child without a grace period.
func Immediate() ShutdownPolicy {
	return ShutdownPolicy{kind: shutdownImmediate}
}

// Infinity waits for the child to stop on its own. The wait is still bounded
// by the caller's deadline, or by the child's ShutdownTimeout without one.
func Infinity() ShutdownPolicy {
	return ShutdownPolicy{kind: shutdownInfinity}
}

func (p ShutdownPolicy) isZero() bool { return p.kind == shutdownUnset }

// Timeout returns the grace period of a Graceful policy and zero otherwise.
func (p ShutdownPolicy) Timeout() time.Duration {
	if p.kind == shutdownGraceful {
		return p.timeout
	}
	return 0
}

func (p ShutdownPolicy) String() string {
	switch p.kind {
	case shutdownGraceful:
		return fmt.Sprintf("Graceful(%s)", p.timeout)
	case shutdownImmediate:
		return "Immediate"
	case shutdownInfinity:
		return "Infinity"
	default:
		return "Unset"
	}
}
