package overseer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	// DefaultMaxRestarts is the restart budget of a supervisor per window.
	DefaultMaxRestarts = 5

	// DefaultRestartWindow is the sliding window the budget applies to.
	DefaultRestartWindow = 60 * time.Second
)

// RestartBackoff is a sliding-window restart limiter. A restart is granted
// while fewer than maxRestarts restarts were granted within the last window.
//
// RestartBackoff is not safe for concurrent use; the supervisor serializes
// access to it.
type RestartBackoff struct {
	window      time.Duration
	maxRestarts int
	timestamps  []time.Time
}

// NewRestartBackoff returns a limiter allowing maxRestarts within window.
// A maxRestarts of zero denies every restart.
func NewRestartBackoff(maxRestarts int, window time.Duration) *RestartBackoff {
	if maxRestarts < 0 {
		maxRestarts = 0
	}
	return &RestartBackoff{
		window:      window,
		maxRestarts: maxRestarts,
		timestamps:  make([]time.Time, 0, maxRestarts),
	}
}

// RecordRestart prunes timestamps older than now-window and reports whether a
// restart at now is permitted. now is recorded only when it is.
func (b *RestartBackoff) RecordRestart(now time.Time) bool {
	b.prune(now)
	if len(b.timestamps) >= b.maxRestarts {
		return false
	}
	b.timestamps = append(b.timestamps, now)
	return true
}

// Count returns the restarts recorded within the window ending at now.
func (b *RestartBackoff) Count(now time.Time) int {
	b.prune(now)
	return len(b.timestamps)
}

// Window returns the sliding window length.
func (b *RestartBackoff) Window() time.Duration { return b.window }

// MaxRestarts returns the per-window budget.
func (b *RestartBackoff) MaxRestarts() int { return b.maxRestarts }

// Reset forgets every recorded restart.
func (b *RestartBackoff) Reset() { b.timestamps = b.timestamps[:0] }

func (b *RestartBackoff) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.timestamps) && b.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.timestamps = append(b.timestamps[:0], b.timestamps[i:]...)
	}
}

// BackoffScope selects whether the restart budget is shared by the node or
// kept per child.
type BackoffScope int

const (
	// PerNode shares one budget among all children of a supervisor, so a
	// OneForAll storm is throttled as a single budget.
	PerNode BackoffScope = iota

	// PerChild keeps one budget per child ID. A storm across many children
	// is no longer bounded as a whole, only per child.
	PerChild
)

func (s BackoffScope) String() string {
	if s == PerChild {
		return "PerChild"
	}
	return "PerNode"
}

// ParseBackoffScope parses "per_node" or "per_child", ignoring case and separators.
func ParseBackoffScope(s string) (BackoffScope, error) {
	switch normalizeName(s) {
	case "", "pernode":
		return PerNode, nil
	case "perchild":
		return PerChild, nil
	default:
		return PerNode, fmt.Errorf("unknown backoff scope %q", s)
	}
}

// DelayPolicy calculates how long to wait before executing a granted restart.
// This helps prevent resource exhaustion from rapid restart loops.
type DelayPolicy interface {
	// ComputeDelay calculates the delay before the next restart attempt.
	// The restarts parameter indicates how many times this child has already restarted.
	ComputeDelay(restarts int) time.Duration
}

const maxDelayShift = 10

// exponentialDelay implements exponential backoff with a maximum delay.
type exponentialDelay struct {
	initial time.Duration
	max     time.Duration
}

// ExponentialDelay creates a delay policy that doubles the delay with each restart.
// The delay starts at initial and is capped at max.
//
// Example: ExponentialDelay(100*time.Millisecond, 5*time.Second)
// - 1st restart: 100ms
// - 2nd restart: 200ms
// - 3rd restart: 400ms
// - 6th+ restart: 5s (capped)
func ExponentialDelay(initial, max time.Duration) DelayPolicy {
	return &exponentialDelay{initial: initial, max: max}
}

func (e *exponentialDelay) ComputeDelay(restarts int) time.Duration {
	shift := min(max(restarts, 0), maxDelayShift)
	delay := time.Duration(float64(e.initial) * math.Pow(2, float64(shift)))
	if delay > e.max {
		delay = e.max
	}
	return delay
}

// constantDelay implements a constant delay between restarts.
type constantDelay struct {
	delay time.Duration
}

// ConstantDelay creates a delay policy with a fixed delay between restarts.
func ConstantDelay(delay time.Duration) DelayPolicy {
	return &constantDelay{delay: delay}
}

func (c *constantDelay) ComputeDelay(int) time.Duration {
	return c.delay
}

type linearDelay struct {
	initial   time.Duration
	increment time.Duration
	max       time.Duration
}

// LinearDelay starts at initial and grows by increment per restart, capped at max.
func LinearDelay(initial, increment, max time.Duration) DelayPolicy {
	return &linearDelay{initial: initial, increment: increment, max: max}
}

func (l *linearDelay) ComputeDelay(restarts int) time.Duration {
	delay := l.initial + time.Duration(max(restarts, 0))*l.increment
	if delay > l.max {
		delay = l.max
	}
	return delay
}

// jitterDelay wraps another delay policy and adds randomness.
type jitterDelay struct {
	base   DelayPolicy
	factor float64
}

// JitterDelay wraps another policy and adds symmetric random jitter.
// The factor is clamped to [0, 1]; 0.2 turns a 1s delay into 0.8s-1.2s.
func JitterDelay(base DelayPolicy, factor float64) DelayPolicy {
	factor = min(max(factor, 0), 1)
	return &jitterDelay{base: base, factor: factor}
}

func (j *jitterDelay) ComputeDelay(restarts int) time.Duration {
	baseDelay := j.base.ComputeDelay(restarts)
	jitter := time.Duration(float64(baseDelay) * j.factor * (rand.Float64()*2 - 1))
	return max(baseDelay+jitter, 0)
}

// backOffDelay adapts a stateful cenkalti BackOff. The sequence is reset
// whenever a child restarts for the first time.
type backOffDelay struct {
	mu   sync.Mutex
	b    backoff.BackOff
	last time.Duration
}

// FromBackOff adapts a github.com/cenkalti/backoff BackOff, for example
// backoff.NewExponentialBackOff(). Once the BackOff returns backoff.Stop the
// last delay is reused.
func FromBackOff(b backoff.BackOff) DelayPolicy {
	return &backOffDelay{b: b}
}

func (d *backOffDelay) ComputeDelay(restarts int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if restarts == 0 {
		d.b.Reset()
	}
	next := d.b.NextBackOff()
	if next == backoff.Stop {
		return d.last
	}
	d.last = next
	return next
}
