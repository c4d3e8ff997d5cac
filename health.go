package overseer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultHealthTimeout bounds a single health check.
	DefaultHealthTimeout = 5 * time.Second

	// DefaultFailureThreshold is the number of consecutive Unhealthy checks
	// that count as a failure.
	DefaultFailureThreshold = 3
)

// HealthConfig controls health probing.
type HealthConfig struct {
	// Interval between two sweeps over all running children. Zero disables
	// the periodic sweep; CheckChildHealth still works.
	Interval time.Duration

	// Timeout bounds one check. A check that times out counts as Unhealthy.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive Unhealthy checks that
	// trigger a restart.
	FailureThreshold int

	// DegradedThreshold is the number of consecutive Degraded checks that
	// trigger a restart. Zero means Degraded never triggers one.
	DegradedThreshold int
}

func (c HealthConfig) withDefaults() HealthConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultHealthTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.DegradedThreshold < 0 {
		c.DegradedThreshold = 0
	}
	return c
}

// CheckChildHealth checks a running child. Unhealthy results and timeouts
// are counted; once FailureThreshold consecutive ones are seen the child goes
// through the same recovery pipeline as a crash. Degraded results trigger it
// only when DegradedThreshold is set. A child that is not running is not
// checked and its last known health is returned.
//
// The error is ErrChildNotFound for unknown children, or the escalation
// error when the triggered recovery exhausted the restart budget.
func (s *Supervisor) CheckChildHealth(ctx context.Context, id ChildID) (ChildHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.index[id]
	if !ok {
		return ChildHealth{}, &SupervisorError{Op: "check_child_health", Child: id, Err: ErrChildNotFound}
	}
	if h.state.current() != Running || h.inst == nil || s.stopped {
		return h.lastHealth, nil
	}

	health := s.runCheck(ctx, h)
	if err := ctx.Err(); err != nil {
		return h.lastHealth, err
	}
	h.lastHealth = health

	trigger := false
	switch health.Status {
	case Healthy:
		h.unhealthyRun, h.degradedRun = 0, 0
	case Degraded:
		h.unhealthyRun = 0
		h.degradedRun++
		s.emit(SupervisionEvent{ChildID: id, Kind: ChildDegraded, OldState: Running, NewState: Running, Cause: errors.New(health.Reason), RestartCount: h.restarts})
		trigger = s.health.DegradedThreshold > 0 && h.degradedRun >= s.health.DegradedThreshold
	default:
		h.degradedRun = 0
		h.unhealthyRun++
		s.emit(SupervisionEvent{ChildID: id, Kind: HealthCheckFailed, OldState: Running, NewState: Running, Cause: errors.New(health.Reason), RestartCount: h.restarts})
		s.logger.Warn("child health check failed",
			zap.String("child", string(id)),
			zap.String("reason", health.Reason),
			zap.Int("consecutive", h.unhealthyRun),
			zap.Int("threshold", s.health.FailureThreshold),
		)
		trigger = h.unhealthyRun >= s.health.FailureThreshold
	}

	if !trigger {
		return health, nil
	}

	h.unhealthyRun, h.degradedRun = 0, 0
	cause := &SupervisorError{Op: "check_child_health", Child: id, Err: ErrHealthCheckFailed, Cause: errors.New(health.String())}
	return health, s.failLocked(ctx, h, cause)
}

// runCheck calls the child's HealthCheck bounded by the check timeout.
func (s *Supervisor) runCheck(ctx context.Context, h *childHandle) ChildHealth {
	timeout := s.health.Timeout
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	child := h.inst.child
	result := make(chan ChildHealth, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- UnhealthyStatus(fmt.Sprintf("health check panicked: %v", r))
			}
		}()
		result <- child.HealthCheck(checkCtx)
	}()

	select {
	case health := <-result:
		return health
	case <-checkCtx.Done():
		return UnhealthyStatus(fmt.Sprintf("health check timed out after %s", timeout))
	}
}

func (s *Supervisor) startHealthSweepLocked() {
	if !s.healthSweep {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})
	go s.sweep(ctx, s.sweepDone)
}

func (s *Supervisor) stopHealthSweep() {
	s.mu.Lock()
	cancel, done := s.sweepCancel, s.sweepDone
	s.sweepCancel, s.sweepDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// sweep checks every running child once per interval, in registration order.
func (s *Supervisor) sweep(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.health.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		ids := s.orderLocked()
		s.mu.Unlock()

		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.CheckChildHealth(ctx, id); err != nil {
				if IsFatal(err) || ctx.Err() != nil {
					return
				}
				if !errors.Is(err, ErrChildNotFound) {
					s.logger.Warn("health sweep", zap.String("child", string(id)), zap.Error(err))
				}
			}
		}
	}
}
