package overseer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Option configures a Supervisor during creation.
type Option func(*Supervisor)

// WithName sets the supervisor's name for logging and events.
//
// Example:
//
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithName("http-supervisor"),
//	)
func WithName(name string) Option {
	return func(s *Supervisor) {
		s.name = name
	}
}

// WithIntensity sets the restart budget: at most maxRestarts restarts within
// the sliding window. Once the budget is spent the next failure escalates
// with ErrRestartLimitExceeded. A maxRestarts of zero escalates every failure.
//
// Example:
//
//	// Allow up to 10 restarts per minute
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithIntensity(10, time.Minute),
//	)
func WithIntensity(maxRestarts int, window time.Duration) Option {
	return func(s *Supervisor) {
		s.maxRestarts = maxRestarts
		s.restartWindow = window
	}
}

// WithBackoffScope selects whether the restart budget is shared by the whole
// supervisor (PerNode, the default) or tracked per child (PerChild).
//
// PerChild changes failure-storm behavior: a OneForAll storm caused by many
// different children is no longer throttled as one budget, so a subtree can
// restart far more often before escalating.
func WithBackoffScope(scope BackoffScope) Option {
	return func(s *Supervisor) {
		s.backoffScope = scope
	}
}

// WithRestartDelay sets a delay policy applied before a granted restart runs.
// There is no delay by default.
//
// Example:
//
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithRestartDelay(
//	        overseer.ExponentialDelay(100*time.Millisecond, 5*time.Second),
//	    ),
//	)
func WithRestartDelay(policy DelayPolicy) Option {
	return func(s *Supervisor) {
		s.delay = policy
	}
}

// WithMonitor attaches a Monitor. Multiple monitors can be attached by
// passing the option multiple times.
func WithMonitor(m Monitor) Option {
	return func(s *Supervisor) {
		if m == nil {
			return
		}
		if _, noop := m.(NoopMonitor); noop {
			return
		}
		s.monitors = append(s.monitors, m)
	}
}

// WithEventHandler adds a function receiving supervision events.
// Handlers should return quickly to avoid blocking the supervisor.
//
// Example:
//
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithEventHandler(func(e overseer.SupervisionEvent) {
//	        log.Printf("[%s] %s: %v", e.Kind, e.ChildID, e.Cause)
//	    }),
//	)
func WithEventHandler(handler func(SupervisionEvent)) Option {
	return WithMonitor(MonitorFunc(handler))
}

// WithLogger sets the zap logger. The supervisor logs through a child logger
// named after the supervisor. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.baseLogger = logger
		}
	}
}

// WithShutdownTimeout bounds Stop when its context carries no deadline.
// The default is 30 seconds. If timeout is <= 0, the default is used.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) {
		if timeout <= 0 {
			timeout = defaultNodeShutdownTimeout
		}
		s.shutdownTimeout = timeout
	}
}

// WithHealthChecks enables the periodic health sweep. Each running child is
// checked every cfg.Interval; see HealthConfig for thresholds.
func WithHealthChecks(cfg HealthConfig) Option {
	return func(s *Supervisor) {
		s.health = cfg.withDefaults()
		s.healthSweep = cfg.Interval > 0
	}
}

// WithChildren adds initial children to the supervisor.
// Children are not started automatically; call Start to begin supervision.
// They are started in the order given, which becomes their registration order.
//
// Example:
//
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithChildren(
//	        overseer.NewFuncSpec("worker-1", worker1Func),
//	        overseer.NewFuncSpec("worker-2", worker2Func).WithRestart(overseer.Transient),
//	    ),
//	)
func WithChildren(specs ...ChildSpec) Option {
	return func(s *Supervisor) {
		s.initial = append(s.initial, specs...)
	}
}

// WithContext sets a custom parent context for the supervisor instead of
// context.Background(). Canceling it force-terminates every child.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithContext(ctx),
//	)
func WithContext(ctx context.Context) Option {
	return func(s *Supervisor) {
		s.parent = ctx
	}
}
