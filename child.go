package overseer

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	cerrors "cirello.io/errors"
)

// instance is the slot holding one running incarnation of a child. It is
// replaced wholesale on restart and never shared outside the supervisor.
type instance struct {
	child      Child
	cancel     context.CancelFunc
	generation uint64
}

// terminate force-terminates the instance by canceling its lifetime context.
func (i *instance) terminate() {
	if i != nil {
		i.cancel()
	}
}

// childHandle is the supervisor's runtime record for one child.
type childHandle struct {
	spec  ChildSpec
	inst  *instance
	state *lifecycle

	generation    uint64
	restarts      int
	unhealthyRun  int
	degradedRun   int
	lastStartedAt time.Time
	lastHealth    ChildHealth
}

func newChildHandle(spec ChildSpec) *childHandle {
	return &childHandle{
		spec:       spec,
		state:      newLifecycle(),
		lastHealth: HealthyStatus(),
	}
}

// PanicError is the failure cause reported for a FuncFactory child that panicked.
type PanicError struct {
	Value any
	Stack string
	err   error
}

func (p *PanicError) Error() string { return "panic: " + p.err.Error() }

func (p *PanicError) Unwrap() []error { return []error{ErrChildPanicked, p.err} }

// FuncFactory adapts a goroutine-style function into a ChildFactory. Each
// instance runs fn on its own goroutine; fn returning (or panicking) is
// reported as task termination.
func FuncFactory(fn ChildFunc) ChildFactory {
	return func() (Child, error) {
		return &funcChild{
			fn:     fn,
			exited: make(chan error, 1),
			done:   make(chan struct{}),
		}, nil
	}
}

// funcChild runs a ChildFunc with panic recovery.
type funcChild struct {
	fn     ChildFunc
	exited chan error
	done   chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *funcChild) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.runWithRecovery(runCtx)
	return nil
}

// runWithRecovery runs the child function with panic recovery.
func (c *funcChild) runWithRecovery(ctx context.Context) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack()), err: cerrors.E(r)}
		}
		c.exited <- err
		close(c.done)
	}()

	err = c.fn(ctx)
}

func (c *funcChild) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *funcChild) HealthCheck(context.Context) ChildHealth {
	select {
	case <-c.done:
		return UnhealthyStatus("exited")
	default:
		return HealthyStatus()
	}
}

func (c *funcChild) Exited() <-chan error { return c.exited }
