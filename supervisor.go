// Package overseer provides Erlang/OTP-style supervision trees for Go programs.
// A Supervisor owns an ordered set of children, restarts them according to a
// Strategy and each child's RestartPolicy, throttles restarts with a sliding
// window budget and escalates to its parent once the budget is spent.
//
// Basic usage:
//
//	sup := overseer.New(
//	    overseer.OneForOne,
//	    overseer.WithName("my-supervisor"),
//	    overseer.WithChildren(
//	        overseer.NewFuncSpec("worker", workerFunc),
//	    ),
//	)
//	if err := sup.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err := sup.Wait()
package overseer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cerrors "cirello.io/errors"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultNodeShutdownTimeout = 30 * time.Second

// timeNow is replaced in tests.
var timeNow = time.Now

// Supervisor manages children with a fixed restart strategy and a restart
// budget. Supervisors implement Child, so they can be nested to build trees.
//
// All methods are safe for concurrent use. Every operation that changes the
// child set or a child's state runs under one lock, so failure handling for
// sibling children never interleaves.
type Supervisor struct {
	// Configuration
	id              string
	name            string
	strategy        Strategy
	maxRestarts     int
	restartWindow   time.Duration
	backoffScope    BackoffScope
	delay           DelayPolicy
	shutdownTimeout time.Duration
	monitors        []Monitor
	baseLogger      *zap.Logger
	logger          *zap.Logger
	health          HealthConfig
	healthSweep     bool
	initial         []ChildSpec
	parent          context.Context

	// State protected by mu
	mu           sync.Mutex
	children     []*childHandle
	index        map[ChildID]*childHandle
	backoff      *RestartBackoff
	childBackoff map[ChildID]*RestartBackoff
	ctx          context.Context
	cancel       context.CancelFunc
	generation   uint64
	started      bool
	stopped      bool
	escalated    bool
	sweepCancel  context.CancelFunc
	sweepDone    chan struct{}

	// Status readable without mu
	statusMu   sync.RWMutex
	status     ChildHealth
	recovering bool
	finalErr   error

	done         chan struct{}
	doneOnce     sync.Once
	stopping     chan struct{}
	stoppingOnce sync.Once
	exited       chan error
}

// New creates a Supervisor with the given strategy and options.
// The supervisor must be started with Start before it runs the children
// registered through WithChildren; StartChild works at any time.
//
// Example:
//
//	sup := overseer.New(
//	    overseer.OneForAll,
//	    overseer.WithName("app-supervisor"),
//	    overseer.WithIntensity(10, time.Minute),
//	    overseer.WithLogger(logger),
//	)
func New(strategy Strategy, opts ...Option) *Supervisor {
	s := &Supervisor{
		id:              uuid.NewString(),
		name:            "supervisor",
		strategy:        strategy,
		maxRestarts:     DefaultMaxRestarts,
		restartWindow:   DefaultRestartWindow,
		shutdownTimeout: defaultNodeShutdownTimeout,
		baseLogger:      zap.NewNop(),
		health:          HealthConfig{}.withDefaults(),
		parent:          context.Background(),
		index:           make(map[ChildID]*childHandle),
		childBackoff:    make(map[ChildID]*RestartBackoff),
		status:          HealthyStatus(),
		done:            make(chan struct{}),
		stopping:        make(chan struct{}),
		exited:          make(chan error, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.baseLogger.Named(s.name).With(zap.String("supervisor_id", s.id))
	s.backoff = NewRestartBackoff(s.maxRestarts, s.restartWindow)
	s.ctx, s.cancel = context.WithCancel(s.parent)

	return s
}

// ID returns the unique identifier generated for this supervisor.
func (s *Supervisor) ID() string { return s.id }

// Name returns the supervisor's name.
func (s *Supervisor) Name() string { return s.name }

// Strategy returns the restart strategy fixed at construction.
func (s *Supervisor) Strategy() Strategy { return s.strategy }

// Start starts the children registered with WithChildren, in order. If one
// of them fails to start, the ones already running are stopped in reverse
// order and the error is returned.
//
// ctx is the lifetime of the supervisor: canceling it force-terminates every
// child. Use Stop for a graceful shutdown.
//
// Returns ErrSupervisorStopped if the supervisor has already been stopped.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true

	for _, spec := range s.initial {
		if _, err := s.startChildLocked(ctx, spec); err != nil {
			s.mu.Unlock()
			stopErr := s.Stop(context.WithoutCancel(ctx))
			return multierr.Append(fmt.Errorf("failed to start child %s: %w", spec.ID, err), stopErr)
		}
	}

	context.AfterFunc(ctx, s.cancel)
	context.AfterFunc(s.ctx, func() { s.terminate(context.Cause(s.ctx)) })
	s.startHealthSweepLocked()
	s.emit(SupervisionEvent{Kind: SupervisorStarted})
	s.logger.Info("supervisor started",
		zap.Stringer("strategy", s.strategy),
		zap.Int("children", len(s.children)),
	)
	s.mu.Unlock()

	return nil
}

// StartChild registers spec and starts its first instance. The child is
// appended to the registration order only once it is running. It fails with
// ErrDuplicateChildID, ErrFactory, ErrChildStart or ErrStartTimeout.
//
// ctx bounds how long the caller waits for the child to become ready, in
// addition to the child's StartTimeout.
func (s *Supervisor) StartChild(ctx context.Context, spec ChildSpec) (ChildID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startChildLocked(ctx, spec)
}

// StopChild stops a child according to its ShutdownPolicy, capped by the ctx
// deadline, and removes it from the supervisor. A forced stop is reported as
// ErrShutdownTimeout; the child is removed either way.
func (s *Supervisor) StopChild(ctx context.Context, id ChildID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.index[id]
	if !ok {
		return &SupervisorError{Op: "stop_child", Child: id, Err: ErrChildNotFound}
	}

	err := s.stopHandleLocked(ctx, h)
	s.removeLocked(h)
	return err
}

// RestartChild stops a child and starts a fresh instance of it. The restart
// is charged to the restart budget; an exhausted budget is returned as
// ErrRestartLimitExceeded without escalating.
func (s *Supervisor) RestartChild(ctx context.Context, id ChildID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSupervisorStopped
	}
	h, ok := s.index[id]
	if !ok {
		return &SupervisorError{Op: "restart_child", Child: id, Err: ErrChildNotFound}
	}
	if !s.budgetFor(id).RecordRestart(timeNow()) {
		return &SupervisorError{Op: "restart_child", Child: id, Err: ErrRestartLimitExceeded}
	}

	if err := s.stopHandleLocked(ctx, h); err != nil {
		s.logger.Warn("child did not stop cleanly before restart", zap.String("child", string(id)), zap.Error(err))
	}
	h.restarts++
	if err := s.startHandleLocked(ctx, h, true); err != nil {
		s.emit(SupervisionEvent{ChildID: id, Kind: ChildFailed, OldState: Starting, NewState: Failed, Cause: err, RestartCount: h.restarts})
		if rerr := s.recoverLocked(ctx, h, err); rerr != nil {
			return rerr
		}
		return err
	}
	return nil
}

// StopAllChildren stops every child in reverse registration order. Each child
// gets its own ShutdownPolicy, bounded by the ctx deadline; once the deadline
// has passed the remaining children are force-terminated. Every child is
// attempted and all errors are returned combined.
//
// The children stay registered in the Stopped state.
func (s *Supervisor) StopAllChildren(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopAllLocked(ctx)
}

// HandleFailure reports that child id failed with cause; a nil cause is a
// clean exit. It runs the same recovery pipeline as a crash detected by the
// supervisor itself. Unknown or not running children are ignored.
//
// ctx only carries values; the recovery is bounded by the children's own
// timeouts. The returned error is non-nil only when the restart budget is
// exhausted, in which case the supervisor has escalated.
func (s *Supervisor) HandleFailure(ctx context.Context, id ChildID, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.index[id]
	if !ok || s.stopped {
		s.logger.Debug("failure for unknown child ignored", zap.String("child", string(id)))
		return nil
	}
	if !h.state.can(eventFail) || h.state.current() == Starting {
		s.logger.Debug("failure for child that is not running ignored",
			zap.String("child", string(id)),
			zap.Stringer("state", h.state.current()),
		)
		return nil
	}
	return s.failLocked(ctx, h, cause)
}

// Stop gracefully stops every child in reverse registration order and shuts
// the supervisor down. Without a ctx deadline the shutdown is bounded by
// WithShutdownTimeout. Stopping a stopped supervisor is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	s.markStopping()
	s.stopHealthSweep()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.emit(SupervisionEvent{Kind: SupervisorStopping})
	s.logger.Info("supervisor stopping", zap.Int("children", len(s.children)))
	err := s.stopAllLocked(ctx)
	s.mu.Unlock()

	s.cancel()
	s.finish()
	return err
}

// HealthCheck reports the supervisor's own health: Unhealthy once it has
// escalated, Degraded while it is restarting children and Healthy otherwise.
func (s *Supervisor) HealthCheck(context.Context) ChildHealth {
	return s.Health()
}

// Health is HealthCheck without a context.
func (s *Supervisor) Health() ChildHealth {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	if s.status.Status != Healthy {
		return s.status
	}
	if s.recovering {
		return DegradedStatus("restarting children")
	}
	return s.status
}

// Exited reports escalation to a parent supervisor. It receives the
// ErrRestartLimitExceeded error once the restart budget is exhausted.
func (s *Supervisor) Exited() <-chan error { return s.exited }

// Done is closed when the supervisor stops or escalates.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Wait blocks until the supervisor stops and returns the error that caused
// it to stop. This is the ErrRestartLimitExceeded escalation error, or nil
// after Stop or cancellation.
//
// Use this in your main function to keep the supervisor running:
//
//	if err := sup.Wait(); err != nil {
//	    log.Fatal(err)
//	}
func (s *Supervisor) Wait() error {
	<-s.done
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.finalErr
}

// startChildLocked validates spec, starts it and appends it to the child set.
func (s *Supervisor) startChildLocked(ctx context.Context, spec ChildSpec) (ChildID, error) {
	if s.stopped {
		return "", ErrSupervisorStopped
	}
	spec, err := spec.normalize()
	if err != nil {
		return "", err
	}
	if _, exists := s.index[spec.ID]; exists {
		return "", &SupervisorError{Op: "start_child", Child: spec.ID, Err: ErrDuplicateChildID}
	}

	h := newChildHandle(spec)
	if err := s.startHandleLocked(ctx, h, false); err != nil {
		return "", err
	}
	s.children = append(s.children, h)
	s.index[spec.ID] = h
	return spec.ID, nil
}

// startHandleLocked builds a new instance for h and waits for it to become
// ready. On success h is Running with a new generation; on failure h is Failed.
func (s *Supervisor) startHandleLocked(ctx context.Context, h *childHandle, restart bool) error {
	id := h.spec.ID
	if h.state.current() != Starting {
		if _, err := h.state.fire(eventRestart); err != nil {
			return err
		}
	}

	child, err := build(h.spec.Factory)
	if err != nil {
		_, _ = h.state.fire(eventFail)
		s.logger.Warn("child factory failed", zap.String("child", string(id)), zap.Error(err))
		return &SupervisorError{Op: "start", Child: id, Err: ErrFactory, Cause: err}
	}

	lifetime, cancel := context.WithCancel(s.ctx)
	s.generation++
	inst := &instance{child: child, cancel: cancel, generation: s.generation}

	ready := make(chan error, 1)
	go func() {
		ready <- protect(func() error { return child.Start(lifetime) })
	}()

	timer := time.NewTimer(h.spec.StartTimeout)
	defer timer.Stop()

	var startErr error
	select {
	case err := <-ready:
		if err != nil {
			startErr = &SupervisorError{Op: "start", Child: id, Err: ErrChildStart, Cause: err}
		}
	case <-timer.C:
		startErr = &SupervisorError{Op: "start", Child: id, Err: ErrStartTimeout, Timeout: h.spec.StartTimeout}
	case <-ctx.Done():
		startErr = &SupervisorError{Op: "start", Child: id, Err: ErrStartTimeout, Cause: ctx.Err()}
	}
	if startErr != nil {
		inst.terminate()
		_, _ = h.state.fire(eventFail)
		s.logger.Warn("child failed to start", zap.String("child", string(id)), zap.Error(startErr))
		return startErr
	}

	h.inst = inst
	h.generation = inst.generation
	h.lastStartedAt = timeNow()
	h.unhealthyRun, h.degradedRun = 0, 0
	h.lastHealth = HealthyStatus()
	_, _ = h.state.fire(eventStarted)

	kind := ChildStarted
	if restart {
		kind = ChildRestarted
	}
	s.emit(SupervisionEvent{ChildID: id, Kind: kind, OldState: Starting, NewState: Running, RestartCount: h.restarts})
	s.logger.Info("child running", zap.String("child", string(id)), zap.Int("restarts", h.restarts))

	if n, ok := child.(ExitNotifier); ok {
		go s.watch(id, inst.generation, n.Exited(), lifetime)
	}
	return nil
}

// watch waits for one instance to terminate on its own.
func (s *Supervisor) watch(id ChildID, generation uint64, exited <-chan error, lifetime context.Context) {
	select {
	case cause := <-exited:
		s.onExit(id, generation, cause)
	case <-lifetime.Done():
	}
}

// onExit handles task termination unless the instance was already replaced
// or stopped by the supervisor.
func (s *Supervisor) onExit(id ChildID, generation uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.index[id]
	if !ok || s.stopped || h.inst == nil || h.inst.generation != generation || !h.state.can(eventFail) || h.state.current() == Starting {
		return
	}
	_ = s.failLocked(context.Background(), h, cause)
}

// failLocked marks a running child Failed and runs the recovery pipeline.
func (s *Supervisor) failLocked(ctx context.Context, h *childHandle, cause error) error {
	from, err := h.state.fire(eventFail)
	if err != nil {
		return nil
	}

	if cause != nil {
		s.logger.Warn("child failed", zap.String("child", string(h.spec.ID)), zap.Error(cause))
	} else {
		s.logger.Info("child exited", zap.String("child", string(h.spec.ID)))
	}
	s.emit(SupervisionEvent{ChildID: h.spec.ID, Kind: ChildFailed, OldState: from, NewState: Failed, Cause: cause, RestartCount: h.restarts})

	return s.recoverLocked(ctx, h, cause)
}

type failure struct {
	h     *childHandle
	cause error
}

// recoverLocked runs the recovery pipeline for a Failed child. Restarts that
// fail to start are fed back into the same pipeline.
func (s *Supervisor) recoverLocked(ctx context.Context, failed *childHandle, cause error) error {
	ctx = context.WithoutCancel(ctx)
	s.setRecovering(true)
	defer s.setRecovering(false)

	queue := []failure{{h: failed, cause: cause}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		if s.isStopping() {
			return nil
		}
		if s.index[f.h.spec.ID] != f.h || f.h.state.current() != Failed {
			continue
		}

		next, err := s.recoverOneLocked(ctx, f.h, f.cause)
		if err != nil {
			return err
		}
		queue = append(queue, next...)
	}
	return nil
}

func (s *Supervisor) recoverOneLocked(ctx context.Context, h *childHandle, cause error) ([]failure, error) {
	id := h.spec.ID

	if s.escalated {
		s.discardLocked(h, cause)
		return nil, nil
	}

	if !h.spec.Restart.shouldRestart(cause) {
		_ = s.stopHandleLocked(ctx, h)
		s.removeLocked(h)
		s.emit(SupervisionEvent{ChildID: id, Kind: ChildRemoved, OldState: Stopped, NewState: Stopped, Cause: cause, RestartCount: h.restarts})
		s.logger.Info("child removed", zap.String("child", string(id)), zap.Stringer("restart", h.spec.Restart))
		return nil, nil
	}

	if !s.budgetFor(id).RecordRestart(timeNow()) {
		return nil, s.escalateLocked(h, cause)
	}

	if s.delay != nil {
		s.sleep(s.delay.ComputeDelay(h.restarts))
		if s.isStopping() {
			s.logger.Debug("pending restart abandoned, supervisor stopping", zap.String("child", string(id)))
			return nil, nil
		}
	}

	affected := s.strategy.AffectedChildren(s.orderLocked(), id)
	if len(affected) == 0 {
		s.logger.Debug("strategy found nothing to restart", zap.String("child", string(id)))
		return nil, nil
	}
	decision := &StrategyDecision{
		Strategy:     s.strategy,
		Failed:       id,
		Affected:     affected,
		StopOrder:    s.strategy.StopOrder(affected),
		RestartOrder: s.strategy.RestartOrder(affected),
	}

	for _, sid := range decision.StopOrder {
		if err := s.stopHandleLocked(ctx, s.index[sid]); err != nil {
			s.logger.Warn("child did not stop cleanly", zap.String("child", string(sid)), zap.Error(err))
		}
	}

	var next []failure
	for _, rid := range decision.RestartOrder {
		rh := s.index[rid]
		if rh != h && rh.spec.Restart == Temporary {
			s.removeLocked(rh)
			s.emit(SupervisionEvent{ChildID: rid, Kind: ChildRemoved, OldState: Stopped, NewState: Stopped, RestartCount: rh.restarts})
			continue
		}

		rh.restarts++
		if err := s.startHandleLocked(ctx, rh, true); err != nil {
			s.emit(SupervisionEvent{ChildID: rid, Kind: ChildFailed, OldState: Starting, NewState: Failed, Cause: err, RestartCount: rh.restarts})
			next = append(next, failure{h: rh, cause: err})
		}
	}

	s.emit(SupervisionEvent{ChildID: id, Kind: StrategyApplied, Cause: cause, Decision: decision, RestartCount: h.restarts})
	s.logger.Info("strategy applied",
		zap.String("child", string(id)),
		zap.Stringer("strategy", s.strategy),
		zap.Int("affected", len(affected)),
	)
	return next, nil
}

// escalateLocked gives up on h and reports the exhausted budget upward.
func (s *Supervisor) escalateLocked(h *childHandle, cause error) error {
	b := s.budgetFor(h.spec.ID)
	err := &SupervisorError{Op: "restart", Child: h.spec.ID, Err: ErrRestartLimitExceeded, Cause: cause}

	s.escalated = true
	s.discardLocked(h, cause)

	s.logger.Error("restart limit exceeded, escalating",
		zap.String("child", string(h.spec.ID)),
		zap.Int("max_restarts", b.MaxRestarts()),
		zap.Duration("window", b.Window()),
		zap.Error(cause),
	)
	s.emit(SupervisionEvent{ChildID: h.spec.ID, Kind: RestartLimitExceeded, OldState: Failed, NewState: Stopped, Cause: err, RestartCount: b.Count(timeNow())})

	s.statusMu.Lock()
	s.status = UnhealthyStatus(err.Error())
	s.finalErr = err
	s.statusMu.Unlock()

	select {
	case s.exited <- err:
	default:
	}
	s.finish()
	return err
}

// discardLocked moves a Failed child to Stopped without restarting it.
func (s *Supervisor) discardLocked(h *childHandle, cause error) {
	if _, err := h.state.fire(eventDiscard); err != nil {
		return
	}
	h.inst.terminate()
	h.inst = nil
	s.emit(SupervisionEvent{ChildID: h.spec.ID, Kind: ChildStopped, OldState: Failed, NewState: Stopped, Cause: cause, RestartCount: h.restarts})
}

func (s *Supervisor) stopAllLocked(ctx context.Context) error {
	var errs error
	for i := len(s.children) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, s.stopHandleLocked(ctx, s.children[i]))
	}
	return errs
}

// stopHandleLocked takes h through Stopping to Stopped. Children that are
// already stopped are left alone.
func (s *Supervisor) stopHandleLocked(ctx context.Context, h *childHandle) error {
	from, err := h.state.fire(eventStop)
	if err != nil {
		return nil
	}

	err = s.shutdown(ctx, h)
	_, _ = h.state.fire(eventStopped)
	h.inst = nil

	s.emit(SupervisionEvent{ChildID: h.spec.ID, Kind: ChildStopped, OldState: from, NewState: Stopped, Cause: err, RestartCount: h.restarts})
	return err
}

// shutdown applies the child's ShutdownPolicy, bounded by the ctx deadline.
// The instance lifetime is always canceled afterwards.
func (s *Supervisor) shutdown(ctx context.Context, h *childHandle) error {
	inst := h.inst
	if inst == nil {
		return nil
	}
	defer inst.terminate()

	id := h.spec.ID
	deadline, hasDeadline := ctx.Deadline()

	var limit time.Duration
	switch h.spec.Shutdown.kind {
	case shutdownImmediate:
		return nil
	case shutdownInfinity:
		limit = h.spec.ShutdownTimeout
		if hasDeadline {
			limit = time.Until(deadline)
		}
	default:
		limit = h.spec.Shutdown.Timeout()
		if hasDeadline {
			limit = min(limit, time.Until(deadline))
		}
	}

	if limit <= 0 || ctx.Err() != nil {
		s.logger.Warn("child force-terminated, no time left to stop", zap.String("child", string(id)))
		return &SupervisorError{Op: "stop", Child: id, Err: ErrShutdownTimeout}
	}

	stopCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	stopped := make(chan error, 1)
	go func() {
		stopped <- protect(func() error { return inst.child.Stop(stopCtx) })
	}()

	select {
	case err := <-stopped:
		if err == nil {
			return nil
		}
		if stopCtx.Err() != nil && errors.Is(err, stopCtx.Err()) {
			s.logger.Warn("child force-terminated after shutdown timeout", zap.String("child", string(id)), zap.Duration("timeout", limit))
			return &SupervisorError{Op: "stop", Child: id, Err: ErrShutdownTimeout, Timeout: limit}
		}
		return &SupervisorError{Op: "stop", Child: id, Err: ErrChildStop, Cause: err}
	case <-stopCtx.Done():
		s.logger.Warn("child force-terminated after shutdown timeout", zap.String("child", string(id)), zap.Duration("timeout", limit))
		return &SupervisorError{Op: "stop", Child: id, Err: ErrShutdownTimeout, Timeout: limit}
	}
}

// terminate force-terminates every child after the supervisor's lifetime
// context was canceled.
func (s *Supervisor) terminate(cause error) {
	s.markStopping()
	s.cancel()
	s.stopHealthSweep()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for i := len(s.children) - 1; i >= 0; i-- {
		h := s.children[i]
		from, err := h.state.fire(eventStop)
		if err != nil {
			continue
		}
		h.inst.terminate()
		h.inst = nil
		_, _ = h.state.fire(eventStopped)
		s.emit(SupervisionEvent{ChildID: h.spec.ID, Kind: ChildStopped, OldState: from, NewState: Stopped, Cause: cause, RestartCount: h.restarts})
	}
	s.logger.Info("supervisor terminated", zap.Error(cause))
	s.mu.Unlock()

	s.finish()
}

func (s *Supervisor) removeLocked(h *childHandle) {
	for i, c := range s.children {
		if c == h {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	delete(s.index, h.spec.ID)
	delete(s.childBackoff, h.spec.ID)
}

func (s *Supervisor) orderLocked() []ChildID {
	order := make([]ChildID, len(s.children))
	for i, h := range s.children {
		order[i] = h.spec.ID
	}
	return order
}

func (s *Supervisor) budgetFor(id ChildID) *RestartBackoff {
	if s.backoffScope != PerChild {
		return s.backoff
	}
	b, ok := s.childBackoff[id]
	if !ok {
		b = NewRestartBackoff(s.maxRestarts, s.restartWindow)
		s.childBackoff[id] = b
	}
	return b
}

func (s *Supervisor) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.ctx.Done():
	case <-s.stopping:
	}
}

// markStopping wakes a restart delay so Stop can take the lock within its
// deadline.
func (s *Supervisor) markStopping() {
	s.stoppingOnce.Do(func() { close(s.stopping) })
}

func (s *Supervisor) isStopping() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return s.ctx.Err() != nil
	}
}

func (s *Supervisor) setRecovering(v bool) {
	s.statusMu.Lock()
	s.recovering = v
	s.statusMu.Unlock()
}

func (s *Supervisor) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// build runs a factory, turning a panic or a nil instance into an error.
func build(factory ChildFactory) (child Child, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerrors.E(r)
		}
	}()
	child, err = factory()
	if err == nil && child == nil {
		err = errors.New("factory returned a nil child")
	}
	return child, err
}

// protect runs f, converting a panic into an error.
func protect(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w", ErrChildPanicked, cerrors.E(r))
		}
	}()
	return f()
}
