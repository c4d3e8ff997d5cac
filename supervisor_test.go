package overseer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSupervisorBasicStartStop tests basic supervisor lifecycle
func TestSupervisorBasicStartStop(t *testing.T) {
	var started atomic.Bool

	worker := func(ctx context.Context) error {
		started.Store(true)
		<-ctx.Done()
		return nil
	}

	sup := New(
		OneForOne,
		WithName("test-supervisor"),
		WithChildren(NewFuncSpec("worker", worker)),
	)

	require.NoError(t, sup.Start(context.Background()))
	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond, "worker did not start")
	requireState(t, sup, "worker", Running)

	require.NoError(t, sup.Stop(context.Background()))
	requireState(t, sup, "worker", Stopped)
	require.NoError(t, sup.Wait())

	_, err := sup.StartChild(context.Background(), NewFuncSpec("late", worker))
	require.ErrorIs(t, err, ErrSupervisorStopped)
	require.ErrorIs(t, sup.Start(context.Background()), ErrSupervisorStopped)
}

// TestOneForOneRestartsOnlyFailedChild tests that siblings keep running
func TestOneForOneRestartsOnlyFailedChild(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForOne, []ChildSpec{f.spec("A"), f.spec("B"), f.spec("C")})
	rec.reset()

	require.NoError(t, sup.HandleFailure(context.Background(), "B", errBoom))

	assert.Equal(t, 1, f.built("A"))
	assert.Equal(t, 2, f.built("B"))
	assert.Equal(t, 1, f.built("C"))
	assert.Empty(t, rec.forChild("A"))
	assert.Empty(t, rec.forChild("C"))
	assert.Equal(t, []ChildID{"B"}, rec.children(ChildStopped))
	assert.Equal(t, []ChildID{"B"}, rec.children(ChildRestarted))

	for _, id := range []ChildID{"A", "B", "C"} {
		requireState(t, sup, id, Running)
	}
}

// TestOneForAllOrdering tests reverse stop order and registration restart order
func TestOneForAllOrdering(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForAll, []ChildSpec{f.spec("A"), f.spec("B"), f.spec("C"), f.spec("D")})
	rec.reset()

	require.NoError(t, sup.HandleFailure(context.Background(), "B", errBoom))

	assert.Equal(t, []ChildID{"D", "C", "B", "A"}, rec.children(ChildStopped))
	assert.Equal(t, []ChildID{"A", "B", "C", "D"}, rec.children(ChildRestarted))

	var decision *StrategyDecision
	for _, e := range rec.all() {
		if e.Kind == StrategyApplied {
			decision = e.Decision
		}
	}
	require.NotNil(t, decision)
	assert.Equal(t, OneForAll, decision.Strategy)
	assert.Equal(t, ChildID("B"), decision.Failed)
	assert.Equal(t, []ChildID{"D", "C", "B", "A"}, decision.StopOrder)
	assert.Equal(t, []ChildID{"A", "B", "C", "D"}, decision.RestartOrder)
	assert.Equal(t, 1, rec.count(StrategyApplied))
}

// TestRestForOneScope tests that earlier siblings are never touched
func TestRestForOneScope(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, RestForOne, []ChildSpec{f.spec("A"), f.spec("B"), f.spec("C")})
	rec.reset()

	require.NoError(t, sup.HandleFailure(context.Background(), "B", errBoom))

	assert.Equal(t, []ChildID{"C", "B"}, rec.children(ChildStopped))
	assert.Equal(t, []ChildID{"B", "C"}, rec.children(ChildRestarted))
	assert.Empty(t, rec.forChild("A"))
	assert.Equal(t, 1, f.built("A"))
	assert.EqualValues(t, 0, f.latest("A").stopCalls.Load())
	requireState(t, sup, "A", Running)
}

// TestTemporaryChildIsEvicted tests that Temporary children are removed, not restarted
func TestTemporaryChildIsEvicted(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForOne, []ChildSpec{
		f.spec("A"),
		f.spec("D").WithRestart(Temporary),
	})
	require.Equal(t, 2, sup.Count())

	require.NoError(t, sup.HandleFailure(context.Background(), "D", errBoom))

	assert.Equal(t, 1, sup.Count())
	assert.Equal(t, 1, f.built("D"))
	_, ok := sup.State("D")
	assert.False(t, ok)
	assert.Equal(t, []ChildID{"D"}, rec.children(ChildRemoved))

	rec.reset()
	require.NoError(t, sup.HandleFailure(context.Background(), "D", errBoom))
	assert.Empty(t, rec.all())
	assert.Equal(t, 1, f.built("D"))
}

// TestTemporarySiblingRemovedOnOneForAll tests that Temporary siblings are not restarted
func TestTemporarySiblingRemovedOnOneForAll(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForAll, []ChildSpec{
		f.spec("A"),
		f.spec("T").WithRestart(Temporary),
		f.spec("B"),
	})

	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))

	assert.Equal(t, 2, sup.Count())
	assert.Equal(t, []ChildID{"T"}, rec.children(ChildRemoved))
	assert.Equal(t, 1, f.built("T"))
	assert.Equal(t, 2, f.built("B"))
}

// TestTransientRestartPolicy tests that Transient children restart only on errors
func TestTransientRestartPolicy(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("job").WithRestart(Transient)})

	require.NoError(t, sup.HandleFailure(context.Background(), "job", errBoom))
	assert.Equal(t, 2, f.built("job"))
	requireState(t, sup, "job", Running)

	require.NoError(t, sup.HandleFailure(context.Background(), "job", nil))
	assert.Equal(t, 2, f.built("job"))
	assert.Equal(t, 0, sup.Count())
}

// TestPermanentRestartOnCleanExit tests that Permanent children restart after a nil exit
func TestPermanentRestartOnCleanExit(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("svc")})

	require.NoError(t, sup.HandleFailure(context.Background(), "svc", nil))
	assert.Equal(t, 2, f.built("svc"))
	requireState(t, sup, "svc", Running)
}

// TestRestartLimitEscalates tests that exhausting the budget escalates
func TestRestartLimitEscalates(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForOne, []ChildSpec{f.spec("A"), f.spec("B")},
		WithIntensity(3, time.Minute),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom), "failure %d", i)
	}

	err := sup.HandleFailure(context.Background(), "A", errBoom)
	require.ErrorIs(t, err, ErrRestartLimitExceeded)
	require.ErrorIs(t, err, errBoom)
	assert.True(t, IsFatal(err))

	assert.Equal(t, 4, f.built("A"))
	requireState(t, sup, "A", Stopped)
	requireState(t, sup, "B", Running)
	assert.Equal(t, 1, rec.count(RestartLimitExceeded))
	assert.Equal(t, Unhealthy, sup.Health().Status)

	select {
	case escalated := <-sup.Exited():
		require.ErrorIs(t, escalated, ErrRestartLimitExceeded)
	default:
		t.Fatal("escalation not reported on Exited")
	}
	require.ErrorIs(t, sup.Wait(), ErrRestartLimitExceeded)
}

// TestZeroIntensityAlwaysEscalates tests that a zero budget never restarts
func TestZeroIntensityAlwaysEscalates(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A")}, WithIntensity(0, time.Minute))

	err := sup.HandleFailure(context.Background(), "A", errBoom)
	require.ErrorIs(t, err, ErrRestartLimitExceeded)
	assert.Equal(t, 1, f.built("A"))
}

// TestPerChildBackoffScope tests that budgets are tracked per child when asked
func TestPerChildBackoffScope(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A"), f.spec("B")},
		WithIntensity(1, time.Minute),
		WithBackoffScope(PerChild),
	)

	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	require.NoError(t, sup.HandleFailure(context.Background(), "B", errBoom))
	require.ErrorIs(t, sup.HandleFailure(context.Background(), "A", errBoom), ErrRestartLimitExceeded)
}

// TestPerNodeBackoffIsShared tests the default node-wide budget
func TestPerNodeBackoffIsShared(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A"), f.spec("B")},
		WithIntensity(1, time.Minute),
	)

	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	require.ErrorIs(t, sup.HandleFailure(context.Background(), "B", errBoom), ErrRestartLimitExceeded)
}

// TestRestartWindowSlides tests that old restarts stop counting against the budget
func TestRestartWindowSlides(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = time.Now })

	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A")}, WithIntensity(1, 10*time.Second))

	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	now = now.Add(10*time.Second + time.Millisecond)
	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
}

// TestNoInPlaceRestart tests that every restart builds a new instance
func TestNoInPlaceRestart(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForAll, []ChildSpec{f.spec("A"), f.spec("B")})

	beforeA, beforeB := f.latest("A"), f.latest("B")
	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	afterA, afterB := f.latest("A"), f.latest("B")

	assert.NotSame(t, beforeA, afterA)
	assert.NotSame(t, beforeB, afterB)
	assert.NotEqual(t, beforeA.serial, afterA.serial)
	assert.True(t, beforeA.lifetimeDone(), "old instance lifetime not canceled")
	assert.False(t, afterA.lifetimeDone())
}

// TestStopAllChildrenBestEffort tests that every child is attempted
func TestStopAllChildrenBestEffort(t *testing.T) {
	f := newFleet()
	stopErr := errors.New("stuck flush")
	sup, rec := startTree(t, OneForOne, []ChildSpec{
		f.spec("A"),
		f.spec("B", func(c *fakeChild) { c.stopBlocks = true }).WithShutdown(Graceful(30 * time.Millisecond)),
		f.spec("C", func(c *fakeChild) { c.stopErr = stopErr }),
	})
	rec.reset()

	err := sup.StopAllChildren(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.ErrorIs(t, err, ErrChildStop)
	assert.ErrorIs(t, err, stopErr)

	assert.Equal(t, []ChildID{"C", "B", "A"}, rec.children(ChildStopped))
	for _, id := range []ChildID{"A", "B", "C"} {
		assert.EqualValues(t, 1, f.latest(id).stopCalls.Load(), "stop calls for %s", id)
		assert.True(t, f.latest(id).lifetimeDone(), "lifetime of %s", id)
		requireState(t, sup, id, Stopped)
	}
}

// TestStopAllChildrenExpiredDeadline tests that children are force-terminated once the deadline passed
func TestStopAllChildrenExpiredDeadline(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A"), f.spec("B")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := sup.StopAllChildren(ctx)
	require.ErrorIs(t, err, ErrShutdownTimeout)
	for _, id := range []ChildID{"A", "B"} {
		assert.True(t, f.latest(id).lifetimeDone())
		requireState(t, sup, id, Stopped)
	}
}

// TestStopChild tests stopping and removing a single child
func TestStopChild(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A"), f.spec("B")})

	require.NoError(t, sup.StopChild(context.Background(), "A"))
	assert.Equal(t, 1, sup.Count())
	assert.EqualValues(t, 1, f.latest("A").stopCalls.Load())

	err := sup.StopChild(context.Background(), "A")
	require.ErrorIs(t, err, ErrChildNotFound)
}

// TestStopChildDeadlineCapsPolicy tests that the caller deadline wins over a longer grace period
func TestStopChildDeadlineCapsPolicy(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{
		f.spec("slow", func(c *fakeChild) { c.stopBlocks = true }).WithShutdown(Graceful(time.Hour)),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sup.StopChild(ctx, "slow")
	require.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, f.latest("slow").lifetimeDone())
}

// TestImmediateShutdown tests that Immediate skips the graceful stop
func TestImmediateShutdown(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{
		f.spec("cache", func(c *fakeChild) { c.stopBlocks = true }).WithShutdown(Immediate()),
	})

	require.NoError(t, sup.StopChild(context.Background(), "cache"))
	assert.EqualValues(t, 0, f.latest("cache").stopCalls.Load())
	assert.True(t, f.latest("cache").lifetimeDone())
}

// TestZeroGracePeriodStopsImmediately tests that Graceful(0) is not reported as a timeout
func TestZeroGracePeriodStopsImmediately(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{
		f.spec("cache", func(c *fakeChild) { c.stopBlocks = true }).WithShutdown(Graceful(0)),
	})

	require.NoError(t, sup.StopChild(context.Background(), "cache"))
	assert.EqualValues(t, 0, f.latest("cache").stopCalls.Load())
	assert.True(t, f.latest("cache").lifetimeDone())
}

// TestInfinityShutdownBoundedBySpec tests the ShutdownTimeout fallback for Infinity
func TestInfinityShutdownBoundedBySpec(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{
		f.spec("db", func(c *fakeChild) { c.stopBlocks = true }).
			WithShutdown(Infinity()).
			WithShutdownTimeout(20 * time.Millisecond),
	})

	err := sup.StopChild(context.Background(), "db")
	require.ErrorIs(t, err, ErrShutdownTimeout)
}

// TestStartChildValidation tests duplicate IDs and invalid specs
func TestStartChildValidation(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A")})

	_, err := sup.StartChild(context.Background(), f.spec("A"))
	require.ErrorIs(t, err, ErrDuplicateChildID)
	assert.Equal(t, 1, f.built("A"))

	_, err = sup.StartChild(context.Background(), ChildSpec{ID: "nofactory"})
	require.ErrorIs(t, err, ErrInvalidChildSpec)

	_, err = sup.StartChild(context.Background(), ChildSpec{Factory: f.factory("x")})
	require.ErrorIs(t, err, ErrInvalidChildSpec)

	id, err := sup.StartChild(context.Background(), ChildSpec{ID: "literal", Factory: f.factory("literal")})
	require.NoError(t, err)
	assert.Equal(t, ChildID("literal"), id)
	infos := sup.Children()
	require.Len(t, infos, 2)
	assert.Equal(t, ChildID("literal"), infos[1].ID)
	assert.Equal(t, "Graceful(10s)", infos[1].Shutdown)
}

// TestStartChildFactoryError tests that a failing factory is reported and not registered
func TestStartChildFactoryError(t *testing.T) {
	sup, _ := startTree(t, OneForOne, nil)

	_, err := sup.StartChild(context.Background(), NewChildSpec("broken", func() (Child, error) {
		return nil, errBoom
	}))
	require.ErrorIs(t, err, ErrFactory)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, sup.Count())

	_, err = sup.StartChild(context.Background(), NewChildSpec("panics", func() (Child, error) {
		panic("constructor exploded")
	}))
	require.ErrorIs(t, err, ErrFactory)
}

// TestStartTimeout tests that a slow Start is reported and force-terminated
func TestStartTimeout(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, nil)

	_, err := sup.StartChild(context.Background(),
		f.spec("slow", func(c *fakeChild) { c.startDelay = 200 * time.Millisecond }).
			WithStartTimeout(20*time.Millisecond),
	)
	require.ErrorIs(t, err, ErrStartTimeout)
	assert.Equal(t, 0, sup.Count())
	assert.True(t, f.latest("slow").lifetimeDone())
}

// TestStartChildError tests that errors from Child.Start are wrapped
func TestStartChildError(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, nil)

	_, err := sup.StartChild(context.Background(), f.spec("bad", func(c *fakeChild) { c.startErr = errBoom }))
	require.ErrorIs(t, err, ErrChildStart)
	require.ErrorIs(t, err, errBoom)
}

// TestStartStopsStartedChildrenOnFailure tests that Start unwinds on a failed child
func TestStartStopsStartedChildrenOnFailure(t *testing.T) {
	f := newFleet()
	sup := New(OneForOne, WithChildren(
		f.spec("A"),
		f.spec("B", func(c *fakeChild) { c.startErr = errBoom }),
		f.spec("C"),
	))

	err := sup.Start(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.EqualValues(t, 1, f.latest("A").stopCalls.Load())
	assert.Equal(t, 0, f.built("C"))
}

// TestFailedRestartReentersPipeline tests that factory failures during restart count against the budget
func TestFailedRestartReentersPipeline(t *testing.T) {
	var calls atomic.Int32
	factory := func() (Child, error) {
		if calls.Add(1) > 1 {
			return nil, errBoom
		}
		return &fakeChild{exited: make(chan error, 1)}, nil
	}

	sup, rec := startTree(t, OneForOne, []ChildSpec{NewChildSpec("db", factory)}, WithIntensity(3, time.Minute))

	err := sup.HandleFailure(context.Background(), "db", errors.New("connection lost"))
	require.ErrorIs(t, err, ErrRestartLimitExceeded)
	require.ErrorIs(t, err, ErrFactory)
	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, 1, rec.count(RestartLimitExceeded))
}

// TestExitNotificationTriggersRestart tests restarts driven by the child's own exit
func TestExitNotificationTriggersRestart(t *testing.T) {
	var runCount atomic.Int32

	worker := func(ctx context.Context) error {
		count := runCount.Add(1)
		if count < 3 {
			return errors.New("simulated error")
		}
		<-ctx.Done()
		return nil
	}

	sup, rec := startTree(t, OneForOne, []ChildSpec{NewFuncSpec("failing-worker", worker)})

	require.Eventually(t, func() bool { return runCount.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return rec.count(ChildRestarted) == 2 }, time.Second, 5*time.Millisecond)
	requireState(t, sup, "failing-worker", Running)
}

// TestPanicRecovery tests that panics in children are recovered and restarted
func TestPanicRecovery(t *testing.T) {
	var runCount atomic.Int32

	worker := func(ctx context.Context) error {
		if runCount.Add(1) == 1 {
			panic("intentional panic")
		}
		<-ctx.Done()
		return nil
	}

	_, rec := startTree(t, OneForOne, []ChildSpec{NewFuncSpec("panicky", worker)})

	require.Eventually(t, func() bool { return rec.count(ChildRestarted) == 1 }, 2*time.Second, 5*time.Millisecond)

	var cause error
	for _, e := range rec.all() {
		if e.Kind == ChildFailed {
			cause = e.Cause
		}
	}
	require.ErrorIs(t, cause, ErrChildPanicked)
	var perr *PanicError
	require.ErrorAs(t, cause, &perr)
	assert.Equal(t, "intentional panic", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

// TestStaleExitIgnored tests that an exit from a replaced instance is ignored
func TestStaleExitIgnored(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForOne, []ChildSpec{f.spec("A")})

	old := f.latest("A")
	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	rec.reset()

	old.exited <- errBoom
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, rec.all())
	assert.Equal(t, 2, f.built("A"))
}

// TestCrashViaExitChannel tests the asynchronous failure path
func TestCrashViaExitChannel(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, RestForOne, []ChildSpec{f.spec("A"), f.spec("B")})
	rec.reset()

	f.latest("A").crash(errBoom)

	require.Eventually(t, func() bool { return rec.count(StrategyApplied) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []ChildID{"B", "A"}, rec.children(ChildStopped))
	assert.Equal(t, []ChildID{"A", "B"}, rec.children(ChildRestarted))
	requireState(t, sup, "A", Running)
}

// TestRestartChild tests manual restarts
func TestRestartChild(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForAll, []ChildSpec{f.spec("A"), f.spec("B")}, WithIntensity(1, time.Minute))

	require.NoError(t, sup.RestartChild(context.Background(), "A"))
	assert.Equal(t, 2, f.built("A"))
	assert.Equal(t, 1, f.built("B"))
	assert.Equal(t, 0, rec.count(StrategyApplied))

	err := sup.RestartChild(context.Background(), "A")
	require.ErrorIs(t, err, ErrRestartLimitExceeded)
	requireState(t, sup, "A", Running)

	require.ErrorIs(t, sup.RestartChild(context.Background(), "nope"), ErrChildNotFound)
}

// TestRestartDelay tests that the delay policy runs before the restart
func TestRestartDelay(t *testing.T) {
	f := newFleet()
	sup, _ := startTree(t, OneForOne, []ChildSpec{f.spec("A")}, WithRestartDelay(ConstantDelay(50*time.Millisecond)))

	start := time.Now()
	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// TestStopInterruptsRestartDelay tests that Stop keeps its deadline while a delayed restart is pending
func TestStopInterruptsRestartDelay(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForOne, []ChildSpec{f.spec("A")}, WithRestartDelay(ConstantDelay(3*time.Second)))

	f.latest("A").crash(errBoom)
	require.Eventually(t, func() bool { return rec.count(ChildFailed) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_ = sup.Stop(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, f.built("A"))
	requireState(t, sup, "A", Stopped)
}

// TestContextCancellationTerminates tests that canceling the parent context force-terminates children
func TestContextCancellationTerminates(t *testing.T) {
	f := newFleet()
	ctx, cancel := context.WithCancel(context.Background())

	sup := New(OneForOne, WithContext(ctx), WithChildren(f.spec("A"), f.spec("B")))
	require.NoError(t, sup.Start(context.Background()))

	cancel()

	select {
	case <-sup.Done():
	case <-time.After(time.Second):
		t.Fatal("supervisor did not terminate")
	}
	require.NoError(t, sup.Wait())
	requireState(t, sup, "A", Stopped)
	requireState(t, sup, "B", Stopped)
	assert.True(t, f.latest("A").lifetimeDone())
}

// TestHandleFailureUnknownChild tests the no-op path
func TestHandleFailureUnknownChild(t *testing.T) {
	sup, rec := startTree(t, OneForAll, nil)
	rec.reset()

	require.NoError(t, sup.HandleFailure(context.Background(), "ghost", errBoom))
	assert.Empty(t, rec.all())
}

// TestHandleFailureStoppedChild tests that a failure reported for a stopped child is ignored
func TestHandleFailureStoppedChild(t *testing.T) {
	f := newFleet()
	sup, rec := startTree(t, OneForOne, []ChildSpec{f.spec("A")})
	require.NoError(t, sup.StopAllChildren(context.Background()))
	rec.reset()

	require.NoError(t, sup.HandleFailure(context.Background(), "A", errBoom))
	assert.Empty(t, rec.all())
	assert.Equal(t, 1, f.built("A"))
	requireState(t, sup, "A", Stopped)
}

// TestEventHandler tests function handlers
func TestEventHandler(t *testing.T) {
	var kinds []EventKind
	sup := New(OneForOne,
		WithMonitor(NoopMonitor{}),
		WithEventHandler(func(e SupervisionEvent) { kinds = append(kinds, e.Kind) }),
		WithChildren(newFleet().spec("A")),
	)
	require.NoError(t, sup.Start(context.Background()))
	require.NoError(t, sup.Stop(context.Background()))

	assert.Equal(t, []EventKind{ChildStarted, SupervisorStarted, SupervisorStopping, ChildStopped}, kinds)
	assert.Len(t, sup.monitors, 1)
}
