package overseer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// recorder is a Monitor that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []SupervisionEvent
}

func (r *recorder) Record(e SupervisionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []SupervisionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SupervisionEvent(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// children returns the IDs of events of kind k, in emission order.
func (r *recorder) children(k EventKind) []ChildID {
	var ids []ChildID
	for _, e := range r.all() {
		if e.Kind == k {
			ids = append(ids, e.ChildID)
		}
	}
	return ids
}

func (r *recorder) forChild(id ChildID) []SupervisionEvent {
	var out []SupervisionEvent
	for _, e := range r.all() {
		if e.ChildID == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count(k EventKind) int {
	return len(r.children(k))
}

// fakeChild is a controllable Child. Every instance gets a unique serial.
type fakeChild struct {
	serial int64
	exited chan error

	startErr   error
	startDelay time.Duration
	stopErr    error
	stopBlocks bool
	health     func() ChildHealth

	startCalls atomic.Int32
	stopCalls  atomic.Int32
	lifetime   context.Context
	mu         sync.Mutex
}

func (c *fakeChild) Start(ctx context.Context) error {
	c.startCalls.Add(1)
	c.mu.Lock()
	c.lifetime = ctx
	c.mu.Unlock()
	if c.startDelay > 0 {
		time.Sleep(c.startDelay)
	}
	return c.startErr
}

func (c *fakeChild) Stop(ctx context.Context) error {
	c.stopCalls.Add(1)
	if c.stopBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.stopErr
}

func (c *fakeChild) HealthCheck(context.Context) ChildHealth {
	if c.health != nil {
		return c.health()
	}
	return HealthyStatus()
}

func (c *fakeChild) Exited() <-chan error { return c.exited }

func (c *fakeChild) crash(err error) { c.exited <- err }

func (c *fakeChild) lifetimeDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifetime != nil && c.lifetime.Err() != nil
}

// fleet builds fakeChild instances and remembers them per child ID.
type fleet struct {
	mu        sync.Mutex
	serial    atomic.Int64
	instances map[ChildID][]*fakeChild
}

func newFleet() *fleet {
	return &fleet{instances: make(map[ChildID][]*fakeChild)}
}

func (f *fleet) factory(id ChildID, configure ...func(*fakeChild)) ChildFactory {
	return func() (Child, error) {
		c := &fakeChild{serial: f.serial.Add(1), exited: make(chan error, 1)}
		for _, fn := range configure {
			fn(c)
		}
		f.mu.Lock()
		f.instances[id] = append(f.instances[id], c)
		f.mu.Unlock()
		return c, nil
	}
}

func (f *fleet) spec(id ChildID, configure ...func(*fakeChild)) ChildSpec {
	return NewChildSpec(id, f.factory(id, configure...))
}

func (f *fleet) latest(id ChildID) *fakeChild {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.instances[id]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (f *fleet) built(id ChildID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances[id])
}

// startTree builds a supervisor with the given children and starts it.
func startTree(t *testing.T, strategy Strategy, specs []ChildSpec, opts ...Option) (*Supervisor, *recorder) {
	t.Helper()

	rec := &recorder{}
	opts = append([]Option{WithName(t.Name()), WithMonitor(rec), WithChildren(specs...)}, opts...)
	sup := New(strategy, opts...)
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Stop(ctx)
	})
	return sup, rec
}

func requireState(t *testing.T, sup *Supervisor, id ChildID, want ChildState) {
	t.Helper()
	got, ok := sup.State(id)
	require.True(t, ok, "child %s not registered", id)
	require.Equal(t, want, got, "state of %s", id)
}
