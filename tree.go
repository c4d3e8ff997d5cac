package overseer

import "time"

// SupervisorFactory returns a ChildFactory that builds a fresh supervisor for
// every (re)start, so a subtree can be registered in a parent supervisor like
// any other child. The subtree escalates to the parent through Exited once
// its own restart budget is spent.
func SupervisorFactory(strategy Strategy, opts ...Option) ChildFactory {
	return func() (Child, error) {
		return New(strategy, opts...), nil
	}
}

// NewSupervisorSpec is the child spec of a nested supervisor named id. Subtrees get
// an Infinity shutdown so their own children can finish their policies.
//
// Example:
//
//	root := overseer.New(overseer.OneForOne, overseer.WithChildren(
//	    overseer.NewSupervisorSpec("db", overseer.RestForOne,
//	        overseer.WithChildren(pool, cache),
//	    ),
//	))
func NewSupervisorSpec(id ChildID, strategy Strategy, opts ...Option) ChildSpec {
	opts = append([]Option{WithName(string(id))}, opts...)
	return NewChildSpec(id, SupervisorFactory(strategy, opts...)).WithShutdown(Infinity())
}

// ChildInfo is a point-in-time view of one child.
type ChildInfo struct {
	ID            ChildID       `json:"id"`
	State         ChildState    `json:"state"`
	Restart       string        `json:"restart"`
	Shutdown      string        `json:"shutdown"`
	Health        ChildHealth   `json:"health"`
	Restarts      int           `json:"restarts"`
	LastStartedAt time.Time     `json:"last_started_at"`
	Supervisor    *TreeSnapshot `json:"supervisor,omitempty"`
}

// TreeSnapshot is a point-in-time view of a supervisor and, recursively, its
// nested supervisors.
type TreeSnapshot struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Strategy string      `json:"strategy"`
	Health   ChildHealth `json:"health"`
	Children []ChildInfo `json:"children"`
}

// Children returns the children in registration order.
func (s *Supervisor) Children() []ChildInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]ChildInfo, 0, len(s.children))
	for _, h := range s.children {
		info := ChildInfo{
			ID:            h.spec.ID,
			State:         h.state.current(),
			Restart:       h.spec.Restart.String(),
			Shutdown:      h.spec.Shutdown.String(),
			Health:        h.lastHealth,
			Restarts:      h.restarts,
			LastStartedAt: h.lastStartedAt,
		}
		if h.inst != nil {
			if sub, ok := h.inst.child.(*Supervisor); ok {
				snap := sub.Snapshot()
				info.Supervisor = &snap
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Snapshot returns the whole subtree rooted at s.
func (s *Supervisor) Snapshot() TreeSnapshot {
	return TreeSnapshot{
		ID:       s.id,
		Name:     s.name,
		Strategy: s.strategy.String(),
		Health:   s.Health(),
		Children: s.Children(),
	}
}

// Count returns the number of registered children.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// State returns the state of child id.
func (s *Supervisor) State(id ChildID) (ChildState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.index[id]
	if !ok {
		return 0, false
	}
	return h.state.current(), true
}
