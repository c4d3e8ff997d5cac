package overseer

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// ChildState is the supervision bookkeeping state of a child. Transitions are
// driven only by the owning supervisor.
type ChildState int

const (
	Starting ChildState = iota
	Running
	Stopping
	Stopped
	Failed
)

func (s ChildState) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func parseChildState(s string) ChildState {
	switch s {
	case "Starting":
		return Starting
	case "Running":
		return Running
	case "Stopping":
		return Stopping
	case "Stopped":
		return Stopped
	case "Failed":
		return Failed
	default:
		return -1
	}
}

const (
	eventStarted = "started"
	eventFail    = "fail"
	eventStop    = "stop"
	eventStopped = "stopped"
	eventRestart = "restart"
	eventDiscard = "discard"
)

var childTransitions = fsm.Events{
	{Name: eventStarted, Src: []string{Starting.String()}, Dst: Running.String()},
	{Name: eventFail, Src: []string{Starting.String(), Running.String()}, Dst: Failed.String()},
	{Name: eventStop, Src: []string{Starting.String(), Running.String(), Failed.String()}, Dst: Stopping.String()},
	{Name: eventStopped, Src: []string{Stopping.String()}, Dst: Stopped.String()},
	{Name: eventRestart, Src: []string{Failed.String(), Stopped.String()}, Dst: Starting.String()},
	{Name: eventDiscard, Src: []string{Failed.String()}, Dst: Stopped.String()},
}

// lifecycle wraps the state machine of one child handle.
type lifecycle struct {
	machine *fsm.FSM
}

func newLifecycle() *lifecycle {
	return &lifecycle{machine: fsm.NewFSM(Starting.String(), childTransitions, fsm.Callbacks{})}
}

func (l *lifecycle) current() ChildState {
	return parseChildState(l.machine.Current())
}

func (l *lifecycle) can(event string) bool {
	return l.machine.Can(event)
}

// fire applies event and returns the state it left.
func (l *lifecycle) fire(event string) (ChildState, error) {
	from := l.current()
	if err := l.machine.Event(context.Background(), event); err != nil {
		return from, fmt.Errorf("child state %s: %w", from, err)
	}
	return from, nil
}

// MarshalText renders the state name in JSON and YAML output.
func (s ChildState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
