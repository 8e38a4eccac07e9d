package fsm

import "fmt"

type Role string

type State string

type Event string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

const (
	StateConstructed    State = "constructed"
	StateListening      State = "listening"
	StateSpawned        State = "spawned"
	StateConnecting     State = "connecting"
	StateRunning        State = "running"
	StateTimedOut       State = "timed_out"
	StateExitedEarly    State = "exited_early"
	StateCloseRequested State = "close_requested"
	StateClosed         State = "closed"
	StateFailed         State = "failed"
)

const (
	EventListen  Event = "listen"
	EventSpawn   Event = "spawn"
	EventDial    Event = "dial"
	EventConnect Event = "connect"
	EventTimeout Event = "timeout"
	EventExit    Event = "exit"
	EventStop    Event = "stop"
	EventDrain   Event = "drain"
	EventFail    Event = "fail"
)

// Transition applies event to current for the given role.
func Transition(role Role, current State, event Event) (State, error) {
	if event == EventFail {
		return StateFailed, nil
	}

	switch current {
	case StateRunning:
		switch event {
		case EventStop:
			return StateCloseRequested, nil
		case EventDrain:
			return StateClosed, nil
		default:
			return current, invalidTransition(role, current, event)
		}
	case StateCloseRequested:
		switch event {
		case EventDrain:
			return StateClosed, nil
		default:
			return current, invalidTransition(role, current, event)
		}
	case StateClosed, StateTimedOut, StateExitedEarly, StateFailed:
		return current, invalidTransition(role, current, event)
	}

	switch role {
	case RoleParent:
		return parent(current, event)
	case RoleChild:
		return child(current, event)
	default:
		return current, fmt.Errorf("unknown role %q", role)
	}
}

func parent(current State, event Event) (State, error) {
	switch current {
	case StateConstructed:
		switch event {
		case EventListen:
			return StateListening, nil
		default:
			return current, invalidTransition(RoleParent, current, event)
		}
	case StateListening:
		switch event {
		case EventSpawn:
			return StateSpawned, nil
		default:
			return current, invalidTransition(RoleParent, current, event)
		}
	case StateSpawned:
		switch event {
		case EventConnect:
			return StateRunning, nil
		case EventTimeout:
			return StateTimedOut, nil
		case EventExit:
			return StateExitedEarly, nil
		default:
			return current, invalidTransition(RoleParent, current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func child(current State, event Event) (State, error) {
	switch current {
	case StateConstructed:
		switch event {
		case EventDial:
			return StateConnecting, nil
		default:
			return current, invalidTransition(RoleChild, current, event)
		}
	case StateConnecting:
		switch event {
		case EventConnect:
			return StateRunning, nil
		default:
			return current, invalidTransition(RoleChild, current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Connected reports whether a connection is open in state s.
func Connected(s State) bool {
	return s == StateRunning || s == StateCloseRequested
}

func invalidTransition(role Role, state State, event Event) error {
	return fmt.Errorf("invalid %s transition: %s --(%s)--> ?", role, state, event)
}
