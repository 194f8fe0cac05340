package battle

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is a session's position in the connection lifecycle.
type State int

const (
	// StateUnmatched is the initial state right after connect, before the
	// queue has been consulted.
	StateUnmatched State = iota
	// StateWaiting means the session became host and is parked in the
	// queue until a guest arrives.
	StateWaiting
	// StateMatched means both peers share a room; gameplay messages are
	// legal only here.
	StateMatched
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnmatched:
		return "unmatched"
	case StateWaiting:
		return "waiting"
	case StateMatched:
		return "matched"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives session transitions. Every state change, including the
// peer-joined signal a host receives, goes through Apply; nothing mutates
// session state from outside the machine.
type Event int

const (
	// EventWait: the connection became host with no peer available.
	EventWait Event = iota
	// EventPaired: the connection popped a live room and matched
	// immediately on connect.
	EventPaired
	// EventPeerJoined: a guest joined the room this session hosts.
	EventPeerJoined
	// EventDisconnect: the network peer went away.
	EventDisconnect
	// EventFault: malformed input or an internal error; the connection is
	// being terminated.
	EventFault
)

func (e Event) String() string {
	switch e {
	case EventWait:
		return "wait"
	case EventPaired:
		return "paired"
	case EventPeerJoined:
		return "peer_joined"
	case EventDisconnect:
		return "disconnect"
	case EventFault:
		return "fault"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition reports an event that is not legal in the
// session's current state.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("battle: event %s not valid in state %s", e.Event, e.From)
}

// Session is the per-connection state machine. It references its room by
// id only; the room itself is shared property of the registry and of
// whichever sessions currently point at it.
type Session struct {
	ConnID uuid.UUID
	UserID string

	mu         sync.Mutex
	roomID     string
	isHost     bool
	state      State
	closedFrom State
}

// NewSession creates an unmatched session for a connection.
func NewSession(connID uuid.UUID, userID string) *Session {
	return &Session{
		ConnID: connID,
		UserID: userID,
		state:  StateUnmatched,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the room this session is bound to, or "".
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// IsHost reports whether this session created its room.
func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

// BindRoom records the room reference before the corresponding transition
// is applied: hosts bind on create, guests bind on pop.
func (s *Session) BindRoom(roomID string, isHost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.isHost = isHost
}

// Apply transitions the session, returning the state that was left.
// EventDisconnect and EventFault are accepted in every non-terminal state;
// everything else is checked against the transition table.
func (s *Session) Apply(event Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next, ok := transition(prev, event)
	if !ok {
		return prev, &ErrInvalidTransition{From: prev, Event: event}
	}
	if next == StateClosed && prev != StateClosed {
		s.closedFrom = prev
	}
	s.state = next
	return prev, nil
}

// ClosedFrom reports the state the session was in when it closed.
// Disconnect bookkeeping uses it when a fault already closed the machine
// before teardown ran.
func (s *Session) ClosedFrom() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedFrom
}

func transition(from State, event Event) (State, bool) {
	switch event {
	case EventDisconnect, EventFault:
		if from == StateClosed {
			return from, false
		}
		return StateClosed, true
	case EventWait:
		if from == StateUnmatched {
			return StateWaiting, true
		}
	case EventPaired:
		if from == StateUnmatched {
			return StateMatched, true
		}
	case EventPeerJoined:
		// Hosts move out of waiting; the guest that triggered the signal
		// is already matched, treat the echo as a no-op.
		switch from {
		case StateWaiting:
			return StateMatched, true
		case StateMatched:
			return StateMatched, true
		}
	}
	return from, false
}
