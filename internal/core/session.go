package core

import (
	"strings"
	"sync"
)

// SessionState is the lifecycle stage of a connection.
type SessionState int

const (
	// StateConnecting is the state before the hub accepted the session.
	StateConnecting SessionState = iota
	// StateActive sessions receive and emit events.
	StateActive
	// StateClosed is terminal.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultSendBuffer is the outbound queue size used when none is given.
const DefaultSendBuffer = 64

// Session is one live transport link as seen by the core layer.
// UserID is empty for anonymous sessions.
type Session struct {
	ID     string
	UserID string

	mu     sync.Mutex
	state  SessionState
	events chan *Event
}

// NewSession constructs a session in the Connecting state.
func NewSession(id, userID string, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Session{
		ID:     id,
		UserID: strings.TrimSpace(userID),
		state:  StateConnecting,
		events: make(chan *Event, buffer),
	}
}

// Events is the outbound queue. It is closed when the session closes.
func (s *Session) Events() <-chan *Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Anonymous reports whether the session never identified a user.
func (s *Session) Anonymous() bool {
	return s.UserID == ""
}

func (s *Session) activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return false
	}
	s.state = StateActive
	return true
}

// close moves the session to Closed and closes the outbound queue.
// Returns false if it was already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	close(s.events)
	return true
}

// deliver enqueues an event without blocking. Events for closed sessions or
// full queues are dropped.
func (s *Session) deliver(event *Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}
