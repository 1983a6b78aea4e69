package feed

import "sync"

// State tracks a subscription through its lifecycle:
// Idle -> Subscribing -> Active -> (Error | Closed).
type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateActive
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Subscription is one client's attachment to a feed scope. Closed is terminal;
// after a network failure (Error) the client must resubscribe from scratch,
// there is no durable cursor to resume from.
type Subscription struct {
	hub    *Hub
	scope  string
	userID string
	client Subscriber

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scope returns the channel key this subscription is attached to.
func (s *Subscription) Scope() string {
	return s.scope
}

// Unsubscribe detaches from the hub and marks the subscription Closed.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()
	s.hub.unsubscribe(s)
}

// setState moves to next unless the subscription is already terminal.
func (s *Subscription) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = next
}

// fail marks the subscription Error after a send failure. The hub removes it;
// the owning client is expected to resubscribe.
func (s *Subscription) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive || s.state == StateSubscribing {
		s.state = StateError
	}
}
