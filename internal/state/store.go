package state

import "sync"

// Listener observes every dispatched action together with the resulting state.
type Listener func(a Action, next State)

// Store wraps Reduce. Dispatch is safe for concurrent use, but the TUI only
// dispatches from its update loop.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
}

// NewStore starts from initial.
func NewStore(initial State) *Store {
	return &Store{state: initial}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces a and notifies listeners in registration order.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(a, next)
	}
	return next
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = func(Action, State) {}
		}
	}
}
