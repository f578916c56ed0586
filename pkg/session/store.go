package session

import (
	"log/slog"
	"sync"
)

// Store owns the session state. All changes go through Dispatch.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
	logger    *slog.Logger
}

// NewStore creates a store in the initial state.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		listeners: make(map[int]func(State)),
		logger:    logger.With("component", "session.store"),
	}
}

// Dispatch applies a and returns the resulting state. Listeners are called
// in dispatch order when the action was applied. A listener must not call
// Dispatch.
func (s *Store) Dispatch(a Action) State {
	next, _ := s.Try(a)
	return next
}

// Try is Dispatch that also reports whether a was applied. A refused action
// returns the unchanged state and false.
func (s *Store) Try(a Action) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next, applied := reduce(prev, a)
	if !applied {
		s.logger.Debug("action ignored", "action", ActionName(a), "phase", prev.Phase)
		return prev, false
	}
	s.state = next

	s.logger.Debug("state changed",
		"action", ActionName(a),
		"from", prev.Phase,
		"to", next.Phase,
		"boxes", next.NumberOfBoxes,
	)

	for _, fn := range s.listeners {
		fn(next)
	}
	return next, true
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every applied transition. The returned func
// removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
