package authstate

import (
	"context"
	"fmt"
	"sync"
)

// Store holds the current session of one application instance.
// It is written by its Resolver (and UpdateLocal) and read concurrently by
// request handlers.
type Store struct {
	mu        sync.RWMutex
	session   *Session
	resolving bool
	resolved  chan struct{}

	watchers map[uint64]chan struct{}
	nextID   uint64
}

func NewStore() *Store {
	return &Store{
		resolving: true,
		resolved:  make(chan struct{}),
		watchers:  make(map[uint64]chan struct{}),
	}
}

// Read returns the latest state. The returned session is a copy.
func (s *Store) Read() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Session: cloneSession(s.session), Resolving: s.resolving}
}

// Replace swaps in session (nil = signed out) and marks the store resolved.
func (s *Store) Replace(session *Session) {
	s.mu.Lock()
	next := cloneSession(session)
	changed := s.resolving || !sameSession(s.session, next)
	s.session = next
	if s.resolving {
		s.resolving = false
		close(s.resolved)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// UpdateLocal merges p into the current session without a provider round
// trip. It does nothing when no session is present and never changes the
// identity. It reports whether the session changed.
func (s *Store) UpdateLocal(p Profile) bool {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return false
	}
	next := *s.session
	if p.DisplayName != nil {
		next.DisplayName = *p.DisplayName
	}
	if p.Email != nil {
		next.Email = *p.Email
	}
	changed := next != *s.session
	s.session = &next
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

// Watch returns a channel that receives a signal after each change. Signals
// coalesce, so receivers must Read the store rather than count signals. The
// cancel func is safe to call more than once.
func (s *Store) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// WaitResolved blocks until the first notification was applied or ctx ends.
// The current state is returned either way.
func (s *Store) WaitResolved(ctx context.Context) (State, error) {
	select {
	case <-s.resolved:
		return s.Read(), nil
	case <-ctx.Done():
		return s.Read(), fmt.Errorf("waiting for session resolution: %w", ctx.Err())
	}
}

// WaitFor blocks until cond holds for the current state or ctx ends.
func (s *Store) WaitFor(ctx context.Context, cond func(State) bool) (State, error) {
	changes, cancel := s.Watch()
	defer cancel()

	for {
		st := s.Read()
		if cond(st) {
			return st, nil
		}
		select {
		case <-changes:
		case <-ctx.Done():
			return s.Read(), fmt.Errorf("waiting for session state: %w", ctx.Err())
		}
	}
}
