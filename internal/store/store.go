package store

import (
	"log/slog"
	"sync"

	"github.com/roach88/graphcache/internal/ir"
)

// Listener is notified after every dispatch. It takes no arguments; it reads
// the new state through GetState.
type Listener func()

// Meta is the non-cache part of the state.
type Meta struct {
	LastError error
	Version   uint64
}

// State is an immutable snapshot of the store.
type State struct {
	Cache     ir.EntityTable
	LastError error
	Version   uint64
}

// Meta returns the non-cache part of the state.
func (s State) Meta() Meta {
	return Meta{LastError: s.LastError, Version: s.Version}
}

// Store holds the authoritative entity table.
//
// GetState, Subscribe and Dispatch are safe from any goroutine. Dispatches
// are reduced one at a time under the store lock, and their notification
// rounds run in dispatch order on whichever goroutine is notifying.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []*subscription
	nextID    uint64
	pending   []round
	notifying bool
	logger    *slog.Logger
}

// round is the notification owed for one applied dispatch.
type round struct {
	listeners []Listener
	version   uint64
	isError   bool
}

type subscription struct {
	id       uint64
	listener Listener
}

// Option configures a Store.
type Option func(*Store)

// WithInitialState seeds the entity table. The table is adopted as-is and
// must not be mutated by the caller afterwards.
func WithInitialState(table ir.EntityTable) Option {
	return func(s *Store) {
		if table != nil {
			s.state.Cache = table
		}
	}
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store with an empty entity table.
func New(opts ...Option) *Store {
	s := &Store{
		state:  State{Cache: ir.EntityTable{}},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetState returns the current snapshot. Callers must not mutate it.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of cached entities.
func (s *Store) Len() int {
	return s.GetState().Cache.Len()
}

// Dispatch applies an action and notifies every listener registered at the
// time of the call, in registration order.
//
// The action is merged before Dispatch returns. When no other dispatch is
// notifying, its listeners have also run by then. Otherwise the round is
// queued behind the pending ones and run by the dispatch that is already
// notifying. A dispatch from a listener or from a concurrent goroutine is
// applied, never dropped.
func (s *Store) Dispatch(action ir.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = reduce(s.state, action)
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.listener
	}
	s.pending = append(s.pending, round{
		listeners: listeners,
		version:   s.state.Version,
		isError:   action.IsError,
	})
	if s.notifying {
		s.mu.Unlock()
		return nil
	}
	s.notifying = true
	s.mu.Unlock()

	s.notify()
	return nil
}

// notify runs queued rounds until none is left.
func (s *Store) notify() {
	finished := false
	defer func() {
		// A panicking listener must not leave the store stuck notifying.
		if !finished {
			s.mu.Lock()
			s.notifying = false
			s.pending = nil
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.notifying = false
			s.mu.Unlock()
			finished = true
			return
		}
		r := s.pending[0]
		s.pending[0] = round{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.logger.Debug("dispatch applied",
			"version", r.version,
			"is_error", r.isError,
			"listeners", len(r.listeners))

		for _, l := range r.listeners {
			l()
		}
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribe is idempotent and removes exactly this registration, even when
// the same function was subscribed more than once.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, &subscription{id: id, listener: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					// Copy so a dispatch that already snapshotted the slice is unaffected.
					next := make([]*subscription, 0, len(s.listeners)-1)
					next = append(next, s.listeners[:i]...)
					next = append(next, s.listeners[i+1:]...)
					s.listeners = next
					return
				}
			}
		})
	}
}

// ListenerCount returns the number of registered listeners.
func (s *Store) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
