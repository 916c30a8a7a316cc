// Package inmem provides an in-memory session.Store implementation. It is
// the only store this system requires: spec.md's non-goals exclude
// conversation durability beyond process lifetime.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cueso/internal/model"
	"cueso/internal/session"
)

// Store is an in-memory implementation of session.Store, safe for
// concurrent use. Exclusion is per-session: a mutex guards each session's
// record rather than a single store-wide lock, so unrelated sessions never
// contend with each other.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	val session.Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// GetOrCreate implements session.Store.
func (s *Store) GetOrCreate(_ context.Context, id string, cfg model.SessionConfig) (session.Session, error) {
	s.mu.Lock()
	if id != "" {
		if e, ok := s.sessions[id]; ok {
			// Release the store-wide lock before waiting on the session's
			// own lock, which a running driver may hold for a whole turn.
			s.mu.Unlock()
			e.mu.Lock()
			defer e.mu.Unlock()
			return cloneSession(e.val), nil
		}
	}
	defer s.mu.Unlock()

	newID := id
	if newID == "" {
		newID = uuid.NewString()
	}
	val := session.Session{
		ID:           newID,
		Config:       cfg.Normalize(),
		LastActivity: time.Now(),
	}
	s.sessions[newID] = &entry{val: val}
	return cloneSession(val), nil
}

// Get implements session.Store.
func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.val), nil
}

// Reset implements session.Store.
func (s *Store) Reset(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return session.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.val.Messages = nil
	e.val.IterationCount = 0
	e.val.LastActivity = time.Now()
	return nil
}

// Delete implements session.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// List implements session.Store.
func (s *Store) List(_ context.Context) ([]session.Session, error) {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]session.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneSession(e.val))
		e.mu.Unlock()
	}
	return out, nil
}

// WithLock implements session.Store. It holds the per-session mutex for the
// duration of fn, guaranteeing at most one driver run advances this session
// concurrently, without blocking unrelated sessions.
func (s *Store) WithLock(_ context.Context, id string, fn func(session.Session) (session.Session, error)) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return session.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(cloneSession(e.val))
	if err != nil {
		return err
	}
	next.LastActivity = time.Now()
	e.val = next
	return nil
}

func cloneSession(in session.Session) session.Session {
	out := in
	out.Messages = append([]model.Message(nil), in.Messages...)
	return out
}
