// Package session defines the Store contract: a mapping from session id to
// conversation history and configuration, with per-session exclusion so at
// most one driver run advances a given session at a time.
package session

import (
	"context"
	"errors"
	"time"

	"cueso/internal/model"
)

// ErrNotFound is returned by Get when no session exists for the given id.
var ErrNotFound = errors.New("session: not found")

// Session is a persisted conversation plus its configuration.
type Session struct {
	ID             string
	Config         model.SessionConfig
	Messages       []model.Message
	IterationCount int
	LastActivity   time.Time
}

// Store maps session id to Session and guarantees at-most-one concurrent
// driver per session via WithLock. Implementations must be safe for
// concurrent use by many bridge instances.
type Store interface {
	// GetOrCreate returns the session for id, or creates a fresh one: with a
	// newly generated id when id is empty, or under id itself when unknown.
	GetOrCreate(ctx context.Context, id string, cfg model.SessionConfig) (Session, error)

	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// Reset clears Messages and IterationCount while preserving ID and Config.
	Reset(ctx context.Context, id string) error

	// Delete removes the session.
	Delete(ctx context.Context, id string) error

	// List returns all known sessions.
	List(ctx context.Context) ([]Session, error)

	// WithLock runs fn with exclusive access to the named session. The
	// session passed to fn reflects the latest stored state; fn's returned
	// session (if any) replaces it atomically before the lock releases.
	//
	// Not re-entrant: fn must not call WithLock again for the same id.
	WithLock(ctx context.Context, id string, fn func(Session) (Session, error)) error
}
