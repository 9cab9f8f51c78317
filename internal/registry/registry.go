// Package registry holds the set of currently admitted WebSocket sessions.
//
// The registry is the only state shared between the connection handlers and
// the broadcast loop. Mutation is synchronized; broadcasts work on a
// point-in-time snapshot so a slow client write never blocks admission.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pricewire/pricewire/internal/domain"
)

// Writer is the outbound half of an admitted connection. Write must be safe
// to call from the broadcast loop while the connection's read pump runs.
type Writer interface {
	// Write queues a payload for delivery. A non-nil error means the
	// session is dead or too slow and must be pruned.
	Write(payload []byte) error
	// Close sends a close frame with the given code and reason, then
	// tears the connection down. Safe to call more than once.
	Close(code int, reason string)
}

// Session is one admitted client. It is owned by the Registry for its
// lifetime; the broadcaster only touches it through a snapshot.
type Session struct {
	id         uuid.UUID
	admittedAt time.Time
	writer     Writer
}

// NewSession wraps a connection writer with a fresh session identity.
func NewSession(w Writer, admittedAt time.Time) *Session {
	return &Session{
		id:         uuid.New(),
		admittedAt: admittedAt,
		writer:     w,
	}
}

func (s *Session) ID() uuid.UUID         { return s.id }
func (s *Session) AdmittedAt() time.Time { return s.admittedAt }

// Write forwards a payload to the session's writer.
func (s *Session) Write(payload []byte) error { return s.writer.Write(payload) }

// Close closes the underlying connection.
func (s *Session) Close(code int, reason string) { s.writer.Close(code, reason) }

// Registry is a synchronized session set.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func New() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Add registers a newly admitted session. Returns ErrDuplicateSession if a
// session with the same identity is already registered.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.id]; exists {
		return domain.ErrDuplicateSession
	}
	r.sessions[s.id] = s
	return nil
}

// Remove unregisters a session. No-op if it is already absent.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Snapshot returns a point-in-time copy of the current members. The
// broadcaster iterates the copy, so concurrent add/remove never mutates a
// broadcast in progress.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		members = append(members, s)
	}
	return members
}

// Len returns the current number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll removes every session and closes its connection. Used on
// shutdown, after the listener has stopped delivering.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(code, reason)
	}
}
