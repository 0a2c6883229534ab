package session

import (
	"log/slog"
	"sync"

	"github.com/pilotdesk/agentlink-go/internal/message"
)

// Registry maps session identifiers to live sessions. It is the lifecycle
// authority: sessions are added on creation and removed on destroy or client
// shutdown.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log.With("component", "session_registry"),
		sessions: make(map[string]*Session, 4),
	}
}

// Add registers a session under its identifier.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID()] = s
}

// Get looks up a session by identifier.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]

	return s, ok
}

// Remove drops a session from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Clear empties the registry and drops each session's local state without
// any remote calls. Used by the client's force-stop path.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		s.Clear()
		delete(r.sessions, id)
	}
}

// Dispatch routes an event envelope to its session's subscribers. Events for
// unknown sessions are dropped with a log line; the agent may still be
// flushing events for a session destroyed moments ago.
func (r *Registry) Dispatch(envelope *message.EventEnvelope) {
	s, ok := r.Get(envelope.SessionID)
	if !ok {
		r.log.Debug("Dropping event for unknown session",
			"session_id", envelope.SessionID,
			"event_type", envelope.Event.Type,
		)

		return
	}

	event := envelope.Event
	s.DispatchEvent(&event)
}
