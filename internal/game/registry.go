package game

import "sync"

// Registry is the exclusive-owner mapping from session id to session record.
// Iteration happens over a stable snapshot taken under the lock, never over
// the live map, so callers may evict while fanning out.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Insert stores the session under its id, replacing any previous entry.
func (r *Registry) Insert(session *Session) {
	if r == nil || session == nil {
		return
	}
	r.mu.Lock()
	if _, exists := r.sessions[session.id]; !exists {
		r.order = append(r.order, session.id)
	}
	r.sessions[session.id] = session
	r.mu.Unlock()
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// RemoveExact deletes the entry for the session's id only when that entry is
// this session, reporting whether a removal happened. An id whose slot has
// been taken over by a successor session is left untouched.
func (r *Registry) RemoveExact(session *Session) bool {
	if r == nil || session == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[session.id]
	if !ok || current != session {
		return false
	}
	delete(r.sessions, session.id)
	for i, existing := range r.order {
		if existing == session.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot returns the live sessions in insertion order. The slice is a copy;
// callers must not depend on the ordering contract beyond id-keyed lookup.
func (r *Registry) Snapshot() []*Session {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		if session, ok := r.sessions[id]; ok {
			out = append(out, session)
		}
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
