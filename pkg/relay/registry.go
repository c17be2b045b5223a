package relay

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide table of active sessions.
//
// The internal map is guarded by a mutex that is only ever held across
// insert, lookup and delete; never across a network operation. Link
// disconnects happen outside the lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session registered under id, creating it if
// absent. An empty id gets a server-generated one. The boolean reports
// whether a new session was created. At most one session per id exists at
// any instant.
func (r *Registry) GetOrCreate(id string, cfg Config) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}

	if s, ok := r.sessions[id]; ok {
		return s, false
	}

	s := newSession(id, cfg)
	r.sessions[id] = s
	return s, true
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close removes the session registered under id and disconnects its owned
// links. Closing an unknown or already-closed id is a no-op; concurrent
// calls with an in-flight relay are safe, the relay observes cancellation
// through the session's bound context.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// CloseAll tears down every active session. Used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
