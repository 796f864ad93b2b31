package game

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the single source of truth for live sessions. All
// inserts, lookups and deletes go through one mutex so that concurrent
// creates for the same externally supplied id (tournament match ids)
// converge on one instance instead of racing two simulations.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	onFinish FinishFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// SetFinishHandler installs the callback invoked when any session's
// match ends. Set once during startup, before sessions exist.
func (r *Registry) SetFinishHandler(fn FinishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// Create returns the session for id, creating it if absent. An empty
// id mints a fresh one. The second of two concurrent callers observes
// the first's instance.
func (r *Registry) Create(mode Mode, id, tournamentID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := newSession(id, mode, tournamentID, r.onFinish)
	r.sessions[id] = s
	return s
}

// Get looks up a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete tears down and removes a session. Unknown ids are a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		s.teardown()
	}
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap removes sessions that have had no connections and no activity
// for longer than idle. Playing sessions are never reaped — the
// disconnect path already guarantees a playing session has seats.
func (r *Registry) Reap(idle time.Duration) int {
	r.mu.Lock()
	var stale []*Session
	cutoff := time.Now().Add(-idle)
	for id, s := range r.sessions {
		if s.SeatCount() == 0 && s.Status() != StatusPlaying && s.IdleSince().Before(cutoff) {
			delete(r.sessions, id)
			stale = append(stale, s)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.teardown()
		log.Printf("reaped idle session %s (%s)", s.ID, s.Mode)
	}
	return len(stale)
}
