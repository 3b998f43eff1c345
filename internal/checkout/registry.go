package checkout

import (
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Registry keeps the live checkout sessions of every shopper served by this
// process. Sessions idle longer than the ttl are dropped unless a submission
// is running.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start opens a new session for userID.
func (r *Registry) Start(userID string) (*Session, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to check out")
	}
	now := r.now()
	session := newSession(userID, now)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)
	r.sessions[session.ID()] = session
	return session, nil
}

// Get returns the session when it exists and belongs to userID.
func (r *Registry) Get(id, userID string) (*Session, error) {
	now := r.now()
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok && session.expired(now, r.ttl) {
		delete(r.sessions, id)
		ok = false
	}
	r.mu.Unlock()

	if !ok || session.UserID() != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	session.touch(now)
	return session, nil
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweepLocked(now time.Time) {
	for id, session := range r.sessions {
		if session.expired(now, r.ttl) {
			delete(r.sessions, id)
		}
	}
}
