package webui

import (
	"sync"
	"time"

	"github.com/mwestman/ddbgrid/editor"
)

// defaultSessionTTL is how long an idle session keeps its snapshot and
// applied-edits record before it is considered ended.
const defaultSessionTTL = 30 * time.Minute

// userSession is one browser session's editor state. The editor and its
// session assume single-threaded use, but nothing stops a browser from
// firing overlapping requests with the same cookie (two tabs, a load
// racing an edit), so mu serializes all editor access per session.
type userSession struct {
	mu       sync.Mutex
	editor   *editor.Editor
	state    *editor.Session
	lastSeen time.Time
}

// sessionRegistry tracks sessions by cookie token. The registry itself
// is shared across requests and needs the lock; the per-session editor
// state is only ever touched by its own session's requests.
type sessionRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*userSession
	now      func() time.Time
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionRegistry{
		ttl:      ttl,
		sessions: make(map[string]*userSession),
		now:      time.Now,
	}
}

// acquire returns the session for the token, creating it with newSession
// when absent or expired. Expired sessions are swept lazily on access;
// there is no background work.
func (r *sessionRegistry) acquire(token string, newSession func() (*userSession, error)) (*userSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.ttl {
			delete(r.sessions, id)
		}
	}

	if s, ok := r.sessions[token]; ok {
		s.lastSeen = now
		return s, nil
	}
	s, err := newSession()
	if err != nil {
		return nil, err
	}
	s.lastSeen = now
	r.sessions[token] = s
	return s, nil
}

func (r *sessionRegistry) drop(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}
