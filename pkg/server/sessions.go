package server

import (
	"context"
	"sync"

	"github.com/kadirpekel/a2achat/pkg/auth"
	"github.com/kadirpekel/a2achat/pkg/remoteagent"
)

// sessionKey scopes a session id to the authenticated subject, so two
// users choosing the same id never share history.
func sessionKey(ctx context.Context, id string) string {
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		return claims.Subject + "/" + id
	}
	return id
}

// sessionRegistry holds chat sessions by id for the server lifetime.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*remoteagent.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*remoteagent.Session)}
}

func (r *sessionRegistry) get(id string) (*remoteagent.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

func (r *sessionRegistry) getOrCreate(key string, create func() *remoteagent.Session) *remoteagent.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[key]; ok {
		return sess
	}
	sess := create()
	r.sessions[key] = sess
	return sess
}

func (r *sessionRegistry) remove(key string) (*remoteagent.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[key]
	delete(r.sessions, key)
	return sess, ok
}

func (r *sessionRegistry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.sessions {
		_ = sess.Cancel()
	}
}
