package sessions

import (
	"sync"

	"github.com/esilv-labs/assistant-go/internal/assistant/forms"
)

// Registry tracks in-flight form sessions by conversation id. Safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*forms.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*forms.Session)}
}

// Get returns the active session for a conversation, or nil.
func (r *Registry) Get(conversationID string) *forms.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[conversationID]
}

// Put registers a session for a conversation, replacing any prior one.
func (r *Registry) Put(conversationID string, session *forms.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conversationID] = session
}

// Remove closes the conversation's session.
func (r *Registry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationID)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
