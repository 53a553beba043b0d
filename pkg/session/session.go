// Package session provides an in-memory session store for vesper servers.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/FumingPower3925/vesper/pkg/vesper"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for operations on unknown session ids.
var ErrSessionNotFound = errors.New("session store: session not found")

// Session is a stored session. Its token is empty until the session is
// authenticated.
type Session struct {
	id    string
	token string
}

// ID returns the session id carried by the sessionId cookie.
func (s *Session) ID() string { return s.id }

// Token returns the bearer token, or "" for anonymous sessions.
func (s *Session) Token() string { return s.token }

// MemoryStore keeps sessions in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tokens   map[string]*Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		tokens:   make(map[string]*Session),
	}
}

// New mints and stores an anonymous session.
func (m *MemoryStore) New() vesper.Session {
	s := &Session{id: uuid.NewString()}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	return s
}

// Lookup finds the session named by a "Bearer <token>" authorization or by a
// sessionId cookie among the given cookie values.
func (m *MemoryStore) Lookup(authorization, cookies string) (vesper.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		if s, found := m.tokens[token]; found {
			return s, true
		}
	}
	if id, ok := cookieValue(cookies, "sessionId"); ok {
		if s, found := m.sessions[id]; found {
			return s, true
		}
	}
	return nil, false
}

// Authenticate issues a fresh bearer token for session id.
func (m *MemoryStore) Authenticate(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, found := m.sessions[id]
	if !found {
		return "", ErrSessionNotFound
	}
	if s.token != "" {
		delete(m.tokens, s.token)
	}
	// Sessions are shared with in-flight requests, so swap in a copy.
	next := &Session{id: s.id, token: uuid.NewString()}
	m.sessions[id] = next
	m.tokens[next.token] = next
	return next.token, nil
}

// Delete removes session id and revokes its token.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, found := m.sessions[id]
	if !found {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	if s.token != "" {
		delete(m.tokens, s.token)
	}
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cookieValue finds name in cookie header values joined with ',' or ';'.
func cookieValue(cookies, name string) (string, bool) {
	for _, field := range strings.FieldsFunc(cookies, func(r rune) bool { return r == ';' || r == ',' }) {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if ok && k == name {
			return v, true
		}
	}
	return "", false
}
