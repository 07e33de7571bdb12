package identity

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	sessionKey     = "cb.sessionId"
	displayNameKey = "cb.displayName"
)

// Store persists small string values within one lifetime scope.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Manager resolves a client's ephemeral session identifier and its chosen
// display name from two storage scopes: the session scope survives
// navigation but not tab closure, the local scope survives indefinitely.
// A nil scope models a non-interactive render context; lookups against it
// report absence rather than failing.
type Manager struct {
	session Store
	local   Store
	newID   func() string
}

func NewManager(session, local Store) *Manager {
	return &Manager{
		session: session,
		local:   local,
		newID:   uuid.NewString,
	}
}

// SessionID returns the tab's session identifier, generating and
// persisting a fresh one on first use.
func (m *Manager) SessionID() (string, bool) {
	if m.session == nil {
		return "", false
	}
	if id, ok := m.session.Get(sessionKey); ok && id != "" {
		return id, true
	}
	id := m.newID()
	m.session.Set(sessionKey, id)
	return id, true
}

// DisplayName returns the persisted display name, trimmed. Empty or
// missing values report absence.
func (m *Manager) DisplayName() (string, bool) {
	if m.local == nil {
		return "", false
	}
	value, ok := m.local.Get(displayNameKey)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// SetDisplayName persists the trimmed display name. A nil local scope
// makes this a no-op.
func (m *Manager) SetDisplayName(value string) {
	if m.local == nil {
		return
	}
	m.local.Set(displayNameKey, strings.TrimSpace(value))
}

// MemoryStore is an in-process Store, used for headless clients and tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
