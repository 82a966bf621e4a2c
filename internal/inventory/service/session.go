package service

import (
	"sync"

	"github.com/google/uuid"
)

// ============================================================
// Session Manager
// ============================================================

// SessionManager hands out anonymous buyer sessions. The bearer token stays
// in memory; only the holder id is written next to a lock.
type SessionManager struct {
	mu     sync.Mutex
	tokens map[string]string // token -> holder id
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		tokens: make(map[string]string),
	}
}

// Issue creates a session and returns its token and holder id.
func (m *SessionManager) Issue() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	holder := uuid.NewString()
	m.tokens[token] = holder
	return token, holder
}

func (m *SessionManager) Resolve(token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	holder, ok := m.tokens[token]
	return holder, ok
}
