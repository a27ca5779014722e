package storage

import (
	"sort"
	"sync"
	"time"

	"docchat/internal/model"
)

type MemoryStorage struct {
	sessions map[string]*Record
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*Record),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) CreateSession(rec *Record) error {
	if rec == nil || rec.Session.ID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[rec.Session.ID]; exists {
		return ErrSessionExists
	}
	m.sessions[rec.Session.ID] = rec.clone()
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return rec.clone(), nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStorage) ListSessions() ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, rec.clone())
	}
	sortByLastAccessed(out)
	return out, nil
}

func (m *MemoryStorage) Touch(sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	rec.LastAccessed = at
	return nil
}

func (m *MemoryStorage) AddMessage(sessionID string, message model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	rec.Messages = append(rec.Messages, message)
	return nil
}

func (m *MemoryStorage) GetMessages(sessionID string) ([]model.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return append([]model.ChatMessage(nil), rec.Messages...), nil
}

// sortByLastAccessed puts the most recently accessed record first; ties fall
// back to creation time, then id, so listings are stable.
func sortByLastAccessed(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.After(b.LastAccessed)
		}
		if !a.Session.CreatedAt.Equal(b.Session.CreatedAt) {
			return a.Session.CreatedAt.After(b.Session.CreatedAt)
		}
		return a.Session.ID < b.Session.ID
	})
}
