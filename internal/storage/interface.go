package storage

import (
	"time"

	"docchat/internal/model"
)

// Record is everything the stub service keeps for one uploaded document.
type Record struct {
	Session      model.Session
	Content      string
	Messages     []model.ChatMessage
	LastAccessed time.Time
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Messages = append([]model.ChatMessage(nil), r.Messages...)
	return &cp
}

type Storage interface {
	// sessions
	CreateSession(rec *Record) error
	GetSession(sessionID string) (*Record, error)
	DeleteSession(sessionID string) error
	// ListSessions orders by most recently accessed first.
	ListSessions() ([]*Record, error)
	Touch(sessionID string, at time.Time) error

	// messages
	AddMessage(sessionID string, message model.ChatMessage) error
	GetMessages(sessionID string) ([]model.ChatMessage, error)

	Init() error
	Close() error
}
