// Package apitest provides an in-memory api.Client for tests.
package apitest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"docchat/internal/api"
	"docchat/internal/model"
)

// Fake keeps sessions and histories in memory. The *Err fields make the
// matching call fail; the hooks run before a call returns and may block.
type Fake struct {
	mu sync.Mutex

	sessions  []model.Session
	histories map[string][]model.ChatMessage
	calls     map[string]int
	nextID    int

	ListErr   error
	GetErr    error
	DeleteErr error
	ChatErr   error
	UploadErr error

	// Reply is the assistant answer returned by Chat; it defaults to an
	// echo of the question.
	Reply string

	ListHook func()
	GetHook  func(sessionID string)
	ChatHook func(sessionID, message string)
}

var _ api.Client = (*Fake)(nil)

func NewFake(sessions ...model.Session) *Fake {
	f := &Fake{
		histories: make(map[string][]model.ChatMessage),
		calls:     make(map[string]int),
	}
	for _, s := range sessions {
		f.sessions = append(f.sessions, s)
		f.histories[s.ID] = nil
	}
	return f
}

// Session builds a session named after id.
func Session(id string) model.Session {
	name := id + ".txt"
	return model.Session{
		ID:           id,
		DocumentName: name,
		FileType:     model.FileTypeFromName(name),
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// NotFound is the service answer for an unknown session.
func NotFound(op string) error {
	return &api.ServiceError{Op: op, Status: http.StatusNotFound, Message: "Session not found or access denied"}
}

func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) SetHistory(sessionID string, history []model.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories[sessionID] = append([]model.ChatMessage(nil), history...)
}

// AddSession makes a session visible to the next ListSessions call.
func (f *Fake) AddSession(s model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s)
}

func (f *Fake) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *Fake) ListSessions(ctx context.Context) ([]model.Session, error) {
	f.count("list")
	if f.ListHook != nil {
		f.ListHook()
	}
	if err := ctx.Err(); err != nil {
		return nil, &api.TransportError{Op: "list sessions", Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]model.Session(nil), f.sessions...), nil
}

func (f *Fake) GetSession(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	f.count("get")
	if f.GetHook != nil {
		f.GetHook(sessionID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	for _, s := range f.sessions {
		if s.ID == sessionID {
			return &model.SessionDetail{
				Session:     s,
				ChatHistory: append([]model.ChatMessage(nil), f.histories[sessionID]...),
			}, nil
		}
	}
	return nil, NotFound("get session")
}

func (f *Fake) DeleteSession(ctx context.Context, sessionID string) error {
	f.count("delete")

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i, s := range f.sessions {
		if s.ID == sessionID {
			f.sessions = append(f.sessions[:i:i], f.sessions[i+1:]...)
			delete(f.histories, sessionID)
			return nil
		}
	}
	return NotFound("delete session")
}

func (f *Fake) Chat(ctx context.Context, sessionID, message string) (*model.ChatReply, error) {
	f.count("chat")
	if f.ChatHook != nil {
		f.ChatHook(sessionID, message)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChatErr != nil {
		return nil, f.ChatErr
	}
	reply := f.Reply
	if reply == "" {
		reply = "You asked: " + message
	}
	now := time.Now()
	f.histories[sessionID] = append(f.histories[sessionID],
		model.ChatMessage{Role: model.RoleUser, Content: message, Timestamp: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: reply, Timestamp: now},
	)
	return &model.ChatReply{Response: reply, SourcesUsed: 1, Confidence: "high"}, nil
}

func (f *Fake) Upload(ctx context.Context, filename string, content io.Reader) (*model.UploadResult, error) {
	f.count("upload")
	if _, err := io.Copy(io.Discard, content); err != nil {
		return nil, &api.TransportError{Op: "upload", Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	f.nextID++
	name := filepath.Base(filename)
	s := model.Session{
		ID:           fmt.Sprintf("up-%d", f.nextID),
		DocumentName: name,
		FileType:     model.FileTypeFromName(name),
		CreatedAt:    time.Now(),
	}
	f.sessions = append([]model.Session{s}, f.sessions...)
	return &model.UploadResult{
		SessionID: s.ID,
		Message:   fmt.Sprintf("Document %q uploaded successfully", name),
	}, nil
}

func (f *Fake) Health(ctx context.Context) (*model.HealthStatus, error) {
	f.count("health")
	return &model.HealthStatus{Status: "healthy", Service: "document-qa-api", Version: "1.0.0"}, nil
}
