// Package stub is a local stand-in for the document chat service. It speaks
// the same REST contract so the client can be developed and tested without
// the real backend.
package stub

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"docchat/internal/model"
	"docchat/internal/storage"
	"docchat/pkg/logger"

	"github.com/google/uuid"
)

// RequestError is a caller mistake; handlers answer it with 400.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

type Options struct {
	AllowedExtensions []string
	MaxUploadBytes    int64
}

type Backend struct {
	store    storage.Storage
	allowed  map[string]bool
	maxBytes int64
	now      func() time.Time
}

func New(store storage.Storage, opts Options) *Backend {
	allowed := make(map[string]bool, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Backend{
		store:    store,
		allowed:  allowed,
		maxBytes: opts.MaxUploadBytes,
		now:      time.Now,
	}
}

func (b *Backend) MaxUploadBytes() int64 {
	return b.maxBytes
}

// Upload validates the file and stores it as a new session. Only plain text
// documents get searchable content.
func (b *Backend) Upload(filename string, data []byte) (*storage.Record, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, &RequestError{Message: "No file selected"}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !b.allowed[ext] {
		return nil, &RequestError{Message: fmt.Sprintf("Unsupported file type: %s", ext)}
	}
	if b.maxBytes > 0 && int64(len(data)) > b.maxBytes {
		return nil, &RequestError{Message: fmt.Sprintf("File too large. Max size is %dMB", b.maxBytes/(1024*1024))}
	}

	now := b.now()
	rec := &storage.Record{
		Session: model.Session{
			ID:           uuid.NewString(),
			DocumentName: filename,
			FileType:     model.ParseFileType(ext),
			CreatedAt:    now,
		},
		LastAccessed: now,
	}
	if rec.Session.FileType == model.FileTypeTXT && utf8.Valid(data) {
		rec.Content = string(data)
	}

	if err := b.store.CreateSession(rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"session_id": rec.Session.ID,
		"document":   filename,
		"bytes":      len(data),
	}).Info("document uploaded")
	return rec, nil
}

func (b *Backend) Sessions() ([]*storage.Record, error) {
	return b.store.ListSessions()
}

// Detail returns the record and marks it as accessed.
func (b *Backend) Detail(sessionID string) (*storage.Record, error) {
	rec, err := b.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := b.store.Touch(sessionID, b.now()); err != nil {
		logger.Warnf("touch session %s: %v", sessionID, err)
	}
	return rec, nil
}

func (b *Backend) Delete(sessionID string) error {
	if err := b.store.DeleteSession(sessionID); err != nil {
		return err
	}
	logger.Infof("Deleted session: %s", sessionID)
	return nil
}

// Chat answers a question about the session's document and records both
// sides of the exchange.
func (b *Backend) Chat(sessionID, message string) (*Answer, error) {
	if sessionID == "" || strings.TrimSpace(message) == "" {
		return nil, &RequestError{Message: "Session ID and message are required"}
	}

	rec, err := b.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	ans := answerFrom(rec.Content, message)

	now := b.now()
	if err := b.store.AddMessage(sessionID, model.ChatMessage{Role: model.RoleUser, Content: message, Timestamp: now}); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	if err := b.store.AddMessage(sessionID, model.ChatMessage{Role: model.RoleAssistant, Content: ans.Response, Timestamp: now}); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	if err := b.store.Touch(sessionID, now); err != nil {
		logger.Warnf("touch session %s: %v", sessionID, err)
	}
	return &ans, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrSessionNotFound)
}
