package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docchat/internal/model"
	"docchat/pkg/logger"
)

// DiskStorage keeps every record in memory and writes through to dataDir:
//
//	sessions.json          index of session metadata
//	messages/<id>.json     chat history per session
//	documents/<id>.txt     extracted document text
type DiskStorage struct {
	dataDir string
	mu      sync.RWMutex
	cache   map[string]*Record
}

type sessionIndex struct {
	ID           string         `json:"id"`
	DocumentName string         `json:"document_name"`
	FileType     model.FileType `json:"file_type"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{
		dataDir: dataDir,
		cache:   make(map[string]*Record),
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadSessions(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk storage initialized with %d sessions in %s", len(d.cache), d.dataDir)
	return nil
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.saveIndexLocked()
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "messages"),
		filepath.Join(d.dataDir, "documents"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "sessions.json")
}

func (d *DiskStorage) messagesPath(sessionID string) string {
	return filepath.Join(d.dataDir, "messages", sessionID+".json")
}

func (d *DiskStorage) documentPath(sessionID string) string {
	return filepath.Join(d.dataDir, "documents", sessionID+".txt")
}

func (d *DiskStorage) loadSessions() error {
	data, err := os.ReadFile(d.indexPath())
	if os.IsNotExist(err) {
		return writeFileAtomic(d.indexPath(), []byte("[]"))
	}
	if err != nil {
		return err
	}

	var indexes []sessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return err
	}

	for _, idx := range indexes {
		rec := &Record{
			Session: model.Session{
				ID:           idx.ID,
				DocumentName: idx.DocumentName,
				FileType:     idx.FileType,
				CreatedAt:    idx.CreatedAt,
			},
			LastAccessed: idx.LastAccessed,
		}

		messages, err := d.loadMessages(idx.ID)
		if err != nil {
			logger.Errorf("Failed to load messages for session %s: %v", idx.ID, err)
			messages = nil
		}
		rec.Messages = messages

		if content, err := os.ReadFile(d.documentPath(idx.ID)); err == nil {
			rec.Content = string(content)
		} else if !os.IsNotExist(err) {
			logger.Errorf("Failed to load document text for session %s: %v", idx.ID, err)
		}

		d.cache[idx.ID] = rec
	}

	return nil
}

func (d *DiskStorage) loadMessages(sessionID string) ([]model.ChatMessage, error) {
	data, err := os.ReadFile(d.messagesPath(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *DiskStorage) saveIndexLocked() error {
	recs := make([]*Record, 0, len(d.cache))
	for _, rec := range d.cache {
		recs = append(recs, rec)
	}
	sortByLastAccessed(recs)

	indexes := make([]sessionIndex, 0, len(recs))
	for _, rec := range recs {
		indexes = append(indexes, sessionIndex{
			ID:           rec.Session.ID,
			DocumentName: rec.Session.DocumentName,
			FileType:     rec.Session.FileType,
			CreatedAt:    rec.Session.CreatedAt,
			LastAccessed: rec.LastAccessed,
		})
	}

	data, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(d.indexPath(), data)
}

func (d *DiskStorage) saveMessagesLocked(sessionID string, messages []model.ChatMessage) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(d.messagesPath(sessionID), data)
}

func (d *DiskStorage) CreateSession(rec *Record) error {
	if rec == nil || rec.Session.ID == "" {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.cache[rec.Session.ID]; exists {
		return ErrSessionExists
	}

	if rec.Content != "" {
		if err := writeFileAtomic(d.documentPath(rec.Session.ID), []byte(rec.Content)); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}
	if err := d.saveMessagesLocked(rec.Session.ID, rec.Messages); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[rec.Session.ID] = rec.clone()
	if err := d.saveIndexLocked(); err != nil {
		delete(d.cache, rec.Session.ID)
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) GetSession(sessionID string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, exists := d.cache[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return rec.clone(), nil
}

func (d *DiskStorage) DeleteSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.cache[sessionID]; !exists {
		return ErrSessionNotFound
	}
	delete(d.cache, sessionID)

	for _, path := range []string{d.messagesPath(sessionID), d.documentPath(sessionID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Could not delete %s: %v", path, err)
		}
	}

	if err := d.saveIndexLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) ListSessions() ([]*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Record, 0, len(d.cache))
	for _, rec := range d.cache {
		out = append(out, rec.clone())
	}
	sortByLastAccessed(out)
	return out, nil
}

func (d *DiskStorage) Touch(sessionID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, exists := d.cache[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	rec.LastAccessed = at

	if err := d.saveIndexLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) AddMessage(sessionID string, message model.ChatMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, exists := d.cache[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	messages := append(append([]model.ChatMessage(nil), rec.Messages...), message)
	if err := d.saveMessagesLocked(sessionID, messages); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	rec.Messages = messages
	return nil
}

func (d *DiskStorage) GetMessages(sessionID string) ([]model.ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, exists := d.cache[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return append([]model.ChatMessage(nil), rec.Messages...), nil
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
