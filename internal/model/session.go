package model

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeDOCX  FileType = "docx"
	FileTypeDOC   FileType = "doc"
	FileTypeTXT   FileType = "txt"
	FileTypeOther FileType = "other"
)

// ParseFileType maps a server file_type value onto the known set.
func ParseFileType(s string) FileType {
	switch ft := FileType(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); ft {
	case FileTypePDF, FileTypeDOCX, FileTypeDOC, FileTypeTXT:
		return ft
	default:
		return FileTypeOther
	}
}

// FileTypeFromName derives the file type from a document name's extension.
func FileTypeFromName(name string) FileType {
	ext := filepath.Ext(name)
	if ext == "" {
		return FileTypeOther
	}
	return ParseFileType(ext)
}

// Session is one uploaded document, identified by a server-assigned id.
type Session struct {
	ID           string
	DocumentName string
	FileType     FileType
	CreatedAt    time.Time
}

// The list endpoint spells fields id/filename, the detail endpoint
// session_id/document_name; both decode into the same Session.
type sessionWire struct {
	ID           string `json:"id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	Filename     string `json:"filename,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var w sessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.ID = firstNonEmpty(w.SessionID, w.ID)
	s.DocumentName = firstNonEmpty(w.DocumentName, w.Filename)
	if w.FileType != "" {
		s.FileType = ParseFileType(w.FileType)
	} else {
		s.FileType = FileTypeFromName(s.DocumentName)
	}
	s.CreatedAt = ParseTimestamp(w.CreatedAt)
	return nil
}

func (s Session) MarshalJSON() ([]byte, error) {
	w := sessionWire{
		SessionID:    s.ID,
		DocumentName: s.DocumentName,
		FileType:     string(s.FileType),
	}
	if !s.CreatedAt.IsZero() {
		w.CreatedAt = s.CreatedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

// SessionDetail is a session together with its stored chat history.
type SessionDetail struct {
	Session     Session       `json:"session"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without zone and
// fractional seconds. Values without a zone are read as local time. Anything
// unparseable ("Unknown", "undefined") yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
