package model

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type ChatMessage struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

type chatMessageWire struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var w chatMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.Content = w.Content
	m.Timestamp = ParseTimestamp(w.Timestamp)
	return nil
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	w := chatMessageWire{Role: m.Role, Content: m.Content}
	if !m.Timestamp.IsZero() {
		w.Timestamp = m.Timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

// ChatReply is the assistant's answer to one chat request.
type ChatReply struct {
	Response    string
	SourcesUsed int
	Confidence  string
}

// UploadResult identifies the session created for an uploaded document.
type UploadResult struct {
	SessionID string
	Message   string
}

type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
