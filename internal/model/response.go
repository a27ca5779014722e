package model

// Envelope is the part every service response shares. A failed request
// carries "error"; some endpoints put the reason in "message" instead.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outcome lets generic decoding code reach the embedded envelope.
func (e Envelope) Outcome() Envelope {
	return e
}

type SessionListResponse struct {
	Envelope
	Sessions []Session `json:"sessions"`
}

type SessionDetailResponse struct {
	Envelope
	Session     Session       `json:"session"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

type ChatResponse struct {
	Envelope
	Response    string `json:"response"`
	SessionID   string `json:"session_id,omitempty"`
	SourcesUsed int    `json:"sources_used,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
}

// UploadResponse reuses Envelope.Message for the success text.
type UploadResponse struct {
	Envelope
	SessionID string `json:"session_id"`
}
