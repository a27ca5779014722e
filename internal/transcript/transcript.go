// Package transcript holds the chat log of the session being viewed.
package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"docchat/internal/api"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/pkg/logger"

	"github.com/google/uuid"
)

const source = "transcript"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoSession    = errors.New("no session selected")
	ErrSuperseded   = errors.New("superseded by a newer request")
)

type Status int

const (
	Confirmed Status = iota
	Pending
	Failed
)

func (s Status) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one line of the transcript. ID is local to this process.
type Entry struct {
	ID      string
	Status  Status
	Message model.ChatMessage
}

// outgoing tracks a Send that has not returned yet.
type outgoing struct {
	sessionID string
	entryID   string
	content   string
	sentAt    time.Time
	// seen counts the confirmed user turns with the same content that the
	// log held when the send started.
	seen int
	// answered is set when a reloaded history already holds the reply.
	answered bool
}

type Transcript struct {
	api api.Client
	bus *notify.Bus
	now func() time.Time

	mu        sync.Mutex
	sessionID string
	entries   []Entry
	inflight  []*outgoing
	version   uint64
}

func New(client api.Client, bus *notify.Bus) *Transcript {
	return &Transcript{
		api: client,
		bus: bus,
		now: time.Now,
	}
}

// SessionID is the session whose history is loaded, or "".
func (t *Transcript) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Transcript) Messages() []model.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ChatMessage, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Message
	}
	return out
}

// Reset empties the log and points it at sessionID.
func (t *Transcript) Reset(sessionID string) {
	t.mu.Lock()
	t.sessionID = sessionID
	t.entries = nil
	t.version++
	t.mu.Unlock()

	t.bus.Changed(source)
}

// LoadHistory fetches the history of sessionID and replaces the log with
// it. A response overtaken by a newer load or Replace is dropped.
func (t *Transcript) LoadHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	t.mu.Lock()
	t.version++
	version := t.version
	t.mu.Unlock()

	detail, err := t.api.GetSession(ctx, sessionID)

	t.mu.Lock()
	stale := version != t.version
	t.mu.Unlock()
	if stale {
		return nil, ErrSuperseded
	}
	if err != nil {
		logger.Warnf("load history of %s: %v", sessionID, err)
		t.bus.Fail(source, api.UserMessage(err, "Failed to load chat history"), err)
		return nil, err
	}

	t.Replace(sessionID, detail.ChatHistory)
	return append([]model.ChatMessage(nil), detail.ChatHistory...), nil
}

// Replace swaps the log for history. Messages of this session still being
// sent are kept at the end, unless history already ends with them.
func (t *Transcript) Replace(sessionID string, history []model.ChatMessage) {
	t.mu.Lock()
	t.sessionID = sessionID
	t.version++

	entries := make([]Entry, 0, len(history)+len(t.inflight))
	for _, m := range history {
		entries = append(entries, Entry{ID: uuid.NewString(), Status: Confirmed, Message: m})
	}

	for _, o := range t.inflight {
		if o.sessionID != sessionID {
			continue
		}
		if matched, answered := matchTail(history, o.content, o.seen); matched {
			o.answered = o.answered || answered
			continue
		}
		entries = append(entries, Entry{
			ID:     o.entryID,
			Status: Pending,
			Message: model.ChatMessage{
				Role:      model.RoleUser,
				Content:   o.content,
				Timestamp: o.sentAt,
			},
		})
	}
	t.entries = entries
	t.mu.Unlock()

	t.bus.Changed(source)
}

// matchTail reports whether history ends with the user message content,
// optionally followed by one assistant reply. History must hold more such
// user turns than the seen that were already there, so a repeated question
// is not taken for its earlier copy.
func matchTail(history []model.ChatMessage, content string, seen int) (matched, answered bool) {
	asked := 0
	for _, m := range history {
		if m.Role == model.RoleUser && m.Content == content {
			asked++
		}
	}
	if asked <= seen {
		return false, false
	}

	n := len(history)
	if n >= 1 && history[n-1].Role == model.RoleUser && history[n-1].Content == content {
		return true, false
	}
	if n >= 2 && history[n-1].Role == model.RoleAssistant &&
		history[n-2].Role == model.RoleUser && history[n-2].Content == content {
		return true, true
	}
	return false, false
}

// Append adds a message to the log without talking to the service.
func (t *Transcript) Append(role model.Role, content string) Entry {
	e := Entry{
		ID:     uuid.NewString(),
		Status: Confirmed,
		Message: model.ChatMessage{
			Role:      role,
			Content:   content,
			Timestamp: t.now(),
		},
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()

	t.bus.Changed(source)
	return e
}

// Send posts message to sessionID. The user message is shown right away
// and the assistant reply is appended when it arrives. On failure the user
// message stays, marked Failed; nothing is retried.
func (t *Transcript) Send(ctx context.Context, sessionID, message string) (string, error) {
	content := strings.TrimSpace(message)
	if sessionID == "" {
		t.bus.Fail(source, "Please select a document first", ErrNoSession)
		return "", ErrNoSession
	}
	if content == "" {
		return "", ErrEmptyMessage
	}

	out := &outgoing{
		sessionID: sessionID,
		entryID:   uuid.NewString(),
		content:   content,
		sentAt:    t.now(),
	}

	t.mu.Lock()
	if t.sessionID != sessionID {
		t.sessionID = sessionID
		t.entries = nil
		t.version++
	}
	for _, e := range t.entries {
		if e.Status == Confirmed && e.Message.Role == model.RoleUser && e.Message.Content == content {
			out.seen++
		}
	}
	t.entries = append(t.entries, Entry{
		ID:     out.entryID,
		Status: Pending,
		Message: model.ChatMessage{
			Role:      model.RoleUser,
			Content:   content,
			Timestamp: out.sentAt,
		},
	})
	t.inflight = append(t.inflight, out)
	t.mu.Unlock()

	t.bus.Changed(source)

	reply, err := t.api.Chat(ctx, sessionID, content)

	t.mu.Lock()
	t.removeInflight(out)
	if t.sessionID != sessionID {
		// The user moved on; the service already stored both messages.
		t.mu.Unlock()
		logger.Debugf("dropping reply for %s, transcript now shows %q", sessionID, t.SessionID())
		if err != nil {
			return "", err
		}
		return reply.Response, nil
	}

	if err != nil {
		t.setStatus(out.entryID, Failed)
		t.mu.Unlock()
		logger.Warnf("send to %s: %v", sessionID, err)
		t.bus.Fail(source, api.UserMessage(err, "Failed to send message"), err)
		return "", err
	}

	t.setStatus(out.entryID, Confirmed)
	if !out.answered {
		t.entries = append(t.entries, Entry{
			ID:     uuid.NewString(),
			Status: Confirmed,
			Message: model.ChatMessage{
				Role:      model.RoleAssistant,
				Content:   reply.Response,
				Timestamp: t.now(),
			},
		})
	}
	t.mu.Unlock()

	t.bus.Changed(source)
	return reply.Response, nil
}

// InFlight is the number of sends waiting on the service.
func (t *Transcript) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

func (t *Transcript) setStatus(entryID string, status Status) {
	for i := range t.entries {
		if t.entries[i].ID == entryID {
			t.entries[i].Status = status
			return
		}
	}
}

func (t *Transcript) removeInflight(o *outgoing) {
	for i, cur := range t.inflight {
		if cur == o {
			t.inflight = append(t.inflight[:i:i], t.inflight[i+1:]...)
			return
		}
	}
}
