package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"docchat/internal/api"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/store"
	"docchat/internal/transcript"
	"docchat/internal/upload"
	"docchat/pkg/logger"
)

const source = "chat"

// ErrSendInFlight is returned while a previous message is still waiting
// for its reply.
var ErrSendInFlight = errors.New("a message is already being sent")

type Options struct {
	// MaxUploadBytes rejects larger files before they are sent. Zero
	// disables the check.
	MaxUploadBytes int64
}

// Snapshot is a consistent-enough copy of everything a front end draws.
type Snapshot struct {
	Sessions  []model.Session
	ActiveID  string
	Entries   []transcript.Entry
	Sending   bool
	Uploading bool
}

// ChatService ties the session store, the transcript and uploads together
// behind the operations a front end needs.
type ChatService struct {
	api        api.Client
	bus        *notify.Bus
	sessions   *store.Store
	transcript *transcript.Transcript
	uploads    *upload.Coordinator

	sending     atomic.Bool
	unsubscribe func()
}

func NewChatService(client api.Client, opts Options) *ChatService {
	bus := notify.NewBus()
	sessions := store.New(client, bus)

	s := &ChatService{
		api:        client,
		bus:        bus,
		sessions:   sessions,
		transcript: transcript.New(client, bus),
		uploads:    upload.New(client, sessions, bus, opts.MaxUploadBytes),
	}
	s.unsubscribe = bus.Subscribe(s.follow)
	return s
}

// follow keeps the transcript on the active session.
func (s *ChatService) follow(e notify.Event) {
	switch {
	case e.Kind == notify.Selected && e.SessionID == "":
		s.transcript.Reset("")
	case e.Kind == notify.Selected && e.Detail != nil:
		s.transcript.Replace(e.SessionID, e.Detail.ChatHistory)
	case e.Kind == notify.Render && e.Source == "sessions":
		if active := s.sessions.Active(); active != "" && active != s.transcript.SessionID() {
			s.transcript.Reset(active)
		}
	}
}

// Subscribe registers l for every render, selection and failure event.
func (s *ChatService) Subscribe(l notify.Listener) func() {
	return s.bus.Subscribe(l)
}

func (s *ChatService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *ChatService) Refresh(ctx context.Context) ([]model.Session, error) {
	return s.sessions.Refresh(ctx)
}

func (s *ChatService) Select(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	return s.sessions.Select(ctx, sessionID)
}

func (s *ChatService) Delete(ctx context.Context, sessionID string) error {
	return s.sessions.DeleteSession(ctx, sessionID)
}

// Send posts message to sessionID, or to the active session when sessionID
// is empty. Only the active session's exchange goes through the transcript.
// Only one message may wait for a reply at a time.
func (s *ChatService) Send(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", transcript.ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = s.sessions.Active()
	}

	if !s.sending.CompareAndSwap(false, true) {
		s.bus.Fail(source, "Please wait for the current reply", ErrSendInFlight)
		return "", ErrSendInFlight
	}
	s.bus.Changed(source)
	defer func() {
		s.sending.Store(false)
		s.bus.Changed(source)
	}()

	var (
		reply string
		err   error
	)
	if sessionID == s.sessions.Active() {
		reply, err = s.transcript.Send(ctx, sessionID, message)
	} else {
		reply, err = s.sendAside(ctx, sessionID, message)
	}
	if err != nil {
		logger.Debugf("send to %q: %v", sessionID, err)
	}
	return reply, err
}

// sendAside posts to a session that is not the active one. The transcript
// stays on the active session; the exchange shows up once the other session
// is opened.
func (s *ChatService) sendAside(ctx context.Context, sessionID, message string) (string, error) {
	reply, err := s.api.Chat(ctx, sessionID, strings.TrimSpace(message))
	if err != nil {
		s.bus.Fail(source, api.UserMessage(err, "Failed to send message"), err)
		return "", err
	}
	return reply.Response, nil
}

func (s *ChatService) Upload(ctx context.Context, path string) (*model.UploadResult, error) {
	return s.uploads.Upload(ctx, path)
}

func (s *ChatService) Health(ctx context.Context) (*model.HealthStatus, error) {
	return s.api.Health(ctx)
}

func (s *ChatService) Snapshot() Snapshot {
	return Snapshot{
		Sessions:  s.sessions.Sessions(),
		ActiveID:  s.sessions.Active(),
		Entries:   s.transcript.Entries(),
		Sending:   s.sending.Load(),
		Uploading: s.uploads.InProgress(),
	}
}

// Lookup finds a session in the last fetched list.
func (s *ChatService) Lookup(sessionID string) (model.Session, bool) {
	return s.sessions.Lookup(sessionID)
}
