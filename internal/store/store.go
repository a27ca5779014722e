// Package store keeps the client's view of the session list and which
// session is active, in step with the document service.
package store

import (
	"context"
	"errors"
	"sync"

	"docchat/internal/api"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const source = "sessions"

var (
	// ErrUnknownSession is returned by Select for an id that is not in the
	// current list.
	ErrUnknownSession = errors.New("unknown session")
	// ErrSuperseded means a newer call of the same kind started while this
	// one was waiting on the service; its result was discarded.
	ErrSuperseded = errors.New("superseded by a newer request")
)

type Store struct {
	api   api.Client
	bus   *notify.Bus
	group singleflight.Group

	mu            sync.RWMutex
	sessions      []model.Session
	active        string
	listVersion   uint64
	selectVersion uint64
}

func New(client api.Client, bus *notify.Bus) *Store {
	return &Store{
		api: client,
		bus: bus,
	}
}

// Sessions returns a copy of the list in server order.
func (s *Store) Sessions() []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Session(nil), s.sessions...)
}

// Active returns the active session id, or "" when none is selected.
func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) ActiveSession() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return model.Session{}, false
	}
	return s.lookup(s.active)
}

func (s *Store) Lookup(id string) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

func (s *Store) lookup(id string) (model.Session, bool) {
	if i := indexOf(s.sessions, id); i >= 0 {
		return s.sessions[i], true
	}
	return model.Session{}, false
}

// Clear drops the active selection. Any select still waiting on the
// service is discarded when it returns.
func (s *Store) Clear() {
	s.mu.Lock()
	had := s.active != ""
	s.active = ""
	s.selectVersion++
	s.mu.Unlock()

	if had {
		s.publishCleared()
	}
}

const refreshKey = "refresh"

// Refresh replaces the list with the service's current one. Concurrent
// calls share a single request. The active id is dropped when the session
// no longer exists.
//
// The shared request does not stop when one caller gives up; each caller
// stops waiting on its own ctx and the client timeout bounds the request.
func (s *Store) Refresh(ctx context.Context) ([]model.Session, error) {
	ch := s.group.DoChan(refreshKey, func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return append([]model.Session(nil), r.Val.([]model.Session)...), nil
	}
}

// Reload is Refresh for callers that have just changed the list on the
// service. It never joins a request that went out before the change; such a
// request comes back with ErrSuperseded.
func (s *Store) Reload(ctx context.Context) ([]model.Session, error) {
	s.group.Forget(refreshKey)
	return s.Refresh(ctx)
}

func (s *Store) refresh(ctx context.Context) ([]model.Session, error) {
	s.mu.Lock()
	s.listVersion++
	version := s.listVersion
	s.mu.Unlock()

	list, err := s.api.ListSessions(ctx)
	if err != nil {
		logger.Warnf("refresh sessions: %v", err)
		s.bus.Fail(source, api.UserMessage(err, "Failed to load sessions"), err)
		return nil, err
	}

	s.mu.Lock()
	if version != s.listVersion {
		s.mu.Unlock()
		logger.Debugf("discarding stale session list (version %d)", version)
		return nil, ErrSuperseded
	}
	s.sessions = list
	cleared := false
	if s.active != "" && indexOf(list, s.active) < 0 {
		s.active = ""
		s.selectVersion++
		cleared = true
	}
	out := append([]model.Session(nil), list...)
	s.mu.Unlock()

	s.bus.Changed(source)
	if cleared {
		s.publishCleared()
	}
	return out, nil
}

// Select makes id the active session right away and then loads its detail.
// A failed load keeps the selection.
func (s *Store) Select(ctx context.Context, id string) (*model.SessionDetail, error) {
	s.mu.Lock()
	if indexOf(s.sessions, id) < 0 {
		s.mu.Unlock()
		s.bus.Fail(source, "Session not found", ErrUnknownSession)
		return nil, ErrUnknownSession
	}
	s.active = id
	s.selectVersion++
	version := s.selectVersion
	s.mu.Unlock()

	s.bus.Changed(source)

	detail, err := s.api.GetSession(ctx, id)

	s.mu.RLock()
	stale := version != s.selectVersion
	s.mu.RUnlock()
	if stale {
		logger.Debugf("discarding stale detail for session %s", id)
		return nil, ErrSuperseded
	}

	if err != nil {
		logger.Warnf("load session %s: %v", id, err)
		s.bus.Fail(source, api.UserMessage(err, "Failed to load session"), err)
		return nil, err
	}

	s.bus.Publish(notify.Event{
		Kind:      notify.Selected,
		Source:    source,
		SessionID: id,
		Detail:    detail,
	})
	return detail, nil
}

// DeleteSession removes id on the service and then locally. Deleting the
// active session moves the selection to the first remaining one, or clears
// it when the list is empty. A failing fallback select does not fail the
// delete.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.api.DeleteSession(ctx, id); err != nil {
		logger.Warnf("delete session %s: %v", id, err)
		s.bus.Fail(source, api.UserMessage(err, "Failed to delete session"), err)
		return err
	}

	s.mu.Lock()
	s.listVersion++
	if i := indexOf(s.sessions, id); i >= 0 {
		s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
	}
	var next string
	cleared := false
	if s.active == id {
		if len(s.sessions) > 0 {
			next = s.sessions[0].ID
			s.active = next
		} else {
			s.active = ""
			s.selectVersion++
			cleared = true
		}
	}
	s.mu.Unlock()

	logger.Infof("session %s deleted", id)
	s.bus.Changed(source)

	if cleared {
		s.publishCleared()
	}
	if next != "" {
		if _, err := s.Select(ctx, next); err != nil && !errors.Is(err, ErrSuperseded) {
			logger.Warnf("select %s after deleting %s: %v", next, id, err)
		}
	}
	return nil
}

func (s *Store) publishCleared() {
	s.bus.Publish(notify.Event{Kind: notify.Selected, Source: source})
}

func indexOf(list []model.Session, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range list {
		if s.ID == id {
			return i
		}
	}
	return -1
}
