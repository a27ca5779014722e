package storage

import (
	"testing"
	"time"

	"docchat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id, name string, accessed time.Time) *Record {
	return &Record{
		Session: model.Session{
			ID:           id,
			DocumentName: name,
			FileType:     model.FileTypeFromName(name),
			CreatedAt:    accessed,
		},
		Content:      "text of " + name,
		LastAccessed: accessed,
	}
}

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateSession(newRecord("a", "a.txt", base)))
	require.NoError(t, s.CreateSession(newRecord("b", "b.pdf", base.Add(time.Minute))))
	assert.ErrorIs(t, s.CreateSession(newRecord("a", "dup.txt", base)), ErrSessionExists)
	assert.ErrorIs(t, s.CreateSession(&Record{}), ErrInvalidData)

	list, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Session.ID)

	require.NoError(t, s.Touch("a", base.Add(time.Hour)))
	list, err = s.ListSessions()
	require.NoError(t, err)
	assert.Equal(t, "a", list[0].Session.ID)

	require.NoError(t, s.AddMessage("a", model.ChatMessage{Role: model.RoleUser, Content: "q"}))
	require.NoError(t, s.AddMessage("a", model.ChatMessage{Role: model.RoleAssistant, Content: "r"}))
	msgs, err := s.GetMessages("a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)

	rec, err := s.GetSession("a")
	require.NoError(t, err)
	assert.Equal(t, "text of a.txt", rec.Content)
	rec.Messages[0].Content = "mutated"
	again, err := s.GetSession("a")
	require.NoError(t, err)
	assert.Equal(t, "q", again.Messages[0].Content, "records are returned as copies")

	require.NoError(t, s.DeleteSession("b"))
	assert.ErrorIs(t, s.DeleteSession("b"), ErrSessionNotFound)
	_, err = s.GetSession("b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.AddMessage("b", model.ChatMessage{}), ErrSessionNotFound)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Init())
	exerciseStorage(t, s)
}

func TestDiskStoragePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s := NewDiskStorage(dir)
	require.NoError(t, s.Init())
	exerciseStorage(t, s)
	require.NoError(t, s.Close())

	reopened := NewDiskStorage(dir)
	require.NoError(t, reopened.Init())

	list, err := reopened.ListSessions()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Session.ID)
	assert.Equal(t, model.FileTypeTXT, list[0].Session.FileType)
	assert.Equal(t, "text of a.txt", list[0].Content)
	require.Len(t, list[0].Messages, 2)
	assert.Equal(t, "q", list[0].Messages[0].Content)
}
