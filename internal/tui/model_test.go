package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docchat/internal/api"
	"docchat/internal/api/apitest"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t    *testing.T
	fake *apitest.Fake
	svc  *service.ChatService
	m    tea.Model
}

func newHarness(t *testing.T, sessions ...model.Session) *harness {
	t.Helper()
	fake := apitest.NewFake(sessions...)
	svc := service.NewChatService(fake, service.Options{MaxUploadBytes: 5 << 20})
	tray := notify.NewTray(0)
	svc.Subscribe(tray.Listener())

	h := &harness{t: t, fake: fake, svc: svc, m: New(context.Background(), svc, tray)}
	h.op(h.m.(Model).refresh())
	return h
}

// key feeds a key press and returns the command it produced without
// running it.
func (h *harness) key(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	h.m, cmd = h.m.Update(msg)
	return cmd
}

func (h *harness) typeText(s string) {
	h.key(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// op runs a service command synchronously and feeds its result back.
func (h *harness) op(cmd tea.Cmd) doneMsg {
	h.t.Helper()
	require.NotNil(h.t, cmd)
	msg := cmd()
	done, ok := msg.(doneMsg)
	require.True(h.t, ok, "expected a service call, got %T", msg)
	h.m, _ = h.m.Update(done)
	return done
}

func (h *harness) model() Model {
	return h.m.(Model)
}

func TestStartupListsSessions(t *testing.T) {
	h := newHarness(t, apitest.Session("alpha"), apitest.Session("beta"))

	view := h.m.View()
	assert.Contains(t, view, "alpha.txt")
	assert.Contains(t, view, "beta.txt")
	assert.Contains(t, view, "No document selected")
	assert.Equal(t, 1, h.fake.Calls("list"))
}

func TestEnterOpensSessionUnderCursor(t *testing.T) {
	h := newHarness(t, apitest.Session("alpha"), apitest.Session("beta"))
	h.fake.SetHistory("beta", []model.ChatMessage{
		{Role: model.RoleUser, Content: "what is beta"},
		{Role: model.RoleAssistant, Content: "the second letter"},
	})

	assert.Nil(t, h.key(tea.KeyMsg{Type: tea.KeyDown}))
	h.key(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, h.model().cursor, "cursor stops at the last session")

	h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Equal(t, "beta", h.svc.Snapshot().ActiveID)
	view := h.m.View()
	assert.Contains(t, view, "the second letter")
}

func TestTypingAndSending(t *testing.T) {
	h := newHarness(t, apitest.Session("alpha"))
	h.fake.Reply = "Page four."
	h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))

	h.typeText("where is it")
	done := h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))
	require.NoError(t, done.err)

	assert.Empty(t, h.model().input.Value())
	view := h.m.View()
	assert.Contains(t, view, "where is it")
	assert.Contains(t, view, "Page four.")
	assert.Equal(t, 1, h.fake.Calls("chat"))
}

func TestSendWithoutSelectionShowsError(t *testing.T) {
	h := newHarness(t)

	h.typeText("hello")
	done := h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Error(t, done.err)

	assert.Zero(t, h.fake.Calls("chat"))
	assert.Contains(t, h.m.View(), "Please select a document first")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, apitest.Session("alpha"), apitest.Session("beta"))
	h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Nil(t, h.key(tea.KeyMsg{Type: tea.KeyCtrlD}))
	assert.Contains(t, h.m.View(), `Delete "alpha.txt"`)
	assert.Nil(t, h.key(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}))
	assert.Zero(t, h.fake.Calls("delete"))

	h.key(tea.KeyMsg{Type: tea.KeyCtrlD})
	h.op(h.key(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}))

	snap := h.svc.Snapshot()
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "beta", snap.ActiveID)
	assert.Equal(t, 0, h.model().cursor)
	assert.NotContains(t, h.m.View(), "alpha.txt")
}

func TestUploadPrompt(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h.key(tea.KeyMsg{Type: tea.KeyCtrlU})
	assert.Contains(t, h.m.View(), "Upload file")
	h.typeText(path)
	h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))

	snap := h.svc.Snapshot()
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, snap.Sessions[0].ID, snap.ActiveID)
	view := h.m.View()
	assert.Contains(t, view, `Document "notes.txt" uploaded successfully`)
	assert.Equal(t, modeChat, h.model().mode)
}

func TestUploadRejectionIsShownVerbatim(t *testing.T) {
	h := newHarness(t)
	h.fake.UploadErr = &api.ServiceError{Op: "upload", Status: 400, Message: "Unsupported file type"}
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	h.key(tea.KeyMsg{Type: tea.KeyCtrlU})
	h.typeText(path)
	h.op(h.key(tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Contains(t, h.m.View(), "Unsupported file type")
}

func TestEscapeCancelsUpload(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyMsg{Type: tea.KeyCtrlU})
	h.typeText("/tmp/whatever")
	assert.Nil(t, h.key(tea.KeyMsg{Type: tea.KeyEsc}))

	assert.Equal(t, modeChat, h.model().mode)
	assert.Empty(t, h.model().input.Value())
	assert.Zero(t, h.fake.Calls("upload"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
