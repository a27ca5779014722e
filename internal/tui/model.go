// Package tui is the terminal front end: a session sidebar, the transcript
// of the active session, an input line and the notification tray.
package tui

import (
	"context"
	"strings"

	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/service"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sidebarWidth = 34
	chromeHeight = 7
)

// Service is what the UI drives. *service.ChatService implements it.
type Service interface {
	Refresh(ctx context.Context) ([]model.Session, error)
	Select(ctx context.Context, sessionID string) (*model.SessionDetail, error)
	Delete(ctx context.Context, sessionID string) error
	Send(ctx context.Context, sessionID, message string) (string, error)
	Upload(ctx context.Context, path string) (*model.UploadResult, error)
	Snapshot() service.Snapshot
	Subscribe(l notify.Listener) func()
}

// stateChangedMsg asks the model to re-read the service snapshot.
type stateChangedMsg struct{}

// doneMsg reports the end of a service call. Failures were already
// published on the bus, so err is only kept for tests.
type doneMsg struct {
	op  string
	err error
}

type mode int

const (
	modeChat mode = iota
	modeUpload
	modeConfirmDelete
)

type Model struct {
	ctx  context.Context
	svc  Service
	tray *notify.Tray

	snap       service.Snapshot
	cursor     int
	lastActive string
	mode       mode
	target     model.Session

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
}

func New(ctx context.Context, svc Service, tray *notify.Tray) Model {
	in := textinput.New()
	in.Placeholder = "Ask about the selected document"
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	m := Model{
		ctx:      ctx,
		svc:      svc,
		tray:     tray,
		input:    in,
		viewport: viewport.New(60, 16),
		spinner:  sp,
	}
	m.resize(100, 30)
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.refresh())
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) refresh() tea.Cmd {
	svc := m.svc
	return m.run("refresh", func(ctx context.Context) error {
		_, err := svc.Refresh(ctx)
		return err
	})
}

func (m Model) selectSession(id string) tea.Cmd {
	svc := m.svc
	return m.run("select", func(ctx context.Context) error {
		_, err := svc.Select(ctx, id)
		return err
	})
}

func (m Model) deleteSession(id string) tea.Cmd {
	svc := m.svc
	return m.run("delete", func(ctx context.Context) error {
		return svc.Delete(ctx, id)
	})
}

func (m Model) send(text string) tea.Cmd {
	svc := m.svc
	return m.run("send", func(ctx context.Context) error {
		_, err := svc.Send(ctx, "", text)
		return err
	})
}

func (m Model) upload(path string) tea.Cmd {
	svc := m.svc
	return m.run("upload", func(ctx context.Context) error {
		_, err := svc.Upload(ctx, path)
		return err
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.sync()
		return m, nil

	case stateChangedMsg, doneMsg:
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		case modeUpload:
			return m.updateUpload(msg)
		default:
			return m.updateChat(msg)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if m.cursor < len(m.snap.Sessions)-1 {
			m.cursor++
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "ctrl+r":
		return m, m.refresh()
	case "ctrl+u":
		m.mode = modeUpload
		m.input.Reset()
		m.input.Placeholder = "Path of a pdf, docx, doc or txt file"
		return m, nil
	case "ctrl+d":
		if s, ok := m.cursorSession(); ok {
			m.mode = modeConfirmDelete
			m.target = s
		}
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			if s, ok := m.cursorSession(); ok {
				return m, m.selectSession(s.ID)
			}
			return m, nil
		}
		// Keep the text until the previous reply is in.
		if m.snap.Sending {
			return m, nil
		}
		m.input.Reset()
		return m, m.send(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveUpload()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.input.Value())
		m.leaveUpload()
		return m, m.upload(path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) leaveUpload() {
	m.mode = modeChat
	m.input.Reset()
	m.input.Placeholder = "Ask about the selected document"
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.target
	m.mode = modeChat
	m.target = model.Session{}
	if msg.String() == "y" || msg.String() == "Y" {
		return m, m.deleteSession(target.ID)
	}
	return m, nil
}

func (m Model) cursorSession() (model.Session, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Sessions) {
		return model.Session{}, false
	}
	return m.snap.Sessions[m.cursor], true
}

// sync pulls a fresh snapshot and keeps the cursor on the active session
// when the selection moved.
func (m *Model) sync() {
	m.snap = m.svc.Snapshot()

	if m.snap.ActiveID != m.lastActive {
		m.lastActive = m.snap.ActiveID
		for i, s := range m.snap.Sessions {
			if s.ID == m.snap.ActiveID {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(m.snap.Sessions) {
		m.cursor = len(m.snap.Sessions) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := width - sidebarWidth - 6
	if chatWidth < 20 {
		chatWidth = 20
	}
	bodyHeight := height - chromeHeight
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	m.viewport.Width = chatWidth
	m.viewport.Height = bodyHeight
	m.input.Width = chatWidth - 4
}

// Run starts the program and redraws on every bus event or tray change.
func Run(ctx context.Context, svc Service, tray *notify.Tray, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(New(ctx, svc, tray), opts...)

	unsubscribe := svc.Subscribe(func(notify.Event) { p.Send(stateChangedMsg{}) })
	defer unsubscribe()
	tray.OnChange(func() { p.Send(stateChangedMsg{}) })
	defer tray.OnChange(nil)

	_, err := p.Run()
	return err
}
