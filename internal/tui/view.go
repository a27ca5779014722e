package tui

import (
	"fmt"
	"strings"

	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/transcript"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

func (m Model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarPane.Width(sidebarWidth).Height(m.viewport.Height).Render(m.renderSidebar()),
		chatPane.Width(m.viewport.Width).Render(m.viewport.View()),
	)

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(m.renderPrompt())
	if toasts := m.renderToasts(); toasts != "" {
		sb.WriteString("\n")
		sb.WriteString(toasts)
	}
	return sb.String()
}

func (m Model) renderHeader() string {
	title := "No document selected"
	for _, s := range m.snap.Sessions {
		if s.ID == m.snap.ActiveID {
			title = s.DocumentName
			break
		}
	}

	status := ""
	switch {
	case m.snap.Uploading:
		status = " " + m.spinner.View() + " uploading"
	case m.snap.Sending:
		status = " " + m.spinner.View() + " waiting for reply"
	}
	return headerStyle.Render("docchat") + "  " + subHeaderStyle.Render(title) + dimStyle.Render(status)
}

func (m Model) renderSidebar() string {
	var sb strings.Builder
	sb.WriteString(subHeaderStyle.Render("Documents"))
	sb.WriteString("\n")

	if len(m.snap.Sessions) == 0 {
		sb.WriteString(dimStyle.Render("No documents yet.\nPress ctrl+u to upload one."))
		return sb.String()
	}

	for i, s := range m.snap.Sessions {
		marker := "  "
		if s.ID == m.snap.ActiveID {
			marker = "● "
		}
		name := truncate(s.DocumentName, sidebarWidth-4)
		line := marker + name
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("  " + sessionMeta(s)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("enter open · ctrl+d delete\nctrl+u upload · ctrl+r reload"))
	return sb.String()
}

func sessionMeta(s model.Session) string {
	meta := strings.ToUpper(string(s.FileType))
	if !s.CreatedAt.IsZero() {
		meta += " · " + humanize.Time(s.CreatedAt)
	}
	return meta
}

func (m Model) renderTranscript() string {
	if m.snap.ActiveID == "" {
		return dimStyle.Render("Select a document on the left, or upload one with ctrl+u.")
	}
	if len(m.snap.Entries) == 0 {
		return dimStyle.Render("No messages yet. Ask something about this document.")
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 60
	}
	wrap := lipgloss.NewStyle().Width(width)

	var sb strings.Builder
	for i, e := range m.snap.Entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(speaker(e))
		sb.WriteString("\n")
		sb.WriteString(wrap.Render(e.Message.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}

func speaker(e transcript.Entry) string {
	label := assistantStyle.Render("Assistant")
	if e.Message.Role == model.RoleUser {
		label = userStyle.Render("You")
	}
	switch e.Status {
	case transcript.Pending:
		label += dimStyle.Render(" (sending)")
	case transcript.Failed:
		label += errorStyle.Render(" (not sent)")
	}
	if !e.Message.Timestamp.IsZero() {
		label += dimStyle.Render(" " + e.Message.Timestamp.Format("15:04"))
	}
	return label
}

func (m Model) renderPrompt() string {
	switch m.mode {
	case modeConfirmDelete:
		return promptStyle.Render(fmt.Sprintf("Delete %q and its chat history? (y/n)", m.target.DocumentName))
	case modeUpload:
		return promptStyle.Render("Upload file (esc to cancel)\n" + m.input.View())
	default:
		return m.input.View()
	}
}

func (m Model) renderToasts() string {
	if m.tray == nil {
		return ""
	}
	var lines []string
	for _, t := range m.tray.Active() {
		if t.Level == notify.LevelError {
			lines = append(lines, errorStyle.Render("✗ "+t.Text))
		} else {
			lines = append(lines, infoStyle.Render("✓ "+t.Text))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
