// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/doclens-tui/internal/model"
	"github.com/jeranaias/doclens-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// chromeRows is the number of rows taken by everything except the
// transcript viewport: header, input line, status bar.
const chromeRows = 3

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{m.renderHeader(), m.viewport.View()}
	if m.showTasks && !m.taskList.Empty() {
		// The overlay sits between the transcript and the input.
		sections = append(sections, m.taskList.View())
	}
	sections = append(sections, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("doclens")
	right := ""
	if active := m.tracker.Active(); active > 0 {
		right = m.theme.StatusLine.Render(fmt.Sprintf("%d ingesting", active))
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) renderInput() string {
	line := m.input.View()
	if label := m.filterLabel(); label != "" {
		line += " " + m.theme.FilterTag.Render("["+label+"]")
	}
	return line
}

func (m Model) renderStatusBar() string {
	if m.notice != "" {
		return m.theme.StatusBar.Render(m.theme.Notice.Render(m.notice))
	}

	shortcuts := []struct{ key, desc string }{
		{"enter", "ask"},
		{"C-f", "filter"},
		{"C-t", "tasks"},
		{"C-g/C-b", "rate"},
		{"C-y", "copy"},
		{"C-r", "new"},
		{"C-c", "quit"},
	}
	parts := make([]string, len(shortcuts))
	for i, s := range shortcuts {
		parts[i] = m.theme.ShortcutKey.Render(s.key) + " " + m.theme.ShortcutDesc.Render(s.desc)
	}
	return m.theme.StatusBar.Render(strings.Join(parts, "  "))
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshTranscript re-renders the viewport content. With follow set,
// the viewport sticks to the bottom (streaming).
func (m *Model) refreshTranscript(follow bool) {
	if !m.ready {
		return
	}
	var b strings.Builder
	for i, msg := range m.transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessage(msg *model.Message) string {
	switch {
	case msg.Role == model.RoleUser:
		return m.theme.UserLabel.Render("You") + "\n" +
			m.theme.UserText.Render(msg.Content)

	case msg.IsError:
		return m.theme.AssistantLabel.Render("Assistant") + "\n" +
			m.theme.ErrorText.Render(msg.GetDisplayContent())

	case msg.IsStreaming:
		return m.renderStreaming(msg)

	default:
		return m.renderFinished(msg)
	}
}

func (m *Model) renderStreaming(msg *model.Message) string {
	var b strings.Builder
	b.WriteString(m.theme.AssistantLabel.Render("Assistant"))
	b.WriteString("\n")

	status := msg.StatusText
	if status == "" {
		status = "Generating answer…"
	}
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.theme.StatusLine.Render(status))

	if content := msg.GetDisplayContent(); content != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.AssistantText.Render(content))
	}
	return b.String()
}

func (m *Model) renderFinished(msg *model.Message) string {
	var b strings.Builder
	b.WriteString(m.theme.AssistantLabel.Render("Assistant"))
	if msg.FeedbackGiven != model.FeedbackNone {
		b.WriteString(" ")
		b.WriteString(m.theme.FeedbackMark.Render("(rated)"))
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimRight(m.renderMarkdown(msg), "\n"))

	if sources := components.RenderSources(m.theme, msg.Sources, m.width-2); sources != "" {
		b.WriteString("\n")
		b.WriteString(sources)
	}
	if msg.HasScore {
		b.WriteString("\n")
		b.WriteString(m.renderFaithfulness(msg.Faithfulness))
	}
	if msg.Reasoning != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Reasoning.Render("Reasoning: " + msg.Reasoning))
	}
	return b.String()
}

func (m *Model) renderFaithfulness(score float64) string {
	text := fmt.Sprintf("Faithfulness: %.0f%%", score*100)
	if score >= 0.7 {
		return m.theme.FaithGood.Render(text)
	}
	return m.theme.FaithWarn.Render(text)
}
