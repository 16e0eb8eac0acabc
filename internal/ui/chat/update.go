// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/doclens-tui/internal/model"
	"github.com/jeranaias/doclens-tui/internal/turn"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

const noticeTTL = 3 * time.Second

// Update is the Bubble Tea update function.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	// Turn lifecycle: mutate the placeholder on the UI goroutine, then
	// re-render the transcript.
	case turn.TokenMsg, turn.SourcesMsg:
		turn.Apply(msg)
		m.refreshTranscript(true)
		return m, nil

	case turn.DoneMsg:
		turn.Apply(msg)
		m.streaming = false
		m.refreshTranscript(true)
		return m, m.saveTurnCmd(msg.Assistant)

	case turn.FailedMsg:
		turn.Apply(msg)
		m.streaming = false
		m.refreshTranscript(true)
		return m, nil

	case TasksUpdatedMsg:
		m.taskList.SetTasks(msg.Snapshot)
		if m.taskList.Empty() {
			m.showTasks = false
		}
		return m, nil

	case NoticeMsg:
		m.notice = msg.Text
		m.noticeSeq++
		seq := m.noticeSeq
		return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg {
			return clearNoticeMsg{seq: seq}
		})

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize fits every component to the new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	viewportHeight := msg.Height - chromeRows
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
	m.input.Width = msg.Width - 6
	m.taskList.SetWidth(msg.Width - 2)

	m.rebuildRenderer()
	m.refreshTranscript(false)
	return m, nil
}

// handleKey dispatches keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.ToggleTasks):
		m.showTasks = !m.showTasks && !m.taskList.Empty()
		return m, nil

	case key.Matches(msg, m.keys.CycleFilter):
		m.filterIdx = (m.filterIdx + 1) % (len(m.docTypes) + 1)
		return m, nil

	case key.Matches(msg, m.keys.RateUp):
		return m.rate(model.FeedbackUp)
	case key.Matches(msg, m.keys.RateDown):
		return m.rate(model.FeedbackDown)

	case key.Matches(msg, m.keys.CopyAnswer):
		return m.copyAnswer()

	case key.Matches(msg, m.keys.NewSession):
		return m.resetSession()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit hands the input line to the turn controller.
func (m Model) submit() (tea.Model, tea.Cmd) {
	user, assistant, err := m.controller.Submit(m.ctx, m.input.Value(), m.selectedFilter())
	switch {
	case errors.Is(err, turn.ErrEmptyQuery):
		return m, nil
	case errors.Is(err, turn.ErrTurnInFlight):
		return m, notify("Still answering — one question at a time.")
	case err != nil:
		m.logger.Warn("submit failed", zap.Error(err))
		return m, notify("Could not submit the question.")
	}

	m.transcript = append(m.transcript, user, assistant)
	m.queryFor[assistant.ID] = user.Content
	m.userFor[assistant.ID] = user
	m.streaming = true
	m.input.Reset()
	m.refreshTranscript(true)
	return m, m.spinner.Tick
}

// rate applies a thumbs rating to the newest finished answer.
func (m Model) rate(fb model.Feedback) (tea.Model, tea.Cmd) {
	assistant := m.lastFinishedAssistant()
	if assistant == nil {
		return m, nil
	}
	if !m.controller.RateAnswer(assistant, m.queryFor[assistant.ID], fb) {
		return m, notify("Already rated.")
	}
	m.refreshTranscript(false)
	if fb == model.FeedbackDown {
		return m, notify("Thanks — flagged for review.")
	}
	return m, notify("Thanks for the feedback.")
}

// copyAnswer puts the newest finished answer on the system clipboard.
func (m Model) copyAnswer() (tea.Model, tea.Cmd) {
	assistant := m.lastFinishedAssistant()
	if assistant == nil {
		return m, nil
	}
	if err := clipboard.WriteAll(assistant.GetDisplayContent()); err != nil {
		m.logger.Warn("clipboard write failed", zap.Error(err))
		return m, notify("Clipboard unavailable.")
	}
	return m, notify("Answer copied.")
}

// resetSession drops the cached backend session and clears the screen.
func (m Model) resetSession() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, notify("Wait for the current answer to finish.")
	}
	m.sessions.Reset()
	m.transcript = nil
	m.queryFor = make(map[string]string)
	m.userFor = make(map[string]*model.Message)
	m.renderCache = make(map[string]string)
	m.refreshTranscript(false)
	return m, notify("Started a new conversation.")
}

// saveTurnCmd persists a finished exchange, if history is enabled.
func (m Model) saveTurnCmd(assistant *model.Message) tea.Cmd {
	if m.hist == nil {
		return nil
	}
	user := m.userFor[assistant.ID]
	sessionID := m.sessions.Current()
	if user == nil || sessionID == "" {
		return nil
	}
	hist, logger, ctx := m.hist, m.logger, m.ctx
	return func() tea.Msg {
		if err := hist.SaveTurn(ctx, sessionID, user, assistant); err != nil {
			logger.Warn("history save failed", zap.Error(err))
		}
		return nil
	}
}

func notify(text string) tea.Cmd {
	return func() tea.Msg { return NoticeMsg{Text: text} }
}
