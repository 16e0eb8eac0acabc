// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/doclens-tui/internal/model"
	"github.com/jeranaias/doclens-tui/internal/stream"
	"github.com/jeranaias/doclens-tui/internal/tasks"
	"github.com/jeranaias/doclens-tui/internal/turn"
)

func testModel(t *testing.T) Model {
	t.Helper()
	tracker := tasks.NewTracker(nopStreamer{}, nil)
	t.Cleanup(tracker.Close)

	m := New(context.Background(), Options{
		Tracker:  tracker,
		DocTypes: []string{"manual", "spec_sheet"},
	})
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return resized.(Model)
}

type nopStreamer struct{}

func (nopStreamer) SubscribeTask(ctx context.Context, taskID string) (<-chan stream.TaskEvent, error) {
	ch := make(chan stream.TaskEvent)
	close(ch)
	return ch, nil
}

func TestFilterCycling(t *testing.T) {
	m := testModel(t)

	assert.Nil(t, m.selectedFilter(), "initial position is all categories")
	assert.Empty(t, m.filterLabel())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = next.(Model)
	assert.Equal(t, []string{"manual"}, m.selectedFilter())
	assert.Equal(t, "manual", m.filterLabel())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = next.(Model)
	assert.Equal(t, []string{"spec_sheet"}, m.selectedFilter())

	// Wraps back to "all".
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = next.(Model)
	assert.Nil(t, m.selectedFilter())
}

func TestLastFinishedAssistant(t *testing.T) {
	m := testModel(t)
	assert.Nil(t, m.lastFinishedAssistant())

	finished := model.NewAssistantMessage()
	finished.AppendToken("done answer")
	finished.Finalize("", nil, 0, false)

	failed := model.NewAssistantMessage()
	failed.Fail("error text")

	streaming := model.NewAssistantMessage()

	m.transcript = []*model.Message{
		model.NewUserMessage("q1"), finished,
		model.NewUserMessage("q2"), failed,
		model.NewUserMessage("q3"), streaming,
	}
	got := m.lastFinishedAssistant()
	require.NotNil(t, got)
	assert.Equal(t, finished.ID, got.ID)
}

func TestTurnMessagesDriveTranscript(t *testing.T) {
	m := testModel(t)

	assistant := model.NewAssistantMessage()
	m.transcript = []*model.Message{model.NewUserMessage("q"), assistant}
	m.streaming = true

	next, _ := m.Update(turn.TokenMsg{Assistant: assistant, Token: "Hello"})
	m = next.(Model)
	assert.Equal(t, "Hello", assistant.GetDisplayContent())
	assert.True(t, m.streaming)

	next, _ = m.Update(turn.DoneMsg{Assistant: assistant})
	m = next.(Model)
	assert.False(t, m.streaming)
	assert.False(t, assistant.IsStreaming)
	assert.Contains(t, m.viewport.View(), "Hello")
}

func TestFailedMsgRendersErrorState(t *testing.T) {
	m := testModel(t)

	assistant := model.NewAssistantMessage()
	m.transcript = []*model.Message{model.NewUserMessage("q"), assistant}
	m.streaming = true

	next, _ := m.Update(turn.FailedMsg{Assistant: assistant, Text: "backend unreachable"})
	m = next.(Model)
	assert.False(t, m.streaming)
	assert.True(t, assistant.IsError)
	assert.Contains(t, m.View(), "backend unreachable")
}

func TestTaskOverlayToggle(t *testing.T) {
	m := testModel(t)

	// No tasks: toggling stays hidden.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	assert.False(t, m.showTasks)

	next, _ = m.Update(TasksUpdatedMsg{Snapshot: []tasks.Task{
		{ID: "t1", Label: "manual.pdf", State: tasks.StateRunning, Progress: 40},
	}})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	assert.True(t, m.showTasks)
	assert.Contains(t, m.View(), "manual.pdf")

	// Empty snapshot hides the overlay again.
	next, _ = m.Update(TasksUpdatedMsg{Snapshot: nil})
	m = next.(Model)
	assert.False(t, m.showTasks)
}

func TestNoticeLifecycle(t *testing.T) {
	m := testModel(t)

	next, cmd := m.Update(NoticeMsg{Text: "Answer copied."})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Contains(t, m.renderStatusBar(), "Answer copied.")

	// A stale clear does nothing; the matching one clears.
	next, _ = m.Update(clearNoticeMsg{seq: m.noticeSeq - 1})
	m = next.(Model)
	assert.Contains(t, m.renderStatusBar(), "Answer copied.")

	next, _ = m.Update(clearNoticeMsg{seq: m.noticeSeq})
	m = next.(Model)
	assert.False(t, strings.Contains(m.renderStatusBar(), "Answer copied."))
}

func TestStreamingViewShowsStatusLine(t *testing.T) {
	m := testModel(t)

	assistant := model.NewAssistantMessage()
	assistant.AttachRetrieval(
		[]model.SourceDocument{{Source: "a.pdf", Tier: "high"}},
		model.RetrievalStatusLine(1, "high"))
	m.transcript = []*model.Message{model.NewUserMessage("q"), assistant}
	m.streaming = true
	m.refreshTranscript(false)

	assert.Contains(t, m.viewport.View(), "Found 1 document · high — generating answer…")
}
