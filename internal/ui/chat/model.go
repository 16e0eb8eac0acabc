// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the main TUI view: transcript, input, ingestion
// overlay, and status bar.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/doclens-tui/internal/history"
	"github.com/jeranaias/doclens-tui/internal/model"
	"github.com/jeranaias/doclens-tui/internal/session"
	"github.com/jeranaias/doclens-tui/internal/tasks"
	"github.com/jeranaias/doclens-tui/internal/turn"
	"github.com/jeranaias/doclens-tui/internal/ui/components"
	"github.com/jeranaias/doclens-tui/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme *styles.Theme
	keys  KeyMap

	// Dimensions
	width  int
	height int
	ready  bool

	// Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	taskList *components.TaskList

	// Conversation
	transcript []*model.Message
	// queryFor maps an assistant message id to the query that produced
	// it, for feedback submissions and history rows.
	queryFor map[string]string
	userFor  map[string]*model.Message
	streaming bool

	// Document-type filter: index 0 means all categories (no filter).
	docTypes  []string
	filterIdx int

	// Markdown rendering
	renderer    *glamour.TermRenderer
	renderCache map[string]string

	// Task overlay
	showTasks bool

	// Transient status-bar notice
	notice    string
	noticeSeq int

	// Collaborators
	controller *turn.Controller
	tracker    *tasks.Tracker
	sessions   *session.Manager
	hist       *history.Store
	logger     *zap.Logger
	ctx        context.Context
}

// Options carries the collaborators the chat view needs.
type Options struct {
	Theme      *styles.Theme
	Controller *turn.Controller
	Tracker    *tasks.Tracker
	Sessions   *session.Manager
	History    *history.Store // nil disables transcript persistence
	DocTypes   []string
	Logger     *zap.Logger
}

// New creates the chat view.
func New(ctx context.Context, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Placeholder = "Ask about your documents…"
	input.Prompt = theme.InputPrompt.Render("❯ ")
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		theme:       theme,
		keys:        DefaultKeyMap(),
		input:       input,
		spinner:     sp,
		taskList:    components.NewTaskList(theme),
		queryFor:    make(map[string]string),
		userFor:     make(map[string]*model.Message),
		docTypes:    opts.DocTypes,
		renderCache: make(map[string]string),
		controller:  opts.Controller,
		tracker:     opts.Tracker,
		sessions:    opts.Sessions,
		hist:        opts.History,
		logger:      logger,
		ctx:         ctx,
	}
}

// Init starts input blinking and the spinner tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// selectedFilter returns the doc-type selection for the current filter
// position; nil means every category, which the controller omits from
// the request.
func (m Model) selectedFilter() []string {
	if m.filterIdx == 0 || m.filterIdx > len(m.docTypes) {
		return nil
	}
	return []string{m.docTypes[m.filterIdx-1]}
}

// filterLabel names the current filter position for the input line.
func (m Model) filterLabel() string {
	if sel := m.selectedFilter(); sel != nil {
		return sel[0]
	}
	return ""
}

// lastFinishedAssistant returns the newest assistant message that has
// finished streaming without error.
func (m Model) lastFinishedAssistant() *model.Message {
	for i := len(m.transcript) - 1; i >= 0; i-- {
		msg := m.transcript[i]
		if msg.Role == model.RoleAssistant && !msg.IsStreaming && !msg.IsError {
			return msg
		}
	}
	return nil
}

// rebuildRenderer recreates the glamour renderer for the current width
// and invalidates the render cache.
func (m *Model) rebuildRenderer() {
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		m.renderer = nil
	} else {
		m.renderer = renderer
	}
	m.renderCache = make(map[string]string)
}

// renderMarkdown renders finalized assistant content, falling back to
// the raw text when glamour is unavailable.
func (m *Model) renderMarkdown(msg *model.Message) string {
	if cached, ok := m.renderCache[msg.ID]; ok {
		return cached
	}
	out := msg.GetDisplayContent()
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(out); err == nil {
			out = rendered
		}
	}
	m.renderCache[msg.ID] = out
	return out
}
