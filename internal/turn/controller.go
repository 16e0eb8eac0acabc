// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn drives one conversational turn: submission gating, session
// establishment, stream consumption, and terminal-state conversion of
// failures. Stream events surface as typed Bubble Tea messages rather
// than nested callbacks; the UI applies them to the placeholder message
// inside its update loop.
package turn

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/doclens-tui/internal/api"
	"github.com/jeranaias/doclens-tui/internal/model"
	"github.com/jeranaias/doclens-tui/internal/stream"
)

// =============================================================================
// MESSAGES (consumed by the UI update loop)
// =============================================================================

// TokenMsg appends one answer fragment to the placeholder.
type TokenMsg struct {
	Assistant *model.Message
	Token     string
}

// SourcesMsg attaches retrieval-phase sources and the derived status
// line; streaming continues.
type SourcesMsg struct {
	Assistant  *model.Message
	Sources    []model.SourceDocument
	StatusLine string
}

// DoneMsg finalizes the placeholder. Curated replaces the retrieval
// sources only when non-empty.
type DoneMsg struct {
	Assistant    *model.Message
	Reasoning    string
	Curated      []model.SourceDocument
	Faithfulness float64
	HasScore     bool
}

// FailedMsg converts a turn failure into terminal message state.
type FailedMsg struct {
	Assistant *model.Message
	Text      string
}

// Apply mutates the placeholder for one message. Call from the update
// loop so message state is only ever touched on the UI goroutine.
func Apply(msg any) (done bool) {
	switch m := msg.(type) {
	case TokenMsg:
		m.Assistant.AppendToken(m.Token)
	case SourcesMsg:
		m.Assistant.AttachRetrieval(m.Sources, m.StatusLine)
	case DoneMsg:
		m.Assistant.Finalize(m.Reasoning, m.Curated, m.Faithfulness, m.HasScore)
		return true
	case FailedMsg:
		m.Assistant.Fail(m.Text)
		return true
	}
	return false
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Fixed user-facing fallback text, one string per failure class.
const (
	sessionFailText = "Couldn't start a session with the assistant service. The turn was not sent; try again in a moment."
	unreachableText = "The assistant service is unreachable. Check that the backend is running and try again."
	streamFailText  = "Something went wrong while generating the answer. Please try again."
)

var (
	// ErrEmptyQuery rejects blank submissions.
	ErrEmptyQuery = errors.New("empty query")

	// ErrTurnInFlight rejects a submission while another turn streams.
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// Streamer opens chat event streams. Satisfied by *stream.Client.
type Streamer interface {
	ChatEvents(ctx context.Context, req stream.ChatRequest) (<-chan stream.Event, error)
}

// Sessions supplies the lazily minted backend session. Satisfied by
// *session.Manager.
type Sessions interface {
	Ensure(ctx context.Context) (string, error)
	Current() string
}

// Reporter submits feedback and escalations. Satisfied by *api.Client.
type Reporter interface {
	SendFeedback(ctx context.Context, fb api.Feedback) error
	Escalate(ctx context.Context, esc api.Escalation) error
}

// Sink delivers messages to the UI event loop (tea.Program.Send).
type Sink func(msg any)

// Controller owns turn submission for one conversation.
type Controller struct {
	streamer Streamer
	sessions Sessions
	reporter Reporter
	sink     Sink
	logger   *zap.Logger

	// docTypes is the full set of filterable categories; a filter equal
	// to the full set is no filter at all.
	docTypes []string

	mu       sync.Mutex
	inFlight bool
}

// NewController wires a turn controller. sink must be safe to call from
// any goroutine.
func NewController(streamer Streamer, sessions Sessions, reporter Reporter, sink Sink, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		streamer: streamer,
		sessions: sessions,
		reporter: reporter,
		sink:     sink,
		logger:   logger,
	}
}

// WithDocTypes declares the full set of filterable document categories.
func (c *Controller) WithDocTypes(all []string) *Controller {
	c.docTypes = append([]string(nil), all...)
	return c
}

// InFlight reports whether a turn is currently streaming.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Submit starts a turn. On success it returns the user message and the
// streaming assistant placeholder for the caller to append to its
// transcript; every later mutation of the placeholder arrives through
// the sink. Blank queries and submissions during an in-flight turn are
// rejected without side effects.
func (c *Controller) Submit(ctx context.Context, query string, selected []string) (*model.Message, *model.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil, ErrEmptyQuery
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, nil, ErrTurnInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	user := model.NewUserMessage(query)
	assistant := model.NewAssistantMessage()

	go c.run(ctx, query, c.effectiveFilter(selected), assistant)
	return user, assistant, nil
}

// effectiveFilter reduces the selection to the wire filter: selecting
// every category (or nothing) means no filter is sent at all.
func (c *Controller) effectiveFilter(selected []string) []string {
	if len(selected) == 0 {
		return nil
	}
	if len(c.docTypes) > 0 {
		all := make(map[string]bool, len(c.docTypes))
		for _, dt := range c.docTypes {
			all[dt] = true
		}
		covered := 0
		for _, s := range selected {
			if all[s] {
				covered++
			}
		}
		if covered == len(all) {
			return nil
		}
	}
	out := append([]string(nil), selected...)
	sort.Strings(out)
	return out
}

// run owns the turn from session establishment to terminal state. The
// terminal sink message is sent after the in-flight gate clears, so a
// submission triggered by the terminal update is not spuriously
// rejected.
func (c *Controller) run(ctx context.Context, query string, filter []string, assistant *model.Message) {
	terminal := func(msg any) {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
		c.sink(msg)
	}

	sessionID, err := c.sessions.Ensure(ctx)
	if err != nil {
		c.logger.Warn("turn aborted: no session", zap.Error(err))
		terminal(FailedMsg{Assistant: assistant, Text: sessionFailText})
		return
	}

	events, err := c.streamer.ChatEvents(ctx, stream.ChatRequest{
		SessionID: sessionID,
		Query:     query,
		DocTypes:  filter,
	})
	if err != nil {
		c.logger.Warn("turn aborted: stream open failed", zap.Error(err))
		terminal(FailedMsg{Assistant: assistant, Text: unreachableText})
		return
	}

	for ev := range events {
		switch ev.Type {
		case stream.EventToken:
			c.sink(TokenMsg{Assistant: assistant, Token: ev.Token})

		case stream.EventRetrieval:
			sources := model.NormalizeSources(ev.Retrieval.Documents)
			topTier := ""
			if len(sources) > 0 {
				topTier = sources[0].Tier
			}
			c.sink(SourcesMsg{
				Assistant:  assistant,
				Sources:    sources,
				StatusLine: model.RetrievalStatusLine(len(sources), topTier),
			})

		case stream.EventDone:
			done := DoneMsg{Assistant: assistant}
			if ev.Done != nil {
				done.Reasoning = ev.Done.Reasoning
				done.Curated = model.NormalizeSources(ev.Done.LLMSources)
				if ev.Done.Faithfulness != nil {
					done.Faithfulness = *ev.Done.Faithfulness
					done.HasScore = true
				}
			}
			terminal(done)
			return

		case stream.EventError:
			text := ev.Message
			if text == "" {
				text = streamFailText
			}
			terminal(FailedMsg{Assistant: assistant, Text: text})
			return
		}
	}

	// The stream package guarantees a terminal event before close; this
	// is reachable only on context cancellation mid-forward.
	terminal(FailedMsg{Assistant: assistant, Text: streamFailText})
}

// =============================================================================
// FEEDBACK & ESCALATION
// =============================================================================

const reportTimeout = 10 * time.Second

// RateAnswer records a thumbs rating for a finished assistant message
// and submits it. Ratings are absorbing: only the first one per message
// is sent. Thumbs-down also files an escalation. Both submissions are
// fire-and-forget; failures are logged, never surfaced.
func (c *Controller) RateAnswer(assistant *model.Message, query string, fb model.Feedback) bool {
	if !assistant.SetFeedback(fb) {
		return false
	}

	thumbs := "up"
	if fb == model.FeedbackDown {
		thumbs = "down"
	}
	answer := assistant.GetDisplayContent()
	sessionID := c.sessions.Current()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()

		if err := c.reporter.SendFeedback(ctx, api.Feedback{
			SessionID: sessionID,
			Query:     query,
			Answer:    answer,
			Thumbs:    thumbs,
		}); err != nil {
			c.logger.Warn("feedback submission failed", zap.Error(err))
		}
		if fb != model.FeedbackDown {
			return
		}
		if err := c.reporter.Escalate(ctx, api.Escalation{
			Query:       query,
			AnswerGiven: answer,
			SessionID:   sessionID,
			GapType:     "bad_answer",
		}); err != nil {
			c.logger.Warn("escalation submission failed", zap.Error(err))
		}
	}()
	return true
}
