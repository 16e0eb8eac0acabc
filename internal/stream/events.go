// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// CHAT EVENT TYPES
// =============================================================================

// EventType discriminates chat-stream frames.
type EventType string

const (
	// EventToken carries an answer fragment to append in arrival order.
	EventToken EventType = "token"

	// EventRetrieval carries the retrieval-phase document list.
	EventRetrieval EventType = "retrieval"

	// EventDone is terminal: completion metadata (reasoning, curated
	// sources, faithfulness).
	EventDone EventType = "done"

	// EventError is terminal: a server-reported failure.
	EventError EventType = "error"
)

// IsTerminal reports whether no further frames are expected after this
// event type.
func (t EventType) IsTerminal() bool {
	return t == EventDone || t == EventError
}

// Event is the tagged union produced by a chat stream. Exactly one payload
// field is meaningful, selected by Type.
type Event struct {
	Type EventType

	// Token is set for EventToken.
	Token string

	// Retrieval is set for EventRetrieval.
	Retrieval *RetrievalPayload

	// Done is set for EventDone. Nil Done with Type == EventDone means a
	// synthetic completion (stream ended without a terminal frame).
	Done *DonePayload

	// Message is set for EventError; empty when the server gave no text.
	Message string

	// Synthetic marks the implicit completion emitted when the stream
	// ended without a terminal frame.
	Synthetic bool
}

// RetrievalPayload is the structured body of a retrieval frame. Documents
// are kept as raw records; normalization into SourceDocument is the view
// model's job.
type RetrievalPayload struct {
	Documents []map[string]any
}

// DonePayload is the structured body of a done frame.
type DonePayload struct {
	Reasoning    string           `json:"reasoning,omitempty"`
	LLMSources   []map[string]any `json:"llm_sources,omitempty"`
	Faithfulness *float64         `json:"faithfulness,omitempty"`
}

// =============================================================================
// FRAME DECODING
// =============================================================================

// dataPrefix marks a payload line; anything else (blank keep-alives,
// comments) is noise on a chat stream.
var dataPrefix = []byte("data:")

// chatFrame is the wire shape of one chat-stream frame body.
type chatFrame struct {
	Type    string          `json:"type"`
	Token   string          `json:"token"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// retrievalBody accepts both field names observed on the wire.
type retrievalBody struct {
	Documents []map[string]any `json:"documents"`
	Results   []map[string]any `json:"results"`
}

// decodeChatFrame parses one complete line into an Event. Returns false
// for non-data lines and for lines that fail structured decoding; both
// are skipped silently.
func decodeChatFrame(line []byte) (Event, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	body := bytes.TrimSpace(line[len(dataPrefix):])
	if len(body) == 0 {
		return Event{}, false
	}

	var frame chatFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		return Event{}, false
	}

	switch EventType(frame.Type) {
	case EventToken:
		return Event{Type: EventToken, Token: frame.Token}, true

	case EventRetrieval:
		var rb retrievalBody
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &rb); err != nil {
				return Event{}, false
			}
		}
		docs := rb.Documents
		if docs == nil {
			docs = rb.Results
		}
		return Event{Type: EventRetrieval, Retrieval: &RetrievalPayload{Documents: docs}}, true

	case EventDone:
		done := &DonePayload{}
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, done); err != nil {
				return Event{}, false
			}
		}
		return Event{Type: EventDone, Done: done}, true

	case EventError:
		return Event{Type: EventError, Message: frame.Message}, true
	}

	// Unknown discriminator: noise.
	return Event{}, false
}

// =============================================================================
// TASK EVENT TYPES
// =============================================================================

// TaskChannel names the sub-channels of a task status stream.
type TaskChannel string

const (
	TaskChannelStatus   TaskChannel = "status"
	TaskChannelComplete TaskChannel = "complete"
	TaskChannelError    TaskChannel = "error"
)

// IsTerminal reports whether the channel ends the subscription.
func (c TaskChannel) IsTerminal() bool {
	return c == TaskChannelComplete || c == TaskChannelError
}

// TaskEvent is one event from a per-task subscription.
type TaskEvent struct {
	Channel TaskChannel

	// Status fields
	Progress    int
	CurrentStep string
	StepMessage string

	// Complete fields
	Chunks int

	// Error fields
	Error string

	// Synthetic marks the implicit completion emitted when the stream
	// ended without a terminal event.
	Synthetic bool
}

// taskStatusBody is the wire shape of a status payload.
type taskStatusBody struct {
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	StepMessage string `json:"step_message"`
}

// taskCompleteBody is the wire shape of a complete payload.
type taskCompleteBody struct {
	Chunks int `json:"chunks"`
}

// taskErrorBody is the wire shape of an error payload; either field may
// carry the message.
type taskErrorBody struct {
	Error       string `json:"error"`
	StepMessage string `json:"step_message"`
}

// decodeTaskFrame parses a data payload under the given channel name.
// Unknown channels and malformed bodies are skipped.
func decodeTaskFrame(channel string, body []byte) (TaskEvent, bool) {
	switch TaskChannel(channel) {
	case TaskChannelStatus:
		var sb taskStatusBody
		if err := json.Unmarshal(body, &sb); err != nil {
			return TaskEvent{}, false
		}
		return TaskEvent{
			Channel:     TaskChannelStatus,
			Progress:    sb.Progress,
			CurrentStep: sb.CurrentStep,
			StepMessage: sb.StepMessage,
		}, true

	case TaskChannelComplete:
		var cb taskCompleteBody
		if err := json.Unmarshal(body, &cb); err != nil {
			return TaskEvent{}, false
		}
		return TaskEvent{Channel: TaskChannelComplete, Chunks: cb.Chunks}, true

	case TaskChannelError:
		var eb taskErrorBody
		if err := json.Unmarshal(body, &eb); err != nil {
			return TaskEvent{}, false
		}
		msg := eb.Error
		if msg == "" {
			msg = eb.StepMessage
		}
		return TaskEvent{Channel: TaskChannelError, Error: msg}, true
	}

	return TaskEvent{}, false
}
