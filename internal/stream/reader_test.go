// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// chunkReader yields the input in fixed-size chunks to exercise line
// reassembly across arbitrary split points.
type chunkReader struct {
	data  []byte
	size  int
	pos   int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

// collectChat runs ReadChat over the wire text and records every event.
func collectChat(t *testing.T, wire string, chunkSize int) []Event {
	t.Helper()
	var events []Event
	h := Handler{
		OnToken:     func(tok string) { events = append(events, Event{Type: EventToken, Token: tok}) },
		OnRetrieval: func(p *RetrievalPayload) { events = append(events, Event{Type: EventRetrieval, Retrieval: p}) },
		OnDone:      func(p *DonePayload) { events = append(events, Event{Type: EventDone, Done: p, Synthetic: p == nil}) },
		OnError:     func(msg string) { events = append(events, Event{Type: EventError, Message: msg}) },
	}
	err := ReadChat(context.Background(), &chunkReader{data: []byte(wire), size: chunkSize}, h)
	require.NoError(t, err)
	return events
}

// =============================================================================
// LINE BUFFER TESTS
// =============================================================================

func TestLineBuffer_SplitAcrossFeeds(t *testing.T) {
	var lb LineBuffer

	lines, err := lb.Feed([]byte("data: {\"ty"))
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = lb.Feed([]byte("pe\":\"token\"}\ndata: nex"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, `data: {"type":"token"}`, string(lines[0]))

	assert.Equal(t, "data: nex", string(lb.Rest()))
}

func TestLineBuffer_CRLF(t *testing.T) {
	var lb LineBuffer
	lines, err := lb.Feed([]byte("one\r\ntwo\r\n"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "one", string(lines[0]))
	assert.Equal(t, "two", string(lines[1]))
}

func TestLineBuffer_OversizedLine(t *testing.T) {
	var lb LineBuffer
	_, err := lb.Feed(make([]byte, MaxLineSize+1))
	assert.Error(t, err)
}

// =============================================================================
// CHAT READER TESTS
// =============================================================================

const chatWire = `data: {"type":"retrieval","data":{"documents":[{"source_file":"a.pdf","confidence_score":0.9}]}}
data: {"type":"token","token":"The "}
data: {"type":"token","token":"best oils…"}
data: {"type":"done","data":{}}
`

// Token fragments must concatenate identically regardless of how the
// network split the stream into chunks.
func TestReadChat_TokenOrderAcrossChunkSizes(t *testing.T) {
	for _, size := range []int{1, 2, 3, 7, 16, 64, len(chatWire)} {
		events := collectChat(t, chatWire, size)
		require.Len(t, events, 4, "chunk size %d", size)

		assert.Equal(t, EventRetrieval, events[0].Type)
		require.Len(t, events[0].Retrieval.Documents, 1)

		var content strings.Builder
		for _, ev := range events[1:3] {
			require.Equal(t, EventToken, ev.Type)
			content.WriteString(ev.Token)
		}
		assert.Equal(t, "The best oils…", content.String())

		assert.Equal(t, EventDone, events[3].Type)
		assert.False(t, events[3].Synthetic)
	}
}

func TestReadChat_MalformedFramesSkipped(t *testing.T) {
	wire := "data: {not json\n" +
		": keep-alive comment\n" +
		"\n" +
		"data: {\"type\":\"mystery\"}\n" +
		"data: {\"type\":\"token\",\"token\":\"ok\"}\n" +
		"data: {\"type\":\"done\",\"data\":{}}\n"
	events := collectChat(t, wire, 5)
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Token)
	assert.Equal(t, EventDone, events[1].Type)
}

func TestReadChat_TerminalStopsProcessing(t *testing.T) {
	wire := "data: {\"type\":\"done\",\"data\":{}}\n" +
		"data: {\"type\":\"token\",\"token\":\"after\"}\n"
	events := collectChat(t, wire, 8)
	require.Len(t, events, 1)
	assert.Equal(t, EventDone, events[0].Type)
}

func TestReadChat_ErrorFrameTerminal(t *testing.T) {
	wire := "data: {\"type\":\"token\",\"token\":\"x\"}\n" +
		"data: {\"type\":\"error\",\"message\":\"index offline\"}\n" +
		"data: {\"type\":\"token\",\"token\":\"after\"}\n"
	events := collectChat(t, wire, 4)
	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[1].Type)
	assert.Equal(t, "index offline", events[1].Message)
}

// A stream that ends without a terminal frame must still complete the
// caller exactly once.
func TestReadChat_SyntheticDoneOnEOF(t *testing.T) {
	wire := "data: {\"type\":\"token\",\"token\":\"partial\"}\n"
	events := collectChat(t, wire, 6)
	require.Len(t, events, 2)
	assert.Equal(t, EventToken, events[0].Type)
	assert.Equal(t, EventDone, events[1].Type)
	assert.True(t, events[1].Synthetic)
}

// A final frame without a trailing newline is still processed.
func TestReadChat_UnterminatedFinalLine(t *testing.T) {
	wire := "data: {\"type\":\"token\",\"token\":\"x\"}\ndata: {\"type\":\"done\",\"data\":{}}"
	events := collectChat(t, wire, 9)
	require.Len(t, events, 2)
	assert.Equal(t, EventDone, events[1].Type)
	assert.False(t, events[1].Synthetic)
}

func TestReadChat_DonePayloadFields(t *testing.T) {
	wire := `data: {"type":"done","data":{"reasoning":"chunk agreement","llm_sources":[{"source":"b.pdf"}],"faithfulness":0.83}}` + "\n"
	events := collectChat(t, wire, 11)
	require.Len(t, events, 1)
	done := events[0].Done
	require.NotNil(t, done)
	assert.Equal(t, "chunk agreement", done.Reasoning)
	require.Len(t, done.LLMSources, 1)
	require.NotNil(t, done.Faithfulness)
	assert.InDelta(t, 0.83, *done.Faithfulness, 1e-9)
}

func TestReadChat_RetrievalResultsAlias(t *testing.T) {
	wire := `data: {"type":"retrieval","data":{"results":[{"source":"r.pdf"}]}}` + "\n" +
		`data: {"type":"done","data":{}}` + "\n"
	events := collectChat(t, wire, 13)
	require.Len(t, events, 2)
	require.Len(t, events[0].Retrieval.Documents, 1)
	assert.Equal(t, "r.pdf", events[0].Retrieval.Documents[0]["source"])
}

// =============================================================================
// TASK READER TESTS
// =============================================================================

func collectTask(t *testing.T, wire string, chunkSize int) []TaskEvent {
	t.Helper()
	out := make(chan TaskEvent, 32)
	err := ReadTask(context.Background(), &chunkReader{data: []byte(wire), size: chunkSize}, out)
	require.NoError(t, err)

	var events []TaskEvent
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestReadTask_NamedChannels(t *testing.T) {
	wire := "event: status\n" +
		"data: {\"progress\":40,\"current_step\":\"embedding\",\"step_message\":\"Embedding chunks\"}\n" +
		"\n" +
		"event: complete\n" +
		"data: {\"chunks\":17}\n"
	for _, size := range []int{1, 4, 32, len(wire)} {
		events := collectTask(t, wire, size)
		require.Len(t, events, 2, "chunk size %d", size)

		assert.Equal(t, TaskChannelStatus, events[0].Channel)
		assert.Equal(t, 40, events[0].Progress)
		assert.Equal(t, "embedding", events[0].CurrentStep)

		assert.Equal(t, TaskChannelComplete, events[1].Channel)
		assert.Equal(t, 17, events[1].Chunks)
		assert.False(t, events[1].Synthetic)
	}
}

func TestReadTask_ErrorChannelFallbackField(t *testing.T) {
	wire := "event: error\n" +
		"data: {\"step_message\":\"parse failed\"}\n"
	events := collectTask(t, wire, 7)
	require.Len(t, events, 1)
	assert.Equal(t, TaskChannelError, events[0].Channel)
	assert.Equal(t, "parse failed", events[0].Error)
}

func TestReadTask_SyntheticCompleteOnEOF(t *testing.T) {
	wire := "event: status\n" +
		"data: {\"progress\":10}\n"
	events := collectTask(t, wire, 3)
	require.Len(t, events, 2)
	assert.Equal(t, TaskChannelComplete, events[1].Channel)
	assert.True(t, events[1].Synthetic)
}

func TestReadTask_TerminalStopsProcessing(t *testing.T) {
	wire := "event: complete\n" +
		"data: {\"chunks\":3}\n" +
		"event: status\n" +
		"data: {\"progress\":99}\n"
	events := collectTask(t, wire, 6)
	require.Len(t, events, 1)
	assert.Equal(t, TaskChannelComplete, events[0].Channel)
}
