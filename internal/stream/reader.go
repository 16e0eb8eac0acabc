// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// =============================================================================
// CHAT STREAM READER
// =============================================================================

// readBufSize is the per-read chunk size. Deliberately small relative to
// typical frames so line reassembly is exercised constantly.
const readBufSize = 4 * 1024

// Handler receives chat-stream events as frames are decoded. Callbacks
// are invoked synchronously from the read loop, in arrival order. Nil
// callbacks are skipped.
type Handler struct {
	OnToken     func(token string)
	OnRetrieval func(payload *RetrievalPayload)
	OnDone      func(payload *DonePayload)
	OnError     func(message string)
}

// dispatch routes one event to the matching callback.
func (h Handler) dispatch(ev Event) {
	switch ev.Type {
	case EventToken:
		if h.OnToken != nil {
			h.OnToken(ev.Token)
		}
	case EventRetrieval:
		if h.OnRetrieval != nil {
			h.OnRetrieval(ev.Retrieval)
		}
	case EventDone:
		if h.OnDone != nil {
			h.OnDone(ev.Done)
		}
	case EventError:
		if h.OnError != nil {
			h.OnError(ev.Message)
		}
	}
}

// ReadChat decodes a chat event stream from body and dispatches every
// event to the handler.
//
// The loop ends when the stream signals completion or immediately after a
// terminal frame (done or error); no further frames are processed. If the
// stream ends without a terminal frame, exactly one synthetic completion
// is dispatched, by construction rather than by caller discipline.
//
// A read error after frames were already dispatched is not surfaced to
// the caller as an error: the handler still gets its synthetic
// completion, matching the degraded-done contract.
func ReadChat(ctx context.Context, body io.Reader, h Handler) error {
	terminal := false
	emit := func(ev Event) bool {
		if terminal {
			return false
		}
		h.dispatch(ev)
		if ev.Type.IsTerminal() {
			terminal = true
		}
		return terminal
	}
	defer func() {
		if !terminal {
			terminal = true
			h.dispatch(Event{Type: EventDone, Synthetic: true})
		}
	}()

	var lb LineBuffer
	buf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			lines, lerr := lb.Feed(buf[:n])
			for _, line := range lines {
				if ev, ok := decodeChatFrame(line); ok {
					if emit(ev) {
						return nil
					}
				}
			}
			if lerr != nil {
				return lerr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A final line may have arrived without a newline.
				if rest := lb.Rest(); len(rest) > 0 {
					if ev, ok := decodeChatFrame(rest); ok {
						emit(ev)
					}
				}
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Mid-stream transport failure: the deferred synthetic
			// completion keeps the caller's state machine terminal.
			return nil
		}
	}
}

// =============================================================================
// TASK STREAM READER
// =============================================================================

// eventPrefix marks an SSE channel-name line on a task stream.
var eventPrefix = []byte("event:")

// ReadTask decodes a named-channel task stream from body, sending events
// to out. The loop ends on stream completion or immediately after a
// terminal event (complete or error). If the stream ends without one, a
// synthetic completion is sent. out is closed before returning.
func ReadTask(ctx context.Context, body io.Reader, out chan<- TaskEvent) error {
	defer close(out)

	terminal := false
	send := func(ev TaskEvent) bool {
		select {
		case out <- ev:
		case <-ctx.Done():
			return true
		}
		if ev.Channel.IsTerminal() {
			terminal = true
		}
		return terminal
	}
	defer func() {
		if !terminal {
			select {
			case out <- TaskEvent{Channel: TaskChannelComplete, Synthetic: true}:
			case <-ctx.Done():
			}
		}
	}()

	var lb LineBuffer
	// channel carries the pending "event:" name for the next data line.
	channel := ""
	handleLine := func(line []byte) (stop bool) {
		switch {
		case bytes.HasPrefix(line, eventPrefix):
			channel = string(bytes.TrimSpace(line[len(eventPrefix):]))
		case bytes.HasPrefix(line, dataPrefix):
			body := bytes.TrimSpace(line[len(dataPrefix):])
			if ev, ok := decodeTaskFrame(channel, body); ok {
				return send(ev)
			}
		}
		// Blank lines and other fields (id:, retry:, comments) are noise.
		return false
	}

	buf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			lines, lerr := lb.Feed(buf[:n])
			for _, line := range lines {
				if handleLine(line) {
					return nil
				}
			}
			if lerr != nil {
				return lerr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if rest := lb.Rest(); len(rest) > 0 {
					handleLine(rest)
				}
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		}
	}
}
