// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the backend's text-event streams into typed
// events.
//
// STREAMING: Robust SSE parsing with error handling
//
// Two transport shapes are supported:
//
//   - Chat streams: a POST request whose response body is a line-oriented
//     event stream; each frame is a "data:" line carrying a JSON body with
//     a "type" discriminator (token, retrieval, done, error).
//   - Task streams: a long-lived per-task subscription using SSE named
//     channels ("event: status|complete|error" followed by a data line).
//
// Network chunks may split a line anywhere, including mid-JSON. The
// LineBuffer reassembles complete lines across reads; partial lines are
// never parsed. Malformed frames are skipped, never fatal. Both shapes
// guarantee exactly one terminal notification: if the underlying stream
// ends without a terminal frame, a synthetic completion is emitted.
package stream
