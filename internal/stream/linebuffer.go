// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"fmt"
)

// =============================================================================
// LINE BUFFER
// =============================================================================

// MaxLineSize is the maximum allowed size for a single buffered line (64KB).
// A line that grows past this is treated as corrupt input.
const MaxLineSize = 64 * 1024

// LineBuffer reassembles complete lines from arbitrarily split byte
// chunks. Network reads may split a line anywhere, including mid-JSON;
// only complete lines may be handed to the frame decoder, with the
// trailing fragment retained for the next read.
type LineBuffer struct {
	rest []byte
}

// Feed appends a chunk and returns every complete line it closed, with
// line endings trimmed. The trailing incomplete fragment is kept.
func (b *LineBuffer) Feed(chunk []byte) ([][]byte, error) {
	b.rest = append(b.rest, chunk...)

	var lines [][]byte
	for {
		idx := bytes.IndexByte(b.rest, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimRight(b.rest[:idx], "\r")
		// Copy out: rest is reused across feeds.
		lines = append(lines, append([]byte(nil), line...))
		b.rest = b.rest[idx+1:]
	}

	if len(b.rest) > MaxLineSize {
		return lines, fmt.Errorf("line too large: %d bytes", len(b.rest))
	}
	return lines, nil
}

// Rest returns the retained incomplete fragment, trimmed of a trailing
// carriage return. Call at end of stream to process a final line that
// arrived without a newline.
func (b *LineBuffer) Rest() []byte {
	return bytes.TrimRight(b.rest, "\r")
}

// Reset discards any buffered fragment.
func (b *LineBuffer) Reset() {
	b.rest = nil
}
