// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// SCAFFOLDING REMOVAL
// =============================================================================

// Backend answers carry structural scaffolding from the generation prompt:
// a leading "Answer:" label, a trailing "Sources:" block (running to a
// following "Reasoning:" marker or end of text), a trailing "Reasoning:"
// block, and a machine sentinel line ("CITED_FILES: ..."). None of it is
// meant for display; the curated source list and reasoning arrive
// separately in the done event.

const citedFilesSentinel = "CITED_FILES:"

// StripScaffolding removes the structural sections from an answer. It is
// idempotent and tolerates any subset of the sections being absent.
func StripScaffolding(content string) string {
	s := content

	// Leading "Answer:" label.
	trimmed := strings.TrimLeft(s, " \t\n")
	if strings.HasPrefix(trimmed, "Answer:") {
		s = strings.TrimLeft(strings.TrimPrefix(trimmed, "Answer:"), " \t\n")
	}

	// Trailing "Sources:" block, up to a "Reasoning:" marker or end of text.
	if idx := indexOfSection(s, "Sources:"); idx >= 0 {
		rest := s[idx:]
		if ridx := indexOfSection(rest, "Reasoning:"); ridx >= 0 {
			s = s[:idx] + rest[ridx:]
		} else {
			s = s[:idx]
		}
	}

	// Trailing "Reasoning:" block.
	if idx := indexOfSection(s, "Reasoning:"); idx >= 0 {
		s = s[:idx]
	}

	// Machine sentinel line anywhere after the answer body.
	if idx := indexOfSection(s, citedFilesSentinel); idx >= 0 {
		before := s[:idx]
		rest := s[idx:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			s = before + rest[nl+1:]
		} else {
			s = before
		}
	}

	return strings.TrimSpace(s)
}

// indexOfSection finds a section marker at the start of a line. A marker
// embedded mid-line (e.g. inside a sentence) is not a section boundary.
func indexOfSection(s, marker string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], marker)
		if idx < 0 {
			return -1
		}
		idx += from
		if idx == 0 || s[idx-1] == '\n' {
			return idx
		}
		from = idx + len(marker)
	}
}
