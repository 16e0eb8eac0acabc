// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// =============================================================================
// STATUS LINE DERIVATION
// =============================================================================

// RetrievalStatusLine derives the human-readable status line shown while
// the answer is being generated, from the retrieval result count and the
// top result's tier label.
func RetrievalStatusLine(count int, topTier string) string {
	if count <= 0 {
		return "Generating answer…"
	}

	noun := "documents"
	if count == 1 {
		noun = "document"
	}

	if topTier != "" {
		return fmt.Sprintf("Found %d %s · %s — generating answer…", count, noun, topTier)
	}
	return fmt.Sprintf("Found %d %s — generating answer…", count, noun)
}
