// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/doclens-tui/internal/model"
	"github.com/jeranaias/doclens-tui/internal/ui/styles"
	"github.com/jeranaias/doclens-tui/internal/util"
)

// =============================================================================
// SOURCES PANEL
// =============================================================================

// RenderSources renders the citation block shown under an answer.
func RenderSources(theme *styles.Theme, sources []model.SourceDocument, width int) string {
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(theme.SourceHeader.Render("Sources"))
	for i, src := range sources {
		b.WriteString("\n")
		b.WriteString(renderSource(theme, i+1, src, width))
	}
	return b.String()
}

func renderSource(theme *styles.Theme, n int, src model.SourceDocument, width int) string {
	name := src.SourceStem
	if name == "" {
		name = src.Source
	}

	var meta []string
	if score := src.DisplayScore(); score != "" {
		meta = append(meta, score)
	}
	if src.Tier != "" {
		meta = append(meta, src.Tier)
	}
	if len(src.Pages) > 0 {
		meta = append(meta, "p. "+joinPages(src.Pages))
	}

	line := fmt.Sprintf("  %d. %s", n, theme.SourceName.Render(name))
	if len(meta) > 0 {
		line += " " + theme.SourceMeta.Render("("+strings.Join(meta, " · ")+")")
	}
	return util.TruncateWidth(line, width)
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
