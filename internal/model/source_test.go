// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSource_FieldPrecedence(t *testing.T) {
	doc, ok := NormalizeSource(map[string]any{
		"source_file":      "docs/oils.pdf",
		"source":           "ignored.pdf",
		"confidence_score": 0.9,
		"score":            0.1,
		"confidence_pct":   "90%",
		"match_tier":       "high",
	})
	require.True(t, ok)

	assert.Equal(t, "docs/oils.pdf", doc.Source)
	assert.Equal(t, "oils", doc.SourceStem)
	assert.InDelta(t, 0.9, doc.Score, 1e-9)
	assert.True(t, doc.HasScore)
	assert.Equal(t, "90%", doc.Percent)
	assert.Equal(t, "high", doc.Tier)
}

func TestNormalizeSource_FallbackFields(t *testing.T) {
	doc, ok := NormalizeSource(map[string]any{
		"filename": "fats.docx",
		"score":    0.42,
		"snippet":  "saturated fats...",
		"pages":    []any{float64(3), float64(7)},
	})
	require.True(t, ok)

	assert.Equal(t, "fats.docx", doc.Source)
	assert.Equal(t, "fats", doc.SourceStem)
	assert.InDelta(t, 0.42, doc.Score, 1e-9)
	assert.Equal(t, "saturated fats...", doc.Excerpt)
	assert.Equal(t, []int{3, 7}, doc.Pages)
}

func TestNormalizeSource_MissingSourceDropped(t *testing.T) {
	_, ok := NormalizeSource(map[string]any{"confidence_score": 0.9})
	assert.False(t, ok)

	_, ok = NormalizeSource(map[string]any{"source": "   "})
	assert.False(t, ok)
}

func TestNormalizeSource_MetadataPassthrough(t *testing.T) {
	doc, ok := NormalizeSource(map[string]any{
		"source":      "a.pdf",
		"chunk_count": float64(12),
		"concepts":    []any{"oil", "fat"},
	})
	require.True(t, ok)
	assert.Equal(t, float64(12), doc.Metadata["chunk_count"])
	assert.NotContains(t, doc.Metadata, "source")
}

func TestNormalizeSources_FiltersAndPreservesOrder(t *testing.T) {
	docs := NormalizeSources([]map[string]any{
		{"source": "a.pdf"},
		{"confidence_score": 0.5}, // no source, dropped
		{"source": "b.pdf"},
	})
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Source)
	assert.Equal(t, "b.pdf", docs[1].Source)
}

func TestSourceStem(t *testing.T) {
	cases := map[string]string{
		"docs/reports/q1.pdf": "q1",
		"plain.txt":           "plain",
		"noext":               "noext",
		`win\path\file.docx`:  "file",
		".hidden":             ".hidden",
	}
	for in, want := range cases {
		assert.Equal(t, want, stemOf(in), "input: %q", in)
	}
}

// Percentage wins over numeric confidence for display when both are present.
func TestDisplayScore_PercentPrecedence(t *testing.T) {
	doc := SourceDocument{Score: 0.4, HasScore: true, Percent: "87%"}
	assert.Equal(t, "87%", doc.DisplayScore())

	doc = SourceDocument{Score: 0.4, HasScore: true}
	assert.Equal(t, "40%", doc.DisplayScore())

	assert.Equal(t, "", SourceDocument{}.DisplayScore())
}
