// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"path"
	"strings"
)

// =============================================================================
// SOURCE DOCUMENT TYPE
// =============================================================================

// SourceDocument is a normalized citation of a backend document.
type SourceDocument struct {
	// Source is the document path or filename. Required; citations without
	// a resolvable source are dropped during normalization.
	Source string `json:"source"`

	// SourceStem is the display name: the filename without extension,
	// falling back to the path-stripped source.
	SourceStem string `json:"source_stem"`

	// Score is the numeric confidence in [0,1]. HasScore distinguishes a
	// genuine zero from an absent value.
	Score    float64 `json:"score,omitempty"`
	HasScore bool    `json:"has_score,omitempty"`

	// Percent is the backend's pre-formatted percentage string. When
	// present it wins over Score for display.
	Percent string `json:"percent,omitempty"`

	// Tier is the match-quality label ("high", "partial", ...).
	Tier string `json:"tier,omitempty"`

	// Excerpt is an optional free-text snippet from the document.
	Excerpt string `json:"excerpt,omitempty"`

	// Pages lists cited page numbers, if any.
	Pages []int `json:"pages,omitempty"`

	// Metadata carries any remaining free-form fields (chunk counts,
	// matched concepts).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DisplayScore returns the score formatted for display. The pre-formatted
// percentage wins when present; otherwise the numeric confidence is
// rendered as a percentage; empty when neither is known.
func (d SourceDocument) DisplayScore() string {
	if d.Percent != "" {
		return d.Percent
	}
	if d.HasScore {
		return fmt.Sprintf("%.0f%%", d.Score*100)
	}
	return ""
}

// =============================================================================
// CITATION NORMALIZATION
// =============================================================================

// Backend document records arrive with varying field names depending on
// which pipeline produced them. Precedence, first match wins:
//
//	source:     source_file > source > file > filename
//	confidence: confidence_score > confidence > score
//	percent:    confidence_pct > percent
//	tier:       match_tier > tier
//	excerpt:    excerpt > snippet > text
//	pages:      pages > page_numbers
var (
	sourceKeys  = []string{"source_file", "source", "file", "filename"}
	scoreKeys   = []string{"confidence_score", "confidence", "score"}
	percentKeys = []string{"confidence_pct", "percent"}
	tierKeys    = []string{"match_tier", "tier"}
	excerptKeys = []string{"excerpt", "snippet", "text"}
	pageKeys    = []string{"pages", "page_numbers"}
)

// consumedKeys is the set of record keys absorbed into named fields; the
// rest are kept in Metadata.
var consumedKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, group := range [][]string{sourceKeys, scoreKeys, percentKeys, tierKeys, excerptKeys, pageKeys} {
		for _, k := range group {
			m[k] = true
		}
	}
	return m
}()

// NormalizeSource maps one heterogeneous backend document record into a
// SourceDocument. Returns false when no non-empty source identifier could
// be resolved; such records must be filtered out before display.
func NormalizeSource(record map[string]any) (SourceDocument, bool) {
	doc := SourceDocument{}

	doc.Source = strings.TrimSpace(firstString(record, sourceKeys))
	if doc.Source == "" {
		return SourceDocument{}, false
	}
	doc.SourceStem = stemOf(doc.Source)

	if v, ok := firstNumber(record, scoreKeys); ok {
		doc.Score = v
		doc.HasScore = true
	}
	doc.Percent = strings.TrimSpace(firstString(record, percentKeys))
	doc.Tier = strings.TrimSpace(firstString(record, tierKeys))
	doc.Excerpt = firstString(record, excerptKeys)
	doc.Pages = firstIntSlice(record, pageKeys)

	for k, v := range record {
		if consumedKeys[k] {
			continue
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		doc.Metadata[k] = v
	}

	return doc, true
}

// NormalizeSources normalizes a list of backend document records, dropping
// entries without a resolvable source. Order of surviving entries matches
// the input order.
func NormalizeSources(records []map[string]any) []SourceDocument {
	out := make([]SourceDocument, 0, len(records))
	for _, rec := range records {
		if doc, ok := NormalizeSource(rec); ok {
			out = append(out, doc)
		}
	}
	return out
}

// =============================================================================
// FIELD EXTRACTION HELPERS
// =============================================================================

// firstString returns the first non-empty string value among keys.
func firstString(record map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := record[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// firstNumber returns the first numeric value among keys. JSON decoding
// yields float64, but int shows up in hand-built records and tests.
func firstNumber(record map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := record[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}

// firstIntSlice returns the first list-of-numbers value among keys.
func firstIntSlice(record map[string]any, keys []string) []int {
	for _, k := range keys {
		v, ok := record[k]
		if !ok {
			continue
		}
		switch list := v.(type) {
		case []int:
			return append([]int(nil), list...)
		case []any:
			out := make([]int, 0, len(list))
			for _, item := range list {
				switch n := item.(type) {
				case float64:
					out = append(out, int(n))
				case int:
					out = append(out, n)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// stemOf derives the display name: filename without extension, falling
// back to the path-stripped source when there is no extension to strip.
func stemOf(source string) string {
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	ext := path.Ext(base)
	if ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}
