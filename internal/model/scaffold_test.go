// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripScaffolding_NoSections(t *testing.T) {
	in := "Olive oil and avocado oil are generally considered healthy."
	assert.Equal(t, in, StripScaffolding(in))
}

func TestStripScaffolding_AnswerLabel(t *testing.T) {
	got := StripScaffolding("Answer: Olive oil is healthy.")
	assert.Equal(t, "Olive oil is healthy.", got)
}

func TestStripScaffolding_AllSections(t *testing.T) {
	in := "Answer: Use olive oil.\n" +
		"Sources:\n- oils.pdf\n- fats.pdf\n" +
		"Reasoning: The retrieved chunks agree.\n" +
		"CITED_FILES: oils.pdf,fats.pdf"
	assert.Equal(t, "Use olive oil.", StripScaffolding(in))
}

func TestStripScaffolding_SourcesOnly(t *testing.T) {
	in := "Use olive oil.\nSources:\n- oils.pdf"
	assert.Equal(t, "Use olive oil.", StripScaffolding(in))
}

func TestStripScaffolding_ReasoningOnly(t *testing.T) {
	in := "Use olive oil.\nReasoning: chunk agreement."
	assert.Equal(t, "Use olive oil.", StripScaffolding(in))
}

func TestStripScaffolding_SentinelOnly(t *testing.T) {
	in := "Use olive oil.\nCITED_FILES: oils.pdf"
	assert.Equal(t, "Use olive oil.", StripScaffolding(in))
}

func TestStripScaffolding_MidLineMarkerIgnored(t *testing.T) {
	in := "The report lists its Sources: none were peer reviewed."
	assert.Equal(t, in, StripScaffolding(in))
}

// Stripping twice must equal stripping once.
func TestStripScaffolding_Idempotent(t *testing.T) {
	inputs := []string{
		"Answer: Use olive oil.\nSources:\n- oils.pdf\nReasoning: ok.\nCITED_FILES: oils.pdf",
		"plain answer with no markers",
		"",
		"Sources:\n- only.pdf",
	}
	for _, in := range inputs {
		once := StripScaffolding(in)
		assert.Equal(t, once, StripScaffolding(once), "input: %q", in)
	}
}

func TestStripScaffolding_Empty(t *testing.T) {
	assert.Equal(t, "", StripScaffolding(""))
	assert.Equal(t, "", StripScaffolding("Answer:"))
}
