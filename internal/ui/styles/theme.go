// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the doclens TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
const (
	colorAccent  = lipgloss.Color("39")  // blue
	colorUser    = lipgloss.Color("75")  // light blue
	colorAnswer  = lipgloss.Color("252") // near-white
	colorMuted   = lipgloss.Color("240") // gray
	colorGood    = lipgloss.Color("42")  // green
	colorBad     = lipgloss.Color("203") // red
	colorWarn    = lipgloss.Color("214") // amber
	colorSurface = lipgloss.Color("236") // panel background
)

// Theme holds all styled components for the application.
type Theme struct {
	// Layout
	Header    lipgloss.Style
	StatusBar lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	AssistantText  lipgloss.Style
	ErrorText      lipgloss.Style
	StatusLine     lipgloss.Style
	Reasoning      lipgloss.Style
	FaithGood      lipgloss.Style
	FaithWarn      lipgloss.Style
	FeedbackMark   lipgloss.Style

	// Sources panel
	SourceHeader lipgloss.Style
	SourceName   lipgloss.Style
	SourceMeta   lipgloss.Style

	// Task panel
	PanelBorder lipgloss.Style
	TaskLabel   lipgloss.Style
	TaskDetail  lipgloss.Style
	TaskDone    lipgloss.Style
	TaskFailed  lipgloss.Style

	// Input
	InputPrompt lipgloss.Style
	FilterTag   lipgloss.Style

	// Status bar fragments
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Notice       lipgloss.Style
}

// NewTheme builds the default theme.
func NewTheme() *Theme {
	return &Theme{
		Header: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1),

		UserLabel: lipgloss.NewStyle().
			Foreground(colorUser).
			Bold(true),
		AssistantLabel: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),
		UserText: lipgloss.NewStyle().
			Foreground(colorAnswer),
		AssistantText: lipgloss.NewStyle().
			Foreground(colorAnswer),
		ErrorText: lipgloss.NewStyle().
			Foreground(colorBad),
		StatusLine: lipgloss.NewStyle().
			Foreground(colorWarn).
			Italic(true),
		Reasoning: lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true),
		FaithGood: lipgloss.NewStyle().
			Foreground(colorGood),
		FaithWarn: lipgloss.NewStyle().
			Foreground(colorWarn),
		FeedbackMark: lipgloss.NewStyle().
			Foreground(colorMuted),

		SourceHeader: lipgloss.NewStyle().
			Foreground(colorAccent),
		SourceName: lipgloss.NewStyle().
			Foreground(colorAnswer),
		SourceMeta: lipgloss.NewStyle().
			Foreground(colorMuted),

		PanelBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Background(colorSurface).
			Padding(0, 1),
		TaskLabel: lipgloss.NewStyle().
			Foreground(colorAnswer),
		TaskDetail: lipgloss.NewStyle().
			Foreground(colorMuted),
		TaskDone: lipgloss.NewStyle().
			Foreground(colorGood),
		TaskFailed: lipgloss.NewStyle().
			Foreground(colorBad),

		InputPrompt: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),
		FilterTag: lipgloss.NewStyle().
			Foreground(colorWarn),

		ShortcutKey: lipgloss.NewStyle().
			Foreground(colorAnswer).
			Bold(true),
		ShortcutDesc: lipgloss.NewStyle().
			Foreground(colorMuted),
		Notice: lipgloss.NewStyle().
			Foreground(colorGood),
	}
}
