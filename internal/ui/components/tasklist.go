// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/jeranaias/doclens-tui/internal/tasks"
	"github.com/jeranaias/doclens-tui/internal/ui/styles"
	"github.com/jeranaias/doclens-tui/internal/util"
)

// =============================================================================
// TASK LIST COMPONENT
// =============================================================================

const labelWidth = 28

// TaskList renders the ingestion task overlay from tracker snapshots.
type TaskList struct {
	theme *styles.Theme
	bar   progress.Model
	width int

	snapshot []tasks.Task
}

// NewTaskList creates the task overlay component.
func NewTaskList(theme *styles.Theme) *TaskList {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	return &TaskList{theme: theme, bar: bar, width: 60}
}

// SetWidth sets the component width.
func (tl *TaskList) SetWidth(width int) {
	tl.width = width
	barWidth := width - labelWidth - 10
	if barWidth < 10 {
		barWidth = 10
	}
	tl.bar.Width = barWidth
}

// SetTasks replaces the rendered snapshot.
func (tl *TaskList) SetTasks(snapshot []tasks.Task) {
	tl.snapshot = snapshot
}

// Empty reports whether there is nothing to show.
func (tl *TaskList) Empty() bool {
	return len(tl.snapshot) == 0
}

// View renders the task panel.
func (tl *TaskList) View() string {
	if tl.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString(tl.theme.SourceHeader.Render("Ingestion"))
	b.WriteString("\n")

	for i, task := range tl.snapshot {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(tl.renderTask(task))
	}
	return tl.theme.PanelBorder.Width(tl.width).Render(b.String())
}

func (tl *TaskList) renderTask(task tasks.Task) string {
	label := tl.theme.TaskLabel.Render(util.PadWidth(task.Label, labelWidth))

	switch task.State {
	case tasks.StateCompleted:
		detail := task.Detail
		if detail == "" {
			detail = fmt.Sprintf("%d chunks", task.Chunks)
		}
		return fmt.Sprintf("%s %s %s",
			label,
			tl.theme.TaskDone.Render("✓ done"),
			tl.theme.TaskDetail.Render(detail))

	case tasks.StateFailed:
		return fmt.Sprintf("%s %s %s",
			label,
			tl.theme.TaskFailed.Render("✗ failed"),
			tl.theme.TaskDetail.Render(util.TruncateWidth(task.Detail, tl.width-labelWidth-12)))

	default:
		pct := float64(task.Progress) / 100
		if pct < 0 {
			pct = 0
		}
		line := fmt.Sprintf("%s %s %3d%%", label, tl.bar.ViewAs(pct), task.Progress)
		if task.Step != "" {
			line += " " + tl.theme.TaskDetail.Render(task.Step)
		}
		return line
	}
}
