// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/doclens-tui/internal/tasks"
)

// =============================================================================
// UI MESSAGES
// =============================================================================

// TasksUpdatedMsg carries a fresh tracker snapshot into the update loop.
type TasksUpdatedMsg struct {
	Snapshot []tasks.Task
}

// NoticeMsg shows a transient line in the status bar.
type NoticeMsg struct {
	Text string
}

// clearNoticeMsg removes an expired notice.
type clearNoticeMsg struct {
	seq int
}
