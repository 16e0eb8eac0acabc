// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks tracks backend ingestion tasks: one status-stream
// subscription per task, a copy-on-write snapshot of all live tasks, and
// automatic eviction once a task reaches a terminal state.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/doclens-tui/internal/stream"
)

// =============================================================================
// TASK STATE
// =============================================================================

// State is the tracked lifecycle state of one ingestion task.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the task will receive no further updates.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FailedProgress is the sentinel progress value for failed tasks.
const FailedProgress = -1

// Task is an immutable view of one tracked task. Snapshots hold value
// copies; mutating a snapshot never affects the tracker.
type Task struct {
	ID       string
	Label    string
	State    State
	Progress int
	Step     string
	Detail   string
	Chunks   int
	Updated  time.Time
}

// =============================================================================
// TRACKER
// =============================================================================

const (
	// safetyTimeout finalizes a task that never receives a terminal
	// event, so a dead subscription cannot pin a progress row forever.
	safetyTimeout = 5 * time.Minute

	// evictDelay keeps a finished task visible long enough to read.
	evictDelay = 8 * time.Second
)

// Streamer opens per-task status subscriptions. Satisfied by
// *stream.Client.
type Streamer interface {
	SubscribeTask(ctx context.Context, taskID string) (<-chan stream.TaskEvent, error)
}

type entry struct {
	task   Task
	cancel context.CancelFunc
	safety *time.Timer
	evict  *time.Timer
}

// Listener receives the full task snapshot after every change.
type Listener func([]Task)

// Tracker is the process-wide ingestion-task registry. Construct one and
// inject it; all methods are safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	streamer Streamer
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	entries  map[string]*entry
	order    []string
	snapshot []Task

	listeners  map[int]Listener
	nextListen int

	safetyTimeout time.Duration
	evictDelay    time.Duration
}

// Option adjusts tracker construction.
type Option func(*Tracker)

// WithTimeouts overrides the safety and eviction delays (tests).
func WithTimeouts(safety, evict time.Duration) Option {
	return func(t *Tracker) {
		t.safetyTimeout = safety
		t.evictDelay = evict
	}
}

// NewTracker creates a tracker over the given streamer.
func NewTracker(streamer Streamer, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		streamer:      streamer,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		entries:       make(map[string]*entry),
		listeners:     make(map[int]Listener),
		safetyTimeout: safetyTimeout,
		evictDelay:    evictDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register starts tracking a task and opens its status subscription.
// Registering an already-tracked task id is a no-op.
func (t *Tracker) Register(taskID, label string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if _, exists := t.entries[taskID]; exists {
		t.mu.Unlock()
		return
	}

	subCtx, subCancel := context.WithCancel(t.ctx)
	e := &entry{
		task: Task{
			ID:      taskID,
			Label:   label,
			State:   StateRunning,
			Updated: time.Now(),
		},
		cancel: subCancel,
	}
	e.safety = time.AfterFunc(t.safetyTimeout, func() {
		t.finalize(taskID, stream.TaskEvent{Channel: stream.TaskChannelComplete, Synthetic: true})
	})
	t.entries[taskID] = e
	t.order = append(t.order, taskID)
	t.publishLocked()
	t.mu.Unlock()

	t.logger.Debug("task registered", zap.String("task_id", taskID), zap.String("label", label))
	go t.consume(subCtx, taskID)
}

// consume owns the task's subscription for its lifetime.
func (t *Tracker) consume(ctx context.Context, taskID string) {
	events, err := t.streamer.SubscribeTask(ctx, taskID)
	if err != nil {
		t.logger.Warn("task subscription failed",
			zap.String("task_id", taskID), zap.Error(err))
		t.finalize(taskID, stream.TaskEvent{
			Channel: stream.TaskChannelError,
			Error:   "status unavailable",
		})
		return
	}

	for ev := range events {
		if ev.Channel.IsTerminal() {
			t.finalize(taskID, ev)
			return
		}
		t.update(taskID, ev)
	}
	// Channel closed without a terminal event; the stream reader's
	// synthetic completion normally prevents this, but cancellation can.
	t.finalize(taskID, stream.TaskEvent{Channel: stream.TaskChannelComplete, Synthetic: true})
}

// update applies a status event. Last write wins.
func (t *Tracker) update(taskID string, ev stream.TaskEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[taskID]
	if !ok || e.task.State.IsTerminal() {
		return
	}
	e.task.Progress = ev.Progress
	e.task.Step = ev.CurrentStep
	e.task.Detail = ev.StepMessage
	e.task.Updated = time.Now()
	t.publishLocked()
}

// finalize moves a task to its terminal state and schedules eviction.
// Safe to call from multiple paths; the first terminal transition wins.
func (t *Tracker) finalize(taskID string, ev stream.TaskEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[taskID]
	if !ok || e.task.State.IsTerminal() {
		return
	}
	e.safety.Stop()
	e.cancel()

	switch ev.Channel {
	case stream.TaskChannelError:
		e.task.State = StateFailed
		e.task.Progress = FailedProgress
		e.task.Detail = ev.Error
	default:
		e.task.State = StateCompleted
		e.task.Progress = 100
		e.task.Chunks = ev.Chunks
		if ev.Synthetic {
			e.task.Detail = "done"
		} else if ev.Chunks == 0 {
			e.task.Detail = "skipped"
		} else {
			e.task.Detail = ""
		}
	}
	e.task.Updated = time.Now()

	e.evict = time.AfterFunc(t.evictDelay, func() { t.remove(taskID) })
	t.publishLocked()

	t.logger.Info("task finished",
		zap.String("task_id", taskID),
		zap.String("state", string(e.task.State)),
		zap.Int("chunks", e.task.Chunks))
}

// remove drops an evicted task from the registry.
func (t *Tracker) remove(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[taskID]; !ok {
		return
	}
	delete(t.entries, taskID)
	for i, id := range t.order {
		if id == taskID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.publishLocked()
}

// =============================================================================
// SNAPSHOTS & SUBSCRIPTION
// =============================================================================

// publishLocked rebuilds the snapshot and notifies listeners. Callers
// hold t.mu. Listeners run on the mutating goroutine; they must not call
// back into the tracker synchronously.
func (t *Tracker) publishLocked() {
	snap := make([]Task, 0, len(t.order))
	for _, id := range t.order {
		snap = append(snap, t.entries[id].task)
	}
	t.snapshot = snap
	for _, fn := range t.listeners {
		fn(snap)
	}
}

// Snapshot returns the current task list in registration order. The
// returned slice is immutable by convention: it is replaced, never
// mutated, on change.
func (t *Tracker) Snapshot() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Subscribe registers a listener for snapshot changes and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (t *Tracker) Subscribe(fn Listener) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextListen
	t.nextListen++
	t.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// Active reports how many tasks are still running.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if !e.task.State.IsTerminal() {
			n++
		}
	}
	return n
}

// Close cancels every subscription and stops all timers. Safe to call
// more than once.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for _, e := range t.entries {
		e.safety.Stop()
		if e.evict != nil {
			e.evict.Stop()
		}
		e.cancel()
	}
	t.mu.Unlock()
	t.cancel()
}
