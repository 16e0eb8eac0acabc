// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch uploads documents dropped into a local folder. File
// events are debounced until the file stops growing, then the upload is
// rate-limited and the resulting ingestion tasks handed to the tracker.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/doclens-tui/internal/api"
)

// =============================================================================
// DROP-FOLDER WATCHER
// =============================================================================

const (
	// debounce waits for a file to stop changing before uploading, so a
	// slow copy into the folder is not uploaded half-written.
	debounce = 2 * time.Second

	sweepInterval = 500 * time.Millisecond
)

// uploadExts are the document types worth sending to the backend.
var uploadExts = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// Uploader submits files for ingestion. Satisfied by *api.Client.
type Uploader interface {
	Upload(ctx context.Context, paths []string) ([]api.UploadResult, error)
}

// Registrar tracks resulting ingestion tasks. Satisfied by
// *tasks.Tracker.
type Registrar interface {
	Register(taskID, label string)
}

// Watcher watches one drop folder.
type Watcher struct {
	dir       string
	uploader  Uploader
	registrar Registrar
	logger    *zap.Logger

	fsw     *fsnotify.Watcher
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]time.Time

	debounce time.Duration
	sweep    time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Option adjusts watcher construction.
type Option func(*Watcher)

// WithTiming overrides the debounce window and sweep interval (tests).
func WithTiming(debounce, sweep time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = debounce
		w.sweep = sweep
	}
}

// New creates a watcher for dir. Call Start to begin watching.
func New(dir string, uploader Uploader, registrar Registrar, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:       dir,
		uploader:  uploader,
		registrar: registrar,
		logger:    logger,
		fsw:       fsw,
		// One upload burst per file drop; a folder full of files pasted
		// at once drains at a steady pace instead of hammering the
		// backend.
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
		pending:  make(map[string]time.Time),
		debounce: debounce,
		sweep:    sweepInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The watcher runs until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	w.logger.Info("drop folder watch started", zap.String("dir", w.dir))
	return nil
}

// Stop ends the watch and releases the underlying notifier.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	sweep := time.NewTicker(w.sweep)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !uploadExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-sweep.C:
			for _, path := range w.takeSettled() {
				w.dispatch(ctx, path)
			}
		}
	}
}

// takeSettled removes and returns pending files that have been quiet for
// the debounce window.
func (w *Watcher) takeSettled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var settled []string
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	return settled
}

// dispatch uploads one settled file and registers its ingestion tasks.
func (w *Watcher) dispatch(ctx context.Context, path string) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	results, err := w.uploader.Upload(ctx, []string{path})
	if err != nil {
		w.logger.Warn("drop folder upload failed",
			zap.String("path", path), zap.Error(err))
		return
	}
	for _, res := range results {
		if res.Failed() {
			w.logger.Warn("file rejected by backend",
				zap.String("filename", res.Filename), zap.String("error", res.Error))
			continue
		}
		w.registrar.Register(res.TaskID, res.Filename)
	}
}
