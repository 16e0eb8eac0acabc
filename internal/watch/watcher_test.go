// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/doclens-tui/internal/api"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads [][]string
	results map[string]api.UploadResult
}

func (f *fakeUploader) Upload(ctx context.Context, paths []string) ([]api.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, paths)

	var out []api.UploadResult
	for _, p := range paths {
		name := filepath.Base(p)
		if res, ok := f.results[name]; ok {
			out = append(out, res)
			continue
		}
		out = append(out, api.UploadResult{TaskID: "task-" + name, Filename: name, Status: "queued"})
	}
	return out, nil
}

func (f *fakeUploader) uploadedFiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, batch := range f.uploads {
		for _, p := range batch {
			names = append(names, filepath.Base(p))
		}
	}
	return names
}

type fakeRegistrar struct {
	mu    sync.Mutex
	tasks map[string]string
}

func (f *fakeRegistrar) Register(taskID, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tasks == nil {
		f.tasks = make(map[string]string)
	}
	f.tasks[taskID] = label
}

func (f *fakeRegistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func startWatcher(t *testing.T, dir string, up *fakeUploader, reg *fakeRegistrar) *Watcher {
	t.Helper()
	w, err := New(dir, up, reg, nil, WithTiming(50*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_UploadsDroppedDocument(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	reg := &fakeRegistrar{}
	startWatcher(t, dir, up, reg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.pdf"), []byte("pdf"), 0o644))

	waitFor(t, func() bool { return reg.count() == 1 })
	assert.Contains(t, up.uploadedFiles(), "manual.pdf")
	reg.mu.Lock()
	assert.Equal(t, "manual.pdf", reg.tasks["task-manual.pdf"])
	reg.mu.Unlock()
}

func TestWatcher_IgnoresNonDocumentFiles(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	reg := &fakeRegistrar{}
	startWatcher(t, dir, up, reg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.docx"), []byte("doc"), 0o644))

	waitFor(t, func() bool { return reg.count() == 1 })
	assert.NotContains(t, up.uploadedFiles(), "notes.tmp")
}

func TestWatcher_DebouncesGrowingFile(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	reg := &fakeRegistrar{}
	startWatcher(t, dir, up, reg)

	path := filepath.Join(dir, "big.pdf")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.WriteString("chunk\n")
		require.NoError(t, err)
		require.NoError(t, f.Sync())
		time.Sleep(15 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	waitFor(t, func() bool { return reg.count() == 1 })
	// Writes kept resetting the window; exactly one upload per file.
	assert.Len(t, up.uploadedFiles(), 1)
}

func TestWatcher_RejectedFileNotRegistered(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{results: map[string]api.UploadResult{
		"bad.pdf": {Filename: "bad.pdf", Error: "unsupported"},
	}}
	reg := &fakeRegistrar{}
	startWatcher(t, dir, up, reg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte("x"), 0o644))

	waitFor(t, func() bool { return len(up.uploadedFiles()) == 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, reg.count())
}
