package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewWatcher_files(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")
	index := filepath.Join(dir, "vectors.bin")
	w := NewWatcher([]string{index, "", meta, meta}, nil)

	assert.Equal(t, []string{filepath.Clean(meta), filepath.Clean(index)}, w.Files())
	assert.Len(t, w.dirs, 1, "expected one parent directory")
}

func TestWatcher_debouncesBurstIntoOneCallback(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")
	writeFile(t, meta, "{}\n")

	var calls atomic.Int32
	w := NewWatcher([]string{meta}, func() { calls.Add(1) }, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writeFile(t, meta, "{}\n{}\n")
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "expected exactly one callback for a burst")
}

func TestWatcher_renameOverTargetTriggers(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")
	writeFile(t, meta, "{}\n")

	var calls atomic.Int32
	w := NewWatcher([]string{meta}, func() { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	tmp := meta + ".tmp"
	writeFile(t, tmp, "{}\n{}\n")
	require.NoError(t, os.Rename(tmp, meta))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond,
		"expected a callback after the file was replaced")
}

func TestWatcher_ignoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")

	var calls atomic.Int32
	w := NewWatcher([]string{meta}, func() { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load(), "unrelated file triggered callbacks")
}

func TestWatcher_stopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "meta.jsonl")

	var calls atomic.Int32
	w := NewWatcher([]string{meta}, func() { calls.Add(1) }, WithDebounce(200*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))
	writeFile(t, meta, "{}\n")
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, calls.Load(), "callback ran after Stop")
}

func TestWatcher_startMissingDirectory(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing", "meta.jsonl")}, nil)
	err := w.Start(context.Background())
	if err == nil {
		w.Stop()
	}
	assert.Error(t, err, "watching a missing directory")
}
