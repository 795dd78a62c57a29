package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New([]string{dir}, rec.handle)
	require.NoError(t, err)
	w.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return w
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu.events")
	rec := &recorder{}
	startWatcher(t, dir, rec)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{path}, rec.snapshot())
}

func TestWatcherFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w, err := New([]string{dir}, rec.handle)
	require.NoError(t, err)
	w.Debounce = 20 * time.Millisecond
	w.Filter = func(path string) bool { return filepath.Ext(path) == ".events" }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level1.events"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, filepath.Join(dir, "level1.events"), rec.snapshot()[0])
}

func TestNewFailsOnMissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, func(string) {})
	assert.Error(t, err)
}

func TestScheduleDoesNotReuseFiredTimer(t *testing.T) {
	rec := &recorder{}
	w := &Watcher{
		Debounce: 10 * time.Millisecond,
		Handler:  rec.handle,
		timers:   make(map[string]*time.Timer),
	}

	// A timer that already fired but has not yet removed itself.
	var stale atomic.Int32
	fired := time.AfterFunc(time.Hour, func() { stale.Add(1) })
	fired.Stop()
	w.timers["menu.events"] = fired

	w.schedule("menu.events")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []string{"menu.events"}, rec.snapshot())
	assert.Equal(t, int32(0), stale.Load(), "fired timer must not be re-armed")

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.timers)
}
