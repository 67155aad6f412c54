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
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) refresh(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func startWatcher(t *testing.T, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(rec.refresh, 30*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestWatcher_RefreshesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.db")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	rec := &recorder{}
	w := startWatcher(t, rec)
	require.NoError(t, w.Add("alice", path))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice", rec.snapshot()[0])
}

func TestWatcher_SeesReplacementByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.db")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	rec := &recorder{}
	w := startWatcher(t, rec)
	require.NoError(t, w.Add("alice", path))

	tmp := filepath.Join(dir, ".alice.db.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.db")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	rec := &recorder{}
	w := startWatcher(t, rec)
	require.NoError(t, w.Add("alice", path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatcher_AddMissingDirectory(t *testing.T) {
	w, err := New(func(context.Context, string) error { return nil }, time.Millisecond, nil)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = w.Run(ctx)
	}()

	err = w.Add("alice", filepath.Join(t.TempDir(), "missing", "alice.db"))
	require.Error(t, err)
}
