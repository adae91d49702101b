package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCallsBackOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "datamodel.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	var calls atomic.Int32
	w, err := NewWatcher(file, 20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(file, []byte(`{"models":[]}`), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestInitialCallbackErrorStopsRun(t *testing.T) {
	file := filepath.Join(t.TempDir(), "datamodel.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	boom := errors.New("boom")
	w, err := NewWatcher(file, DefaultDebounce, func(ctx context.Context) error { return boom })
	require.NoError(t, err)

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
