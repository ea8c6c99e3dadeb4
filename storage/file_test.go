package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/stretchr/testify/require"
)

func TestFile_GetSetRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session")
	f, err := storage.NewFile(dir)
	require.NoError(t, err)
	require.Equal(t, dir, f.Dir())

	_, err = f.Get("token")
	require.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	require.NoError(t, f.Set("token", "abc"))
	require.NoError(t, f.Set("token", "def"))
	v, err := f.Get("token")
	require.NoError(t, err)
	require.Equal(t, "def", v)

	info, err := os.Stat(filepath.Join(dir, "token"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, f.Remove("token"))
	require.NoError(t, f.Remove("token"))
	_, err = f.Get("token")
	require.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	_, err = f.Get("../etc/passwd")
	require.ErrorIs(t, err, apperrors.ErrInvalidKey)
}

func TestFile_SharedBetweenInstances(t *testing.T) {
	dir := t.TempDir()
	a, err := storage.NewFile(dir)
	require.NoError(t, err)
	b, err := storage.NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, a.Set("auth-storage", `{"state":{}}`))
	v, err := b.Get("auth-storage")
	require.NoError(t, err)
	require.Equal(t, `{"state":{}}`, v)
}

func TestFile_Subscribe(t *testing.T) {
	dir := t.TempDir()
	writer, err := storage.NewFile(dir)
	require.NoError(t, err)
	watcher, err := storage.NewFile(dir)
	require.NoError(t, err)

	log := &changeLog{}
	cancel, err := watcher.Subscribe(log.record)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, writer.Set("auth-storage", "{}"))
	require.Eventually(t, func() bool { return log.contains("auth-storage") }, 2*time.Second, 10*time.Millisecond)

	for _, k := range log.snapshot() {
		require.NotContains(t, k, ".tmp-", "temp files are not reported")
	}

	n := log.len()
	require.NoError(t, writer.Remove("auth-storage"))
	require.Eventually(t, func() bool { return log.len() > n }, 2*time.Second, 10*time.Millisecond)
}
