package storage_test

import (
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/stretchr/testify/require"
)

// changeLog collects deliveries from a ChangeSource.
type changeLog struct {
	mu   sync.Mutex
	keys []string
}

func (c *changeLog) record(change storage.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, change.Key)
}

func (c *changeLog) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (c *changeLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

func (c *changeLog) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func TestMemory_GetSetRemove(t *testing.T) {
	m := storage.NewMemory()

	_, err := m.Get("token")
	require.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	require.NoError(t, m.Set("token", "abc"))
	v, err := m.Get("token")
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	require.NoError(t, m.Remove("token"))
	require.NoError(t, m.Remove("token"))
	_, err = m.Get("token")
	require.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	require.ErrorIs(t, m.Set("../escape", "x"), apperrors.ErrInvalidKey)
}

func TestMemory_Subscribe(t *testing.T) {
	m := storage.NewMemory()
	first, second := &changeLog{}, &changeLog{}

	cancelFirst, err := m.Subscribe(first.record)
	require.NoError(t, err)
	cancelSecond, err := m.Subscribe(second.record)
	require.NoError(t, err)
	defer cancelSecond()

	require.NoError(t, m.Set("auth-storage", "{}"))
	require.Eventually(t, func() bool { return first.contains("auth-storage") && second.contains("auth-storage") },
		time.Second, 5*time.Millisecond)

	cancelFirst()
	cancelFirst()
	before := first.len()
	require.NoError(t, m.Remove("auth-storage"))
	require.Eventually(t, func() bool { return second.len() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, before, first.len())
}

func TestMemory_RemoveMissingKeyIsSilent(t *testing.T) {
	m := storage.NewMemory()
	log := &changeLog{}
	cancel, err := m.Subscribe(log.record)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, m.Remove("token"))
	require.Never(t, func() bool { return log.len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
