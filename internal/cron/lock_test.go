package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) LockKey(scope, id string) string {
	return "dt:lock:" + scope + ":" + id
}

func (m *memoryLockStore) ReleaseLock(_ context.Context, key, owner string) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusivePerEnv(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "production", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "production", time.Minute)
	require.NoError(t, err)
	staging, err := NewRedisLock(store, "staging", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, second.Release(context.Background()))
	assert.Contains(t, store.values, "dt:lock:cron:production")

	ok, err = staging.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, first.Release(context.Background()))
	assert.NotContains(t, store.values, "dt:lock:cron:production")
	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockLeavesTakenOverKey(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	lock, err := NewRedisLock(store, "", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	store.values["dt:lock:cron:local"] = "another-replica"
	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "another-replica", store.values["dt:lock:cron:local"])

	_, err = NewRedisLock(nil, "local", time.Minute)
	require.Error(t, err)
}
