package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaborne-data/restmed"
)

func newTestLockRegistry(ttl time.Duration) (*MemoryLockRegistry, *time.Time) {
	registry := NewMemoryLockRegistry(ttl)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	registry.nowFunc = func() time.Time { return now }
	return registry, &now
}

func TestLockAcquireAndGet(t *testing.T) {
	registry, _ := newTestLockRegistry(time.Minute)
	ctx := context.Background()

	lock, err := registry.Acquire(ctx, "employee", "row-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", lock.Owner)
	assert.NotEmpty(t, lock.Token)

	got, ok := registry.Get("employee", "row-1")
	require.True(t, ok)
	assert.Equal(t, lock.Token, got.Token)
}

func TestLockHeldByOtherOwner(t *testing.T) {
	registry, _ := newTestLockRegistry(time.Minute)
	ctx := context.Background()

	_, err := registry.Acquire(ctx, "employee", "row-1", "alice")
	require.NoError(t, err)

	_, err = registry.Acquire(ctx, "employee", "row-1", "bob")
	require.Error(t, err)
	appErr := restmed.AsApplicationError(err)
	assert.Equal(t, restmed.ErrIDLockHeld, appErr.ID)
	assert.Equal(t, 423, appErr.Status)
}

func TestLockReacquireByOwnerRenews(t *testing.T) {
	registry, now := newTestLockRegistry(time.Minute)
	ctx := context.Background()

	first, err := registry.Acquire(ctx, "employee", "row-1", "alice")
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	second, err := registry.Acquire(ctx, "employee", "row-1", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

func TestLockExpiresAfterTTL(t *testing.T) {
	registry, now := newTestLockRegistry(time.Minute)
	ctx := context.Background()

	_, err := registry.Acquire(ctx, "employee", "row-1", "alice")
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	_, ok := registry.Get("employee", "row-1")
	assert.False(t, ok)

	// An expired lock no longer blocks new owners.
	_, err = registry.Acquire(ctx, "employee", "row-1", "bob")
	require.NoError(t, err)
}

func TestLockReleaseRequiresToken(t *testing.T) {
	registry, _ := newTestLockRegistry(time.Minute)
	ctx := context.Background()

	lock, err := registry.Acquire(ctx, "employee", "row-1", "alice")
	require.NoError(t, err)

	err = registry.Release(ctx, "employee", "row-1", "wrong-token")
	require.Error(t, err)
	assert.Equal(t, restmed.ErrIDAuthorization, restmed.AsApplicationError(err).ID)

	require.NoError(t, registry.Release(ctx, "employee", "row-1", lock.Token))
	_, ok := registry.Get("employee", "row-1")
	assert.False(t, ok)

	// Releasing an absent lock is idempotent.
	assert.NoError(t, registry.Release(ctx, "employee", "row-1", lock.Token))
}

func TestLockList(t *testing.T) {
	registry, _ := newTestLockRegistry(time.Minute)
	ctx := context.Background()

	_, err := registry.Acquire(ctx, "employee", "row-2", "alice")
	require.NoError(t, err)
	_, err = registry.Acquire(ctx, "employee", "row-1", "bob")
	require.NoError(t, err)
	_, err = registry.Acquire(ctx, "department", "row-9", "carol")
	require.NoError(t, err)

	locks := registry.List("employee")
	require.Len(t, locks, 2)
	assert.Equal(t, "row-1", locks[0].ItemID)
	assert.Equal(t, "row-2", locks[1].ItemID)
}
