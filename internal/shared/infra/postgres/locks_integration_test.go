//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemarket/backoffice/internal/services/reconcile"
)

// resetLock restores the seeded lock row to its released state; truncating
// bootstrap_lock would lose the seed.
func resetLock(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		"UPDATE bootstrap_lock SET locked = FALSE, owner_id = NULL, locked_at = NULL WHERE lock_name = $1",
		reconcile.LockName)
	require.NoError(t, err)
}

func TestLockAcquireRelease(t *testing.T) {
	resetLock(t)
	store := NewLockStore(testPool, testLogger())
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, reconcile.LockName, "owner-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second caller fails fast while held.
	acquired, err = store.Acquire(ctx, reconcile.LockName, "owner-2")
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, store.Release(ctx, reconcile.LockName, "owner-1"))

	acquired, err = store.Acquire(ctx, reconcile.LockName, "owner-2")
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, store.Release(ctx, reconcile.LockName, "owner-2"))
}

func TestLockRelease_WrongOwnerIsNoOp(t *testing.T) {
	resetLock(t)
	store := NewLockStore(testPool, testLogger())
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, reconcile.LockName, "owner-1")
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, store.Release(ctx, reconcile.LockName, "intruder"))

	// Still held by owner-1.
	acquired, err = store.Acquire(ctx, reconcile.LockName, "owner-2")
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, store.Release(ctx, reconcile.LockName, "owner-1"))
}

func TestLockAcquire_UnknownLockName(t *testing.T) {
	store := NewLockStore(testPool, testLogger())

	acquired, err := store.Acquire(context.Background(), "no_such_lock", "owner-1")
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestLockStampsLockedAt(t *testing.T) {
	resetLock(t)
	store := NewLockStore(testPool, testLogger())
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, reconcile.LockName, "owner-1")
	require.NoError(t, err)
	require.True(t, acquired)

	var ownerID *string
	var lockedAtNull bool
	err = testPool.QueryRow(ctx,
		"SELECT owner_id, locked_at IS NULL FROM bootstrap_lock WHERE lock_name = $1",
		reconcile.LockName,
	).Scan(&ownerID, &lockedAtNull)
	require.NoError(t, err)
	require.NotNil(t, ownerID)
	assert.Equal(t, "owner-1", *ownerID)
	assert.False(t, lockedAtNull)

	require.NoError(t, store.Release(ctx, reconcile.LockName, "owner-1"))
}
