package clickhouse

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

func TestSupplySnapshotStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSupplySnapshotStore(conn)
	ctx := context.Background()

	snaps := []*domain.SupplySnapshot{
		{Mint: "mintA", Slot: 30, Signature: "sig3", Supply: 700_000_000, Decimals: 9, TakenAt: 1700000003000},
		{Mint: "mintA", Slot: 10, Signature: "sig1", Supply: 0, Decimals: 9, TakenAt: 1700000001000},
		{Mint: "mintA", Slot: 20, Signature: "sig2", Supply: math.MaxUint64, Decimals: 9, TakenAt: 1700000002000},
		{Mint: "mintB", Slot: 5, Signature: "sig0", Supply: 1, Decimals: 0, TakenAt: 1700000000000},
	}
	for _, s := range snaps {
		require.NoError(t, store.Insert(ctx, s))
	}

	got, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(10), got[0].Slot)
	assert.Equal(t, uint64(math.MaxUint64), got[1].Supply)
	assert.Equal(t, 9, got[2].Decimals)
	assert.Equal(t, int64(1700000003000), got[2].TakenAt)

	latest, err := store.Latest(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, "sig3", latest.Signature)
	assert.Equal(t, uint64(700_000_000), latest.Supply)
}

func TestSupplySnapshotStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSupplySnapshotStore(conn)
	ctx := context.Background()

	snap := &domain.SupplySnapshot{Mint: "mintA", Slot: 1, Signature: "sig1", Supply: 5, Decimals: 9}
	require.NoError(t, store.Insert(ctx, snap))

	err := store.Insert(ctx, snap)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSupplySnapshotStore_NotFoundAndInvalid(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSupplySnapshotStore(conn)
	ctx := context.Background()

	_, err := store.Latest(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.GetByMint(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	err = store.Insert(ctx, &domain.SupplySnapshot{Mint: "mintA"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
