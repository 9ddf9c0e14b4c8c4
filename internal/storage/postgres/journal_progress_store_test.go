package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-manager/internal/storage"
)

func TestJournalProgressStore_SetAndGetLastProcessed(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalProgressStore(pool)

	_, err := store.GetLastProcessed(ctx, "prog")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.JournalProgress{ProgramID: "prog", Slot: 100, Signature: "sig100"}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.JournalProgress{ProgramID: "prog", Slot: 200, Signature: "sig200"}))
	// an older checkpoint does not move progress back
	require.NoError(t, store.SetLastProcessed(ctx, &storage.JournalProgress{ProgramID: "prog", Slot: 150, Signature: "sig150"}))

	got, err := store.GetLastProcessed(ctx, "prog")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Slot)
	assert.Equal(t, "sig200", got.Signature)
}

func TestJournalProgressStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewJournalProgressStore(pool)
	err := store.SetLastProcessed(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
