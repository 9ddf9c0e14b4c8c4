package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

func TestTokenMetadataStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	metadata := &domain.TokenMetadata{
		Mint:            "MetadataMint1",
		ProgramID:       "53Tt3YDUVYtWBQEyWZdHebdDFebfhjt9fMAwG6D3uAEz",
		Name:            "My The first token",
		Symbol:          "TFT",
		URI:             "https://arweave.net/7UtxcnH13Y1uBCwCnkL6APKsge0hAgacQFl-zFW9NlI",
		Decimals:        9,
		UpdateAuthority: "MetadataMint1",
		Signature:       "init-sig",
		Slot:            42,
		FetchedAt:       1700000000000,
	}

	require.NoError(t, store.Insert(ctx, metadata))

	retrieved, err := store.GetByMint(ctx, "MetadataMint1")
	require.NoError(t, err)

	assert.Equal(t, metadata.Name, retrieved.Name)
	assert.Equal(t, metadata.Symbol, retrieved.Symbol)
	assert.Equal(t, metadata.URI, retrieved.URI)
	assert.Equal(t, metadata.Decimals, retrieved.Decimals)
	assert.Equal(t, metadata.UpdateAuthority, retrieved.UpdateAuthority)
	assert.Equal(t, metadata.Slot, retrieved.Slot)
	assert.Equal(t, metadata.FetchedAt, retrieved.FetchedAt)
	assert.NotZero(t, retrieved.CreatedAt)
}

func TestTokenMetadataStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	metadata := &domain.TokenMetadata{Mint: "MetadataMintDup", Name: "Test Token", Symbol: "TST", Decimals: 9}
	require.NoError(t, store.Insert(ctx, metadata))

	err := store.Insert(ctx, metadata)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenMetadataStore_GetByMintNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenMetadataStore(pool)
	_, err := store.GetByMint(context.Background(), "NonExistentMint")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
