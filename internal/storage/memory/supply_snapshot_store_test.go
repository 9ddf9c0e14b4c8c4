package memory

import (
	"context"
	"errors"
	"testing"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

func TestSupplySnapshotStore(t *testing.T) {
	store := NewSupplySnapshotStore()
	ctx := context.Background()

	if _, err := store.Latest(ctx, "mint1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	snaps := []*domain.SupplySnapshot{
		{Mint: "mint1", Slot: 30, Signature: "sig3", Supply: 700, Decimals: 9},
		{Mint: "mint1", Slot: 10, Signature: "sig1", Supply: 0, Decimals: 9},
		{Mint: "mint1", Slot: 20, Signature: "sig2", Supply: 1000, Decimals: 9},
		{Mint: "mint2", Slot: 5, Signature: "sig0", Supply: 1, Decimals: 0},
	}
	for _, s := range snaps {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := store.Insert(ctx, snaps[0]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.SupplySnapshot{Mint: "mint1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	got, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	for i, want := range []int64{10, 20, 30} {
		if got[i].Slot != want {
			t.Errorf("snapshot %d slot = %d, want %d", i, got[i].Slot, want)
		}
	}

	latest, err := store.Latest(ctx, "mint1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Supply != 700 {
		t.Errorf("Latest supply = %d, want 700", latest.Supply)
	}
}
