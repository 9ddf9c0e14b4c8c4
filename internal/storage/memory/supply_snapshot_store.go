package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// SupplySnapshotStore is an in-memory implementation of storage.SupplySnapshotStore.
type SupplySnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.SupplySnapshot // keyed by mint
}

// NewSupplySnapshotStore creates a new in-memory supply snapshot store.
func NewSupplySnapshotStore() *SupplySnapshotStore {
	return &SupplySnapshotStore{
		data: make(map[string][]*domain.SupplySnapshot),
	}
}

// Insert adds a snapshot. Returns ErrDuplicateKey if (mint, signature) exists.
func (s *SupplySnapshotStore) Insert(_ context.Context, snap *domain.SupplySnapshot) error {
	if snap == nil || snap.Mint == "" || snap.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data[snap.Mint] {
		if existing.Signature == snap.Signature {
			return storage.ErrDuplicateKey
		}
	}

	snapCopy := *snap
	s.data[snap.Mint] = append(s.data[snap.Mint], &snapCopy)
	return nil
}

// GetByMint retrieves all snapshots for a mint, ordered by slot ASC.
func (s *SupplySnapshotStore) GetByMint(_ context.Context, mint string) ([]*domain.SupplySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SupplySnapshot, 0, len(s.data[mint]))
	for _, snap := range s.data[mint] {
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Slot < result[j].Slot
	})
	return result, nil
}

// Latest retrieves the snapshot with the highest slot for a mint.
func (s *SupplySnapshotStore) Latest(ctx context.Context, mint string) (*domain.SupplySnapshot, error) {
	snaps, err := s.GetByMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[len(snaps)-1], nil
}

var _ storage.SupplySnapshotStore = (*SupplySnapshotStore)(nil)
