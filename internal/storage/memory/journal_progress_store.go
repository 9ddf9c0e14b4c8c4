package memory

import (
	"context"
	"sync"

	"solana-token-manager/internal/storage"
)

// JournalProgressStore is an in-memory implementation of storage.JournalProgressStore.
type JournalProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.JournalProgress // keyed by program_id
}

// NewJournalProgressStore creates a new in-memory journal progress store.
func NewJournalProgressStore() *JournalProgressStore {
	return &JournalProgressStore{
		progress: make(map[string]storage.JournalProgress),
	}
}

// GetLastProcessed returns the checkpoint of a program.
func (s *JournalProgressStore) GetLastProcessed(_ context.Context, programID string) (*storage.JournalProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[programID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetLastProcessed saves the checkpoint unless a newer one is stored.
func (s *JournalProgressStore) SetLastProcessed(_ context.Context, progress *storage.JournalProgress) error {
	if progress == nil || progress.ProgramID == "" || progress.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.progress[progress.ProgramID]; ok && current.Slot > progress.Slot {
		return nil
	}
	s.progress[progress.ProgramID] = *progress
	return nil
}

var _ storage.JournalProgressStore = (*JournalProgressStore)(nil)
