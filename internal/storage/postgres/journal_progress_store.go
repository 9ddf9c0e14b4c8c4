package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-manager/internal/storage"
)

// JournalProgressStore is a PostgreSQL implementation of storage.JournalProgressStore.
// One row per program in journal_progress.
type JournalProgressStore struct {
	pool *Pool
}

// NewJournalProgressStore creates a new PostgreSQL journal progress store.
func NewJournalProgressStore(pool *Pool) *JournalProgressStore {
	return &JournalProgressStore{pool: pool}
}

var _ storage.JournalProgressStore = (*JournalProgressStore)(nil)

// GetLastProcessed returns the checkpoint of a program.
func (s *JournalProgressStore) GetLastProcessed(ctx context.Context, programID string) (*storage.JournalProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT program_id, slot, signature
		FROM journal_progress
		WHERE program_id = $1
	`, programID)

	var progress storage.JournalProgress
	err := row.Scan(&progress.ProgramID, &progress.Slot, &progress.Signature)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get journal progress: %w", err)
	}

	return &progress, nil
}

// SetLastProcessed upserts the checkpoint; an older slot never overwrites a newer one.
func (s *JournalProgressStore) SetLastProcessed(ctx context.Context, progress *storage.JournalProgress) error {
	if progress == nil || progress.ProgramID == "" || progress.Signature == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_progress (program_id, slot, signature, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (program_id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
		WHERE journal_progress.slot <= EXCLUDED.slot
	`, progress.ProgramID, progress.Slot, progress.Signature)
	if err != nil {
		return fmt.Errorf("set journal progress: %w", err)
	}
	return nil
}
