package clickhouse

import (
	"context"
	"fmt"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// SupplySnapshotStore implements storage.SupplySnapshotStore using ClickHouse.
type SupplySnapshotStore struct {
	conn *Conn
}

// NewSupplySnapshotStore creates a new SupplySnapshotStore.
func NewSupplySnapshotStore(conn *Conn) *SupplySnapshotStore {
	return &SupplySnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SupplySnapshotStore = (*SupplySnapshotStore)(nil)

// Insert adds a snapshot. Returns ErrDuplicateKey if (mint, signature) exists.
func (s *SupplySnapshotStore) Insert(ctx context.Context, snap *domain.SupplySnapshot) error {
	if snap == nil || snap.Mint == "" || snap.Signature == "" || snap.Slot < 0 || snap.Decimals < 0 || snap.Decimals > 255 {
		return storage.ErrInvalidInput
	}

	// MergeTree doesn't enforce uniqueness
	exists, err := s.exists(ctx, snap.Mint, snap.Signature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO supply_snapshots (mint, slot, signature, supply, decimals, taken_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.Mint,
		uint64(snap.Slot),
		snap.Signature,
		snap.Supply,
		uint8(snap.Decimals),
		uint64(snap.TakenAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert supply snapshot: %w", err)
	}
	return nil
}

// GetByMint retrieves all snapshots for a mint, ordered by slot ASC.
func (s *SupplySnapshotStore) GetByMint(ctx context.Context, mint string) ([]*domain.SupplySnapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, slot, signature, supply, decimals, taken_at
		FROM supply_snapshots
		WHERE mint = ?
		ORDER BY slot ASC, signature ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query supply snapshots: %w", err)
	}
	defer rows.Close()

	return scanSupplySnapshots(rows)
}

// Latest retrieves the snapshot with the highest slot for a mint.
func (s *SupplySnapshotStore) Latest(ctx context.Context, mint string) (*domain.SupplySnapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, slot, signature, supply, decimals, taken_at
		FROM supply_snapshots
		WHERE mint = ?
		ORDER BY slot DESC, taken_at DESC
		LIMIT 1
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query latest supply snapshot: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSupplySnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[0], nil
}

func (s *SupplySnapshotStore) exists(ctx context.Context, mint, signature string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM supply_snapshots WHERE mint = ? AND signature = ?
	`, mint, signature).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSupplySnapshots(rows chRows) ([]*domain.SupplySnapshot, error) {
	var snaps []*domain.SupplySnapshot

	for rows.Next() {
		var (
			snap     domain.SupplySnapshot
			slot     uint64
			decimals uint8
			takenAt  uint64
		)
		err := rows.Scan(&snap.Mint, &slot, &snap.Signature, &snap.Supply, &decimals, &takenAt)
		if err != nil {
			return nil, fmt.Errorf("scan supply snapshot row: %w", err)
		}
		snap.Slot = int64(slot)
		snap.Decimals = int(decimals)
		snap.TakenAt = int64(takenAt)
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supply snapshot rows: %w", err)
	}

	return snaps, nil
}
