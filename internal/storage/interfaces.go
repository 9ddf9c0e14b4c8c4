package storage

import (
	"context"

	"solana-token-manager/internal/domain"
)

// OperationStore provides access to operations storage.
type OperationStore interface {
	// Insert adds a new operation. Returns ErrDuplicateKey if operation_id exists.
	Insert(ctx context.Context, op *domain.Operation) error

	// GetByID retrieves an operation by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, operationID string) (*domain.Operation, error)

	// GetBySignature retrieves the operations of one transaction, ordered by index ASC.
	GetBySignature(ctx context.Context, signature string) ([]*domain.Operation, error)

	// GetBySlotRange retrieves operations of a program within [start, end] (inclusive),
	// ordered by slot ASC, index ASC.
	GetBySlotRange(ctx context.Context, programID string, start, end int64) ([]*domain.Operation, error)

	// Latest retrieves the operation with the highest slot for a program.
	// Returns ErrNotFound if the program has no operations.
	Latest(ctx context.Context, programID string) (*domain.Operation, error)
}

// TokenMetadataStore provides access to token_metadata storage.
type TokenMetadataStore interface {
	// Insert adds new metadata. Returns ErrDuplicateKey if mint exists.
	Insert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// SupplySnapshotStore provides access to supply_snapshots storage.
type SupplySnapshotStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if (mint, signature) exists.
	Insert(ctx context.Context, s *domain.SupplySnapshot) error

	// GetByMint retrieves all snapshots for a mint, ordered by slot ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.SupplySnapshot, error)

	// Latest retrieves the snapshot with the highest slot for a mint.
	// Returns ErrNotFound if the mint has no snapshots.
	Latest(ctx context.Context, mint string) (*domain.SupplySnapshot, error)
}
