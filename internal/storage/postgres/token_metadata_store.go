package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Insert adds new metadata. Returns ErrDuplicateKey if mint exists.
func (s *TokenMetadataStore) Insert(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (
			mint, program_id, name, symbol, uri, decimals, update_authority,
			signature, slot, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		m.Mint,
		m.ProgramID,
		m.Name,
		m.Symbol,
		m.URI,
		m.Decimals,
		m.UpdateAuthority,
		m.Signature,
		m.Slot,
		m.FetchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `
		SELECT mint, program_id, name, symbol, uri, decimals, update_authority,
			signature, slot, fetched_at, created_at
		FROM token_metadata
		WHERE mint = $1
	`

	m, err := scanTokenMetadata(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata by mint: %w", err)
	}
	return m, nil
}

// scanTokenMetadata scans a single row into TokenMetadata.
func scanTokenMetadata(row pgx.Row) (*domain.TokenMetadata, error) {
	var m domain.TokenMetadata

	err := row.Scan(
		&m.Mint,
		&m.ProgramID,
		&m.Name,
		&m.Symbol,
		&m.URI,
		&m.Decimals,
		&m.UpdateAuthority,
		&m.Signature,
		&m.Slot,
		&m.FetchedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
