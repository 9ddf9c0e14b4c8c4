package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// OperationStore implements storage.OperationStore using PostgreSQL.
type OperationStore struct {
	pool *Pool
}

// NewOperationStore creates a new OperationStore.
func NewOperationStore(pool *Pool) *OperationStore {
	return &OperationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OperationStore = (*OperationStore)(nil)

const operationColumns = `
	operation_id, signature, op_index, slot, block_time, program_id, mint,
	kind, quantity::TEXT, success, error, created_at
`

// Insert adds a new operation. Returns ErrDuplicateKey if operation_id or
// (signature, op_index) exists.
func (s *OperationStore) Insert(ctx context.Context, op *domain.Operation) error {
	if op == nil || op.OperationID == "" || op.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO operations (
			operation_id, signature, op_index, slot, block_time, program_id, mint,
			kind, quantity, success, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		op.OperationID,
		op.Signature,
		op.Index,
		op.Slot,
		op.BlockTime,
		op.ProgramID,
		op.Mint,
		string(op.Kind),
		numeric(op.Quantity).String(),
		op.Success,
		op.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// GetByID retrieves an operation by its ID. Returns ErrNotFound if not exists.
func (s *OperationStore) GetByID(ctx context.Context, operationID string) (*domain.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE operation_id = $1`

	op, err := scanOperation(s.pool.QueryRow(ctx, query, operationID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get operation by id: %w", err)
	}
	return op, nil
}

// GetBySignature retrieves the operations of one transaction, ordered by index ASC.
func (s *OperationStore) GetBySignature(ctx context.Context, signature string) ([]*domain.Operation, error) {
	query := `SELECT ` + operationColumns + `
		FROM operations
		WHERE signature = $1
		ORDER BY op_index ASC
	`

	rows, err := s.pool.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("get operations by signature: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// GetBySlotRange retrieves operations of a program within [start, end] (inclusive).
func (s *OperationStore) GetBySlotRange(ctx context.Context, programID string, start, end int64) ([]*domain.Operation, error) {
	query := `SELECT ` + operationColumns + `
		FROM operations
		WHERE program_id = $1 AND slot >= $2 AND slot <= $3
		ORDER BY slot ASC, signature ASC, op_index ASC
	`

	rows, err := s.pool.Query(ctx, query, programID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get operations by slot range: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// Latest retrieves the operation with the highest slot for a program.
func (s *OperationStore) Latest(ctx context.Context, programID string) (*domain.Operation, error) {
	query := `SELECT ` + operationColumns + `
		FROM operations
		WHERE program_id = $1
		ORDER BY slot DESC, op_index DESC
		LIMIT 1
	`

	op, err := scanOperation(s.pool.QueryRow(ctx, query, programID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest operation: %w", err)
	}
	return op, nil
}

// scanOperation scans a single row into Operation.
func scanOperation(row pgx.Row) (*domain.Operation, error) {
	var (
		op   domain.Operation
		kind string
		qty  string
	)

	err := row.Scan(
		&op.OperationID,
		&op.Signature,
		&op.Index,
		&op.Slot,
		&op.BlockTime,
		&op.ProgramID,
		&op.Mint,
		&kind,
		&qty,
		&op.Success,
		&op.Error,
		&op.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Kind = domain.OperationKind(kind)
	if op.Quantity, err = quantity(qty); err != nil {
		return nil, err
	}
	return &op, nil
}

// scanOperations scans multiple rows into a slice of Operation.
func scanOperations(rows pgx.Rows) ([]*domain.Operation, error) {
	var ops []*domain.Operation

	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation rows: %w", err)
	}

	return ops, nil
}
