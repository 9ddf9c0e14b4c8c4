package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// OperationStore is an in-memory implementation of storage.OperationStore.
type OperationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Operation // keyed by operation_id
}

// NewOperationStore creates a new in-memory operation store.
func NewOperationStore() *OperationStore {
	return &OperationStore{
		data: make(map[string]*domain.Operation),
	}
}

// Insert adds a new operation. Returns ErrDuplicateKey if operation_id exists.
func (s *OperationStore) Insert(_ context.Context, op *domain.Operation) error {
	if op == nil || op.OperationID == "" || op.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[op.OperationID]; exists {
		return storage.ErrDuplicateKey
	}

	opCopy := copyOperation(op)
	s.data[op.OperationID] = opCopy
	return nil
}

// GetByID retrieves an operation by its ID. Returns ErrNotFound if not exists.
func (s *OperationStore) GetByID(_ context.Context, operationID string) (*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, exists := s.data[operationID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyOperation(op), nil
}

// GetBySignature retrieves the operations of one transaction, ordered by index ASC.
func (s *OperationStore) GetBySignature(_ context.Context, signature string) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, op := range s.data {
		if op.Signature == signature {
			result = append(result, copyOperation(op))
		}
	}
	sortOperations(result)
	return result, nil
}

// GetBySlotRange retrieves operations of a program within [start, end] (inclusive).
func (s *OperationStore) GetBySlotRange(_ context.Context, programID string, start, end int64) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, op := range s.data {
		if op.ProgramID == programID && op.Slot >= start && op.Slot <= end {
			result = append(result, copyOperation(op))
		}
	}
	sortOperations(result)
	return result, nil
}

// Latest retrieves the operation with the highest slot for a program.
func (s *OperationStore) Latest(_ context.Context, programID string) (*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Operation
	for _, op := range s.data {
		if op.ProgramID != programID {
			continue
		}
		if latest == nil || op.Slot > latest.Slot || (op.Slot == latest.Slot && op.Index > latest.Index) {
			latest = op
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return copyOperation(latest), nil
}

func copyOperation(op *domain.Operation) *domain.Operation {
	c := *op
	if op.Error != nil {
		e := *op.Error
		c.Error = &e
	}
	return &c
}

func sortOperations(ops []*domain.Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Slot != ops[j].Slot {
			return ops[i].Slot < ops[j].Slot
		}
		if ops[i].Signature != ops[j].Signature {
			return ops[i].Signature < ops[j].Signature
		}
		return ops[i].Index < ops[j].Index
	})
}

var _ storage.OperationStore = (*OperationStore)(nil)
