// Package metrics summarizes journaled operations: counts, failure codes and
// quantities per instruction over a slot range.
package metrics

import (
	"context"
	"errors"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// ErrNoOperations is returned when no operations fall in the requested range.
var ErrNoOperations = errors.New("no operations available for aggregation")

// KindStats aggregates one instruction kind.
type KindStats struct {
	Kind      domain.OperationKind
	Count     int
	Succeeded int
	Failed    int
	Quantity  decimal.Decimal // successful operations only
}

// ErrorCount is how often an error was seen.
type ErrorCount struct {
	Error string
	Count int
}

// Summary aggregates a program's operations over a slot range.
type Summary struct {
	ProgramID    string
	FromSlot     int64 // first slot with an operation
	ToSlot       int64 // last slot with an operation
	Transactions int
	Operations   int
	Kinds        []KindStats  // in instruction order
	Errors       []ErrorCount // most frequent first
	NetSupply    decimal.Decimal
	FailureRate  float64
}

// Aggregator computes summaries from the operation store.
type Aggregator struct {
	operations storage.OperationStore
}

// NewAggregator creates a new operation aggregator.
func NewAggregator(operations storage.OperationStore) *Aggregator {
	return &Aggregator{operations: operations}
}

// Summarize loads the operations of programID in [fromSlot, toSlot] and
// aggregates them. Returns ErrNoOperations if there are none.
func (a *Aggregator) Summarize(ctx context.Context, programID string, fromSlot, toSlot int64) (*Summary, error) {
	ops, err := a.operations.GetBySlotRange(ctx, programID, fromSlot, toSlot)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	s := computeSummary(ops)
	s.ProgramID = programID
	return s, nil
}

var kindOrder = []domain.OperationKind{
	domain.OperationInitToken,
	domain.OperationMintTokens,
	domain.OperationTransferTokens,
	domain.OperationBurnTokens,
}

// computeSummary aggregates ops, which must be sorted by slot.
func computeSummary(ops []*domain.Operation) *Summary {
	s := &Summary{
		FromSlot:   ops[0].Slot,
		ToSlot:     ops[len(ops)-1].Slot,
		Operations: len(ops),
		NetSupply:  decimal.Zero,
	}

	byKind := make(map[domain.OperationKind]*KindStats, len(kindOrder))
	for _, k := range kindOrder {
		byKind[k] = &KindStats{Kind: k, Quantity: decimal.Zero}
	}
	errorCounts := make(map[string]int)
	signatures := make(map[string]struct{})
	failed := 0

	for _, op := range ops {
		signatures[op.Signature] = struct{}{}
		ks, ok := byKind[op.Kind]
		if !ok {
			continue
		}
		ks.Count++
		if !op.Success {
			ks.Failed++
			failed++
			if op.Error != nil {
				errorCounts[*op.Error]++
			}
			continue
		}
		ks.Succeeded++
		q := decimal.NewFromBigInt(new(big.Int).SetUint64(op.Quantity), 0)
		ks.Quantity = ks.Quantity.Add(q)
		switch op.Kind {
		case domain.OperationMintTokens:
			s.NetSupply = s.NetSupply.Add(q)
		case domain.OperationBurnTokens:
			s.NetSupply = s.NetSupply.Sub(q)
		}
	}

	s.Transactions = len(signatures)
	s.FailureRate = float64(failed) / float64(len(ops))
	for _, k := range kindOrder {
		s.Kinds = append(s.Kinds, *byKind[k])
	}
	for msg, n := range errorCounts {
		s.Errors = append(s.Errors, ErrorCount{Error: msg, Count: n})
	}
	sort.Slice(s.Errors, func(i, j int) bool {
		if s.Errors[i].Count != s.Errors[j].Count {
			return s.Errors[i].Count > s.Errors[j].Count
		}
		return s.Errors[i].Error < s.Errors[j].Error
	})
	return s
}
