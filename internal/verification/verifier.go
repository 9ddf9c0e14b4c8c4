// Package verification reconciles the journal against the supply the chain
// reported: every snapshot must equal the journaled mints minus burns up to
// its slot.
package verification

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/storage"
)

// SnapshotDivergence is a snapshot whose supply disagrees with the journal.
type SnapshotDivergence struct {
	Slot      int64
	Signature string
	Expected  decimal.Decimal // journaled mints minus burns through Slot
	Actual    uint64          // supply read from the mint
}

// Report contains the result of verifying every snapshot of a mint.
type Report struct {
	Mint             string
	Operations       int // successful supply-changing operations considered
	Snapshots        int
	MatchedSnapshots int
	Divergences      []SnapshotDivergence

	Minted decimal.Decimal // total minted over the journal
	Burned decimal.Decimal // total burned over the journal
}

// Consistent reports whether every snapshot matched.
func (r *Report) Consistent() bool {
	return len(r.Divergences) == 0
}

// Verifier checks supply snapshots against journaled operations.
type Verifier struct {
	operations storage.OperationStore
	supply     storage.SupplySnapshotStore
}

// NewVerifier creates a new Verifier.
func NewVerifier(operations storage.OperationStore, supply storage.SupplySnapshotStore) *Verifier {
	return &Verifier{operations: operations, supply: supply}
}

// VerifySupply replays the program's operations in slot order and compares
// the running supply with each snapshot of mint. A divergence means the
// journal misses an operation or a snapshot was read after a later one.
func (v *Verifier) VerifySupply(ctx context.Context, programID, mint string) (*Report, error) {
	ops, err := v.operations.GetBySlotRange(ctx, programID, 0, math.MaxInt64)
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	snaps, err := v.supply.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	report := &Report{
		Mint:      mint,
		Snapshots: len(snaps),
		Minted:    decimal.Zero,
		Burned:    decimal.Zero,
	}

	i := 0
	for _, snap := range snaps {
		for ; i < len(ops) && ops[i].Slot <= snap.Slot; i++ {
			report.apply(ops[i])
		}
		expected := report.Minted.Sub(report.Burned)
		if expected.Equal(units(snap.Supply)) {
			report.MatchedSnapshots++
			continue
		}
		report.Divergences = append(report.Divergences, SnapshotDivergence{
			Slot:      snap.Slot,
			Signature: snap.Signature,
			Expected:  expected,
			Actual:    snap.Supply,
		})
	}
	for ; i < len(ops); i++ {
		report.apply(ops[i])
	}

	return report, nil
}

func (r *Report) apply(op *domain.Operation) {
	if !op.Success || op.Mint != r.Mint {
		return
	}
	switch op.Kind {
	case domain.OperationMintTokens:
		r.Minted = r.Minted.Add(units(op.Quantity))
	case domain.OperationBurnTokens:
		r.Burned = r.Burned.Add(units(op.Quantity))
	default:
		return
	}
	r.Operations++
}

// units converts base units to an exact decimal.
func units(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
