package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"solana-token-manager/internal/address"
)

// InvokeContext is handed to a program for the duration of one instruction.
type InvokeContext struct {
	ctx       context.Context
	rt        *Runtime
	logs      *logCollector
	stack     []common.PublicKey
	programID common.PublicKey
	accounts  []*AccountInfo
	pre       map[common.PublicKey]accountState
}

// ProgramID returns the executing program.
func (ic *InvokeContext) ProgramID() common.PublicKey {
	return ic.programID
}

// Accounts returns the instruction accounts in order.
func (ic *InvokeContext) Accounts() []*AccountInfo {
	return ic.accounts
}

// Account returns the i-th instruction account.
func (ic *InvokeContext) Account(i int) (*AccountInfo, error) {
	if i < 0 || i >= len(ic.accounts) {
		return nil, ErrNotEnoughAccountKeys
	}
	return ic.accounts[i], nil
}

// Context returns the context of the enclosing transaction.
func (ic *InvokeContext) Context() context.Context {
	return ic.ctx
}

// Rent returns the rent parameters.
func (ic *InvokeContext) Rent() Rent {
	return ic.rt.rent
}

// Depth returns the height of the instruction stack, 1 for top-level instructions.
func (ic *InvokeContext) Depth() int {
	return len(ic.stack) + 1
}

// Log appends a "Program log:" line.
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.logs.add("Program log: "+format, args...)
}

// Invoke calls another program with the caller's privileges.
func (ic *InvokeContext) Invoke(ix types.Instruction) error {
	return ic.InvokeSigned(ix)
}

// InvokeSigned calls another program. Each element of signerSeeds derives a
// program address of the caller that signs the inner instruction.
func (ic *InvokeContext) InvokeSigned(ix types.Instruction, signerSeeds ...[][]byte) error {
	// Changes made so far must be legal before the callee observes them.
	if err := verify(ic.programID, ic.pre, ic.accounts); err != nil {
		return err
	}

	pdaSigners := make([]common.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := address.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		pdaSigners = append(pdaSigners, pda)
	}

	if ic.find(ix.ProgramID) == nil {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, ix.ProgramID.ToBase58())
	}

	infos := make([]*AccountInfo, 0, len(ix.Accounts))
	merged := make(map[common.PublicKey]*AccountInfo, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		caller := ic.find(meta.PubKey)
		if caller == nil {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.PubKey.ToBase58())
		}
		if meta.IsSigner && !caller.IsSigner && !slices.Contains(pdaSigners, meta.PubKey) {
			return fmt.Errorf("%w: signer %s", ErrPrivilegeEscalation, meta.PubKey.ToBase58())
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: writable %s", ErrPrivilegeEscalation, meta.PubKey.ToBase58())
		}

		if prev, ok := merged[meta.PubKey]; ok {
			prev.IsSigner = prev.IsSigner || meta.IsSigner
			prev.IsWritable = prev.IsWritable || meta.IsWritable
			continue
		}
		merged[meta.PubKey] = &AccountInfo{
			Key:        meta.PubKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    caller.Account,
		}
	}
	for _, meta := range ix.Accounts {
		infos = append(infos, merged[meta.PubKey])
	}

	stack := append(slices.Clone(ic.stack), ic.programID)
	if err := ic.rt.process(ic.ctx, ic.logs, stack, ix.ProgramID, infos, ix.Data); err != nil {
		return err
	}

	// The callee's changes are now part of the caller's starting point.
	ic.pre = capture(ic.accounts)
	return nil
}

func (ic *InvokeContext) find(key common.PublicKey) *AccountInfo {
	for _, a := range ic.accounts {
		if a.Key == key {
			return a
		}
	}
	return nil
}
